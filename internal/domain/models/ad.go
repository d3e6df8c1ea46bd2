package models

// AdType represents the display type of a contextual ad.
type AdType string

const (
	AdTypeHyperlink AdType = "hyperlink"
	AdTypePopup     AdType = "popup"
	AdTypeBanner    AdType = "banner"
	AdTypeVideo     AdType = "video"
	AdTypeThinking  AdType = "thinking"
)

// Valid reports whether the ad type is one of the known types.
func (t AdType) Valid() bool {
	switch t {
	case AdTypeHyperlink, AdTypePopup, AdTypeBanner, AdTypeVideo, AdTypeThinking:
		return true
	}
	return false
}

// Ad represents a single contextual ad returned by the ad-search backend.
// Ads are read-only once produced.
type Ad struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	URL         string                 `json:"url"`
	AdType      AdType                 `json:"ad_type"`
	Similarity  float64                `json:"similarity"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// AdPreferences carries the ad configuration sent on session creation.
type AdPreferences struct {
	AdTypes            []string `json:"ad_types"`
	Frequency          string   `json:"frequency"`
	RevenueVsRelevance float64  `json:"revenue_vs_relevance"`
}

package adsearch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	domainerrors "github.com/contextads/chat-service/internal/domain/errors"
	"github.com/contextads/chat-service/internal/domain/models"
)

// HistoryLimit caps the rolling search history. Oldest entries drop first.
const HistoryLimit = 10

// Result records one completed ad search for the statistics views.
type Result struct {
	Query          string      `json:"query"`
	Ads            []models.Ad `json:"ads"`
	ResponseTimeMs int64       `json:"responseTimeMs"`
	Timestamp      time.Time   `json:"timestamp"`
}

// Stats aggregates the rolling search history. Recomputed from scratch on
// every call.
type Stats struct {
	TotalSearches      int     `json:"totalSearches"`
	TotalAdsFound      int     `json:"totalAdsFound"`
	MeanResponseTimeMs float64 `json:"meanResponseTimeMs"`
	MeanAdsPerSearch   float64 `json:"meanAdsPerSearch"`
}

// Component accumulates ad results and search statistics for the active
// session. One instance per session; no cross-session sharing.
type Component struct {
	mu        sync.Mutex
	client    *Client
	creatorID string
	current   []models.Ad
	history   []Result
	lastErr   error
	logger    zerolog.Logger
}

// NewComponent creates an ad search component bound to a creator id.
func NewComponent(client *Client, creatorID string) *Component {
	return &Component{
		client:    client,
		creatorID: creatorID,
		logger:    log.With().Str("component", "adsearch").Logger(),
	}
}

// SearchAds issues one remote query. On success the current-ads slot is
// replaced with the returned list and a result record is appended to the
// rolling history. On failure the current slot is left unchanged.
func (c *Component) SearchAds(ctx context.Context, queries []string, conversationID string) ([]models.Ad, error) {
	if c.client == nil {
		return nil, domainerrors.NewAdSearchError("ad search client not constructed", nil)
	}

	res, err := c.client.Search(ctx, queries, c.creatorID, conversationID)
	if err != nil {
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastErr = nil
	c.current = res.Ads
	c.history = append(c.history, Result{
		Query:          strings.Join(queries, "; "),
		Ads:            res.Ads,
		ResponseTimeMs: res.ResponseTime.Milliseconds(),
		Timestamp:      time.Now().UTC(),
	})
	if len(c.history) > HistoryLimit {
		c.history = c.history[len(c.history)-HistoryLimit:]
	}

	return res.Ads, nil
}

// SearchForMessage is a convenience wrapping a single-query call with the
// message text and the conversation id carried in its metadata.
func (c *Component) SearchForMessage(ctx context.Context, msg *models.Message) ([]models.Ad, error) {
	return c.SearchAds(ctx, []string{msg.Content}, msg.ConversationID())
}

// CurrentAds returns a copy of the current-ads slot.
func (c *Component) CurrentAds() []models.Ad {
	c.mu.Lock()
	defer c.mu.Unlock()

	ads := make([]models.Ad, len(c.current))
	copy(ads, c.current)
	return ads
}

// History returns a copy of the rolling search history, oldest first.
func (c *Component) History() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	history := make([]Result, len(c.history))
	copy(history, c.history)
	return history
}

// FilterByType returns the current ads matching the given type.
func (c *Component) FilterByType(adType models.AdType) []models.Ad {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ads []models.Ad
	for _, ad := range c.current {
		if ad.AdType == adType {
			ads = append(ads, ad)
		}
	}
	return ads
}

// FilterByMinSimilarity returns the current ads at or above the threshold.
func (c *Component) FilterByMinSimilarity(min float64) []models.Ad {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ads []models.Ad
	for _, ad := range c.current {
		if ad.Similarity >= min {
			ads = append(ads, ad)
		}
	}
	return ads
}

// Statistics recomputes aggregate statistics from the rolling history.
func (c *Component) Statistics() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{TotalSearches: len(c.history)}
	if stats.TotalSearches == 0 {
		return stats
	}

	var totalTimeMs int64
	for _, r := range c.history {
		stats.TotalAdsFound += len(r.Ads)
		totalTimeMs += r.ResponseTimeMs
	}
	stats.MeanResponseTimeMs = float64(totalTimeMs) / float64(stats.TotalSearches)
	stats.MeanAdsPerSearch = float64(stats.TotalAdsFound) / float64(stats.TotalSearches)

	return stats
}

// Reset clears the current ads, the rolling history and the last error.
// Used when the conversation session is reset.
func (c *Component) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = nil
	c.history = nil
	c.lastErr = nil
}

// Healthy reports whether the underlying client is constructed and the
// last search did not fail.
func (c *Component) Healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client != nil && c.lastErr == nil
}

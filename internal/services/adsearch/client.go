// Package adsearch provides the contextual-ad search client and the
// per-session ad search component.
package adsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	domainerrors "github.com/contextads/chat-service/internal/domain/errors"
	"github.com/contextads/chat-service/internal/domain/models"
)

// SearchResponse is the normalized result of one ad-search call.
type SearchResponse struct {
	Ads            []models.Ad
	ContentContext string
	ResponseTime   time.Duration
}

// ClientConfig holds the configuration for the ad-search client.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
}

// Client issues contextual queries against the remote ad-search service.
type Client struct {
	http   *resty.Client
	logger zerolog.Logger
}

// NewClient creates a new ad-search client.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetRetryCount(cfg.RetryCount)
	if cfg.Timeout > 0 {
		http.SetTimeout(cfg.Timeout)
	}

	return &Client{
		http:   http,
		logger: log.With().Str("component", "adsearch").Logger(),
	}, nil
}

type searchRequest struct {
	Queries        []string `json:"queries"`
	CreatorID      string   `json:"creator_id"`
	ConversationID string   `json:"conversation_id"`
}

type adRecord struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	URL         string                 `json:"url"`
	AdType      string                 `json:"ad_type"`
	Similarity  float64                `json:"similarity"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// searchPayload accepts the two response shapes the backend is known to
// produce; pointers distinguish an absent collection from an empty one.
type searchPayload struct {
	Ads            *[]adRecord `json:"ads"`
	Results        *[]adRecord `json:"results"`
	ContentContext string      `json:"content_context"`
}

// Search issues one remote query carrying the query strings, creatorID and
// conversationID. A response without a recognizable ads collection is a
// format error.
func (c *Client) Search(ctx context.Context, queries []string, creatorID, conversationID string) (*SearchResponse, error) {
	start := time.Now()

	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(&searchRequest{
			Queries:        queries,
			CreatorID:      creatorID,
			ConversationID: conversationID,
		}).
		Post("/search")
	if err != nil {
		return nil, domainerrors.NewAdSearchError("ad search request failed", err)
	}
	if !res.IsSuccess() {
		return nil, domainerrors.NewAdSearchError(
			fmt.Sprintf("ad search returned status %d", res.StatusCode()), nil)
	}

	var payload searchPayload
	if err := json.Unmarshal(res.Body(), &payload); err != nil {
		return nil, domainerrors.NewAdSearchError("failed to parse ad search response", err)
	}

	records := payload.Ads
	if records == nil {
		records = payload.Results
	}
	if records == nil {
		return nil, domainerrors.NewAdSearchError("ad search response has no ads collection", nil)
	}

	ads := make([]models.Ad, 0, len(*records))
	for _, r := range *records {
		ad, err := r.toAd()
		if err != nil {
			return nil, domainerrors.NewAdSearchError("malformed ad record", err)
		}
		ads = append(ads, ad)
	}

	elapsed := time.Since(start)
	c.logger.Debug().
		Int("ads", len(ads)).
		Dur("elapsed", elapsed).
		Str("conversation_id", conversationID).
		Msg("ad search completed")

	return &SearchResponse{
		Ads:            ads,
		ContentContext: payload.ContentContext,
		ResponseTime:   elapsed,
	}, nil
}

func (r adRecord) toAd() (models.Ad, error) {
	if r.ID == "" && r.Title == "" {
		return models.Ad{}, fmt.Errorf("ad record missing both id and title")
	}

	id := r.ID
	if id == "" {
		id = r.Title
	}

	return models.Ad{
		ID:          id,
		Title:       r.Title,
		Description: r.Description,
		URL:         r.URL,
		AdType:      models.AdType(r.AdType),
		Similarity:  r.Similarity,
		Metadata:    r.Metadata,
	}, nil
}

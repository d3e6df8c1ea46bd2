// Package session provides conversation session lifecycle management with
// remote-backed identifiers and local fallback.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	domainerrors "github.com/contextads/chat-service/internal/domain/errors"
	"github.com/contextads/chat-service/internal/domain/models"
)

// ClientConfig holds the configuration for the conversation service client.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
}

// Client talks to the remote conversation session service.
type Client struct {
	http *resty.Client
}

// NewClient creates a new conversation service client.
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

	return &Client{http: http}, nil
}

// CreateConversationRequest is the session initialization payload.
type CreateConversationRequest struct {
	ConversationID string                 `json:"conversation_id"`
	CreatorID      string                 `json:"creator_id"`
	AdPreferences  models.AdPreferences   `json:"ad_preferences"`
	Context        string                 `json:"context,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

type createConversationResponse struct {
	ConversationID string `json:"conversation_id"`
}

// CreateConversation creates a session remotely and returns the
// server-issued conversation id. Any response without a conversation_id is
// a hard failure of this call.
func (c *Client) CreateConversation(ctx context.Context, req *CreateConversationRequest) (string, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("/conversations")
	if err != nil {
		return "", domainerrors.NewSessionError("conversation creation request failed", err)
	}
	if !res.IsSuccess() {
		return "", domainerrors.NewSessionError(
			fmt.Sprintf("conversation service returned status %d", res.StatusCode()), nil)
	}

	var payload createConversationResponse
	if err := json.Unmarshal(res.Body(), &payload); err != nil {
		return "", domainerrors.NewSessionError("failed to parse conversation response", err)
	}
	if payload.ConversationID == "" {
		return "", domainerrors.NewSessionError("conversation response missing conversation_id", nil)
	}

	return payload.ConversationID, nil
}

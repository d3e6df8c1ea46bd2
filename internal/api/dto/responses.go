// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/contextads/chat-service/internal/domain/models"
	"github.com/contextads/chat-service/internal/services/adsearch"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// SendMessageResponse represents the orchestrated chat outcome.
type SendMessageResponse struct {
	Content        string                 `json:"content"`
	Source         string                 `json:"source"`
	ConversationID string                 `json:"conversationId"`
	Ads            []models.Ad            `json:"ads"`
	ResponseTimeMs int64                  `json:"responseTimeMs"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// SessionResponse represents the active conversation session.
type SessionResponse struct {
	ConversationID     string    `json:"conversationId"`
	BackendInitialized bool      `json:"backendInitialized"`
	IsHealthy          bool      `json:"isHealthy"`
	Timestamp          time.Time `json:"timestamp"`
}

// AdsResponse represents the ad search state: current ads, the rolling
// search history and aggregate statistics.
type AdsResponse struct {
	Current []models.Ad       `json:"current"`
	History []adsearch.Result `json:"history"`
	Stats   adsearch.Stats    `json:"stats"`
}

// ProviderResponse represents one registered provider adapter.
type ProviderResponse struct {
	Name         string      `json:"name"`
	Active       bool        `json:"active"`
	Capabilities interface{} `json:"capabilities"`
}

// GetProvidersResponse lists the registered provider adapters.
type GetProvidersResponse struct {
	Providers []ProviderResponse `json:"providers"`
}

// ResetResponse acknowledges a conversation reset.
type ResetResponse struct {
	Reset bool `json:"reset"`
}

package models

import (
	"github.com/google/uuid"
)

// ResponseMetadata holds provider-reported metadata for a response.
type ResponseMetadata struct {
	Model          string                 `json:"model,omitempty"`
	TokensInput    int64                  `json:"tokensInput,omitempty"`
	TokensOutput   int64                  `json:"tokensOutput,omitempty"`
	ResponseTimeMs int64                  `json:"responseTimeMs,omitempty"`
	Extra          map[string]interface{} `json:"extra,omitempty"`
}

// Response represents a normalized provider response. It is created once
// per successful provider invocation and never mutated afterwards.
type Response struct {
	ID             string           `json:"id"`
	Content        string           `json:"content"`
	ConversationID string           `json:"conversationId,omitempty"`
	Source         string           `json:"source"`
	Metadata       ResponseMetadata `json:"metadata"`
}

// NewResponse creates a Response with a generated id.
func NewResponse(source, conversationID, content string) *Response {
	return &Response{
		ID:             uuid.NewString(),
		Content:        content,
		ConversationID: conversationID,
		Source:         source,
	}
}

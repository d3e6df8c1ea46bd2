// Package models contains domain models for the contextual-ad chat service.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role represents the author of a chat message.
type Role string

const (
	// RoleUser represents a user message.
	RoleUser Role = "user"
	// RoleAssistant represents an assistant message.
	RoleAssistant Role = "assistant"
	// RoleSystem represents a system instruction.
	RoleSystem Role = "system"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// MetaConversationID is the metadata key carrying the session join key.
const MetaConversationID = "conversationId"

// Message represents a single chat turn. Messages are immutable once
// created; providers may retain a bounded trailing window of them to build
// backend-native conversation context.
type Message struct {
	ID        string                 `json:"id"`
	Content   string                 `json:"content"`
	Role      Role                   `json:"role"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewMessage creates a new Message with a generated id and UTC timestamp.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Content:   content,
		Role:      role,
		Timestamp: time.Now().UTC(),
		Metadata:  map[string]interface{}{},
	}
}

// ConversationID returns the conversation id carried in the message
// metadata, or an empty string if absent.
func (m *Message) ConversationID() string {
	if m.Metadata == nil {
		return ""
	}
	if v, ok := m.Metadata[MetaConversationID].(string); ok {
		return v
	}
	return ""
}

// HasContent reports whether the message content is non-empty after
// trimming whitespace.
func (m *Message) HasContent() bool {
	return strings.TrimSpace(m.Content) != ""
}

// IsCanonicalUUID reports whether s is a canonical 8-4-4-4-12 hex UUID
// (case-insensitive). The ad-search backend rejects any other identifier
// shape, so locally generated fallback ids must fail this check.
func IsCanonicalUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

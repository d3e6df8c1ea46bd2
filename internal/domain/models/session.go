package models

import "time"

// Session represents the conversation session state. The ConversationID is
// the join key used by every downstream call (ad search, provider message
// metadata). When BackendInitialized is true the id is a canonical UUID
// issued by the conversation backend; otherwise it is a locally generated
// fallback token and ad search for the session is expected to fail or be
// skipped.
type Session struct {
	ConversationID     string        `json:"conversationId"`
	CreatorID          string        `json:"creatorId"`
	AdPreferences      AdPreferences `json:"adPreferences"`
	IsHealthy          bool          `json:"isHealthy"`
	BackendInitialized bool          `json:"backendInitialized"`
	ResponseTimeMs     int64         `json:"responseTimeMs"`
	Timestamp          time.Time     `json:"timestamp"`
}

// SupportsAdSearch reports whether downstream ad-search calls can be
// expected to succeed for this session.
func (s *Session) SupportsAdSearch() bool {
	return s.BackendInitialized && IsCanonicalUUID(s.ConversationID)
}

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/contextads/chat-service/internal/core/cache"
	"github.com/contextads/chat-service/internal/domain/models"
)

// State represents the session manager lifecycle state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateHealthy       State = "healthy"
	StateError         State = "error"
)

// ManagerConfig holds the configuration for the session manager.
type ManagerConfig struct {
	// Client is the conversation service client. Required.
	Client *Client

	// CreatorID identifies the ad creator account for this deployment.
	CreatorID string

	// AdPreferences is sent to the conversation service on creation.
	AdPreferences models.AdPreferences

	// AutoInitialize triggers conversation initialization exactly once at
	// construction time.
	AutoInitialize bool

	// Cache optionally persists the session snapshot across restarts.
	// Cache failures are logged and ignored.
	Cache    cache.Client
	CacheTTL time.Duration
}

// Manager owns the conversation session lifecycle. A session is created
// exactly once per chat lifetime unless explicitly reset. Remote
// initialization failure degrades to a locally generated identifier
// rather than blocking chat.
type Manager struct {
	mu        sync.Mutex
	state     State
	session   *models.Session
	client    *Client
	creatorID string
	adPrefs   models.AdPreferences
	cache     cache.Client
	cacheTTL  time.Duration
	logger    zerolog.Logger
}

// NewManager creates a new session manager. With AutoInitialize set the
// manager initializes its conversation synchronously before returning;
// later configuration changes never re-trigger auto-initialization.
func NewManager(cfg *ManagerConfig) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("conversation client is required")
	}
	if cfg.CreatorID == "" {
		return nil, fmt.Errorf("creator id is required")
	}

	m := &Manager{
		state:     StateUninitialized,
		client:    cfg.Client,
		creatorID: cfg.CreatorID,
		adPrefs:   cfg.AdPreferences,
		cache:     cfg.Cache,
		cacheTTL:  cfg.CacheTTL,
		logger:    log.With().Str("component", "session").Logger(),
	}

	if cfg.AutoInitialize {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := m.InitializeConversation(ctx); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// InitializeConversation ensures a session exists. On remote success the
// server-returned identifier is adopted as the canonical conversation id;
// on remote failure the manager logs a warning and becomes healthy anyway
// with a local fallback identifier and BackendInitialized=false.
func (m *Manager) InitializeConversation(ctx context.Context) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateHealthy && m.session != nil {
		return m.snapshotLocked(), nil
	}

	m.state = StateInitializing

	if restored := m.restoreFromCache(ctx); restored != nil {
		m.session = restored
		m.state = StateHealthy
		m.logger.Info().
			Str("conversation_id", restored.ConversationID).
			Msg("restored conversation session from cache")
		return m.snapshotLocked(), nil
	}

	tempID := uuid.NewString()
	start := time.Now()

	conversationID, err := m.client.CreateConversation(ctx, &CreateConversationRequest{
		ConversationID: tempID,
		CreatorID:      m.creatorID,
		AdPreferences:  m.adPrefs,
	})
	if err != nil {
		// Degrade, don't fail: chat continues with a local identifier,
		// ad search for this session is expected to fail or be skipped.
		fallbackID := localConversationID()
		m.logger.Warn().
			Err(err).
			Str("fallback_id", fallbackID).
			Msg("conversation backend initialization failed, using local fallback id")

		m.session = &models.Session{
			ConversationID:     fallbackID,
			CreatorID:          m.creatorID,
			AdPreferences:      m.adPrefs,
			IsHealthy:          true,
			BackendInitialized: false,
			Timestamp:          time.Now().UTC(),
		}
		m.state = StateHealthy
		return m.snapshotLocked(), nil
	}

	m.session = &models.Session{
		ConversationID:     conversationID,
		CreatorID:          m.creatorID,
		AdPreferences:      m.adPrefs,
		IsHealthy:          true,
		BackendInitialized: true,
		ResponseTimeMs:     time.Since(start).Milliseconds(),
		Timestamp:          time.Now().UTC(),
	}
	m.state = StateHealthy
	m.storeInCache(ctx, m.session)

	m.logger.Info().
		Str("conversation_id", conversationID).
		Msg("conversation session initialized")

	return m.snapshotLocked(), nil
}

// ResetConversation clears the session state. Calling it twice in a row
// is equivalent to calling it once.
func (m *Manager) ResetConversation(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session = nil
	m.state = StateUninitialized

	if m.cache != nil {
		if _, err := m.cache.Delete(ctx, m.cacheKey()); err != nil {
			m.logger.Warn().Err(err).Msg("failed to delete cached session snapshot")
		}
	}
}

// UpdateConversationHealth performs a lightweight local check (non-empty
// conversation id) and returns the healthy boolean.
func (m *Manager) UpdateConversationHealth() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	healthy := m.session != nil && m.session.ConversationID != ""
	if m.session != nil {
		m.session.IsHealthy = healthy
	}
	return healthy
}

// CurrentSession returns a copy of the current session, or nil if none.
func (m *Manager) CurrentSession() *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// State returns the manager lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) snapshotLocked() *models.Session {
	if m.session == nil {
		return nil
	}
	snapshot := *m.session
	return &snapshot
}

func (m *Manager) cacheKey() string {
	return "conversation:" + m.creatorID
}

// restoreFromCache returns a cached backend-initialized session snapshot,
// or nil when none is usable. Called with the mutex held.
func (m *Manager) restoreFromCache(ctx context.Context) *models.Session {
	if m.cache == nil {
		return nil
	}

	data, err := m.cache.Get(ctx, m.cacheKey())
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to read cached session snapshot")
		return nil
	}
	if data == nil {
		return nil
	}

	var snapshot models.Session
	if err := json.Unmarshal(data, &snapshot); err != nil {
		_, _ = m.cache.Delete(ctx, m.cacheKey())
		return nil
	}

	// Only a backend-issued UUID is worth reusing.
	if !snapshot.SupportsAdSearch() {
		_, _ = m.cache.Delete(ctx, m.cacheKey())
		return nil
	}

	return &snapshot
}

func (m *Manager) storeInCache(ctx context.Context, session *models.Session) {
	if m.cache == nil {
		return
	}

	data, err := json.Marshal(session)
	if err != nil {
		return
	}
	if err := m.cache.Set(ctx, m.cacheKey(), data, m.cacheTTL); err != nil {
		m.logger.Warn().Err(err).Msg("failed to store session snapshot in cache")
	}
}

// localConversationID generates a non-UUID fallback identifier.
func localConversationID() string {
	return fmt.Sprintf("local-%d-%s", time.Now().UnixNano(), uuid.NewString()[:8])
}

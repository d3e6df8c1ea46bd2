// Package openai provides the direct-completion provider adapter. It
// talks to the chat completions API and keeps a bounded in-memory
// conversation history so the stateless API behaves like a session.
package openai

import (
	"context"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/contextads/chat-service/internal/config"
	domainerrors "github.com/contextads/chat-service/internal/domain/errors"
	"github.com/contextads/chat-service/internal/domain/models"
	"github.com/contextads/chat-service/internal/services/providers"
)

const (
	// Name is the adapter name used for registration and strategy
	// selection.
	Name = "openai"

	// Version is the adapter version reported in the descriptor.
	Version = "1.0.0"
)

// turn is one retained history entry.
type turn struct {
	role    models.Role
	content string
}

// Adapter implements providers.Provider over the chat completions API.
type Adapter struct {
	mu          sync.Mutex
	client      openai.Client
	cfg         *config.OpenAIConfig
	history     []turn
	initialized bool
	logger      zerolog.Logger
}

// NewAdapter creates the direct-completion adapter.
func NewAdapter() *Adapter {
	return &Adapter{
		logger: log.With().Str("provider", Name).Logger(),
	}
}

// Name returns the adapter name.
func (a *Adapter) Name() string {
	return Name
}

// Capabilities returns the static capability descriptor.
func (a *Adapter) Capabilities() providers.Capabilities {
	a.mu.Lock()
	maxTokens := 0
	if a.cfg != nil {
		maxTokens = a.cfg.MaxTokens
	}
	a.mu.Unlock()

	return providers.Capabilities{
		ContextRetention:    true,
		MaxTokens:           maxTokens,
		SupportedModalities: []string{"text"},
	}
}

// ValidateConfig checks the adapter-specific configuration without
// calling out.
func (a *Adapter) ValidateConfig(cfg providers.ProviderConfig) bool {
	if cfg.OpenAI == nil {
		return false
	}
	c := cfg.OpenAI
	if c.APIKey == "" || c.Model == "" {
		return false
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return false
	}
	return c.MaxTokens > 0 && c.HistoryLimit > 0
}

// Initialize constructs the API client. Re-initialization with identical
// configuration is a no-op and preserves the accumulated history.
func (a *Adapter) Initialize(ctx context.Context, cfg providers.ProviderConfig) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.ValidateConfig(cfg) {
		return domainerrors.NewInitializationError(Name, "invalid openai configuration", nil)
	}

	if a.initialized && a.cfg != nil && *a.cfg == *cfg.OpenAI {
		return nil
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAI.APIKey)}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.RetryCount > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.RetryCount))
	}

	snapshot := *cfg.OpenAI
	a.client = openai.NewClient(opts...)
	a.cfg = &snapshot
	a.history = nil
	a.initialized = true

	return nil
}

// SendMessage sends the bounded history plus the new message to the chat
// completions API and records both sides of the exchange on success.
func (a *Adapter) SendMessage(ctx context.Context, msg *models.Message) (*models.Response, error) {
	if msg == nil || !msg.HasContent() {
		return nil, domainerrors.NewValidationError("message content must not be empty", "")
	}
	if !msg.Role.Valid() {
		return nil, domainerrors.NewValidationError("unknown message role", string(msg.Role))
	}

	a.mu.Lock()
	if !a.initialized {
		a.mu.Unlock()
		return nil, domainerrors.NewRequestError(Name, "adapter is not initialized", nil)
	}
	messages := a.buildMessagesLocked(msg)
	cfg := *a.cfg
	a.mu.Unlock()

	start := time.Now()

	res, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       cfg.Model,
		Messages:    messages,
		Temperature: openai.Float(cfg.Temperature),
		MaxTokens:   openai.Int(int64(cfg.MaxTokens)),
	})
	if err != nil {
		return nil, domainerrors.NewRequestError(Name, "chat completion failed", err)
	}
	if len(res.Choices) == 0 || res.Choices[0].Message.Content == "" {
		return nil, domainerrors.NewRequestError(Name, "chat completion returned no content", nil)
	}

	content := res.Choices[0].Message.Content

	a.mu.Lock()
	a.appendHistoryLocked(turn{role: msg.Role, content: msg.Content})
	a.appendHistoryLocked(turn{role: models.RoleAssistant, content: content})
	a.mu.Unlock()

	response := models.NewResponse(Name, msg.ConversationID(), content)
	response.Metadata = models.ResponseMetadata{
		Model:          res.Model,
		TokensInput:    res.Usage.PromptTokens,
		TokensOutput:   res.Usage.CompletionTokens,
		ResponseTimeMs: time.Since(start).Milliseconds(),
	}
	return response, nil
}

// IsHealthy reports whether the adapter holds a usable client.
func (a *Adapter) IsHealthy(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initialized
}

// Shutdown drops the client and the retained history. Safe to call
// multiple times.
func (a *Adapter) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.initialized = false
	a.cfg = nil
	a.history = nil
	return nil
}

// ResetHistory clears the retained conversation turns, starting the next
// exchange from a blank slate.
func (a *Adapter) ResetHistory() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
}

// HistoryLen returns the number of retained history entries.
func (a *Adapter) HistoryLen() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.history)
}

// buildMessagesLocked assembles the outbound message list: the system
// prompt, the retained history and the new message. Called with the
// mutex held.
func (a *Adapter) buildMessagesLocked(msg *models.Message) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(a.history)+2)
	if a.cfg.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(a.cfg.SystemPrompt))
	}
	for _, t := range a.history {
		switch t.role {
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(t.content))
		default:
			messages = append(messages, openai.UserMessage(t.content))
		}
	}
	return append(messages, openai.UserMessage(msg.Content))
}

// appendHistoryLocked appends one turn, evicting the oldest entries so
// the history never exceeds the configured limit. Called with the mutex
// held.
func (a *Adapter) appendHistoryLocked(t turn) {
	a.history = append(a.history, t)
	if limit := a.cfg.HistoryLimit; len(a.history) > limit {
		a.history = a.history[len(a.history)-limit:]
	}
}

// Package providers defines the provider capability contract, the
// registry of available adapters and the factory that constructs them.
package providers

import (
	"context"
	"time"

	"github.com/contextads/chat-service/internal/config"
	"github.com/contextads/chat-service/internal/domain/models"
)

// Capabilities describes what a provider adapter can do. Static for the
// adapter's lifetime.
type Capabilities struct {
	Streaming           bool     `json:"streaming"`
	Multimodal          bool     `json:"multimodal"`
	FunctionCalling     bool     `json:"functionCalling"`
	ContextRetention    bool     `json:"contextRetention"`
	MaxTokens           int      `json:"maxTokens"`
	SupportedModalities []string `json:"supportedModalities"`
}

// Descriptor identifies a registered adapter and its capabilities.
type Descriptor struct {
	Name         string       `json:"name"`
	Version      string       `json:"version"`
	Capabilities Capabilities `json:"capabilities"`
}

// ProviderConfig is the tagged per-adapter configuration. Exactly one of
// the adapter sub-configs is set, matching Type; extraction from the
// application config switches exhaustively on the closed type set so a
// missing sub-config is impossible by construction.
type ProviderConfig struct {
	Type       config.ProviderType
	Agent      *config.AgentConfig
	OpenAI     *config.OpenAIConfig
	Timeout    time.Duration
	RetryCount int
}

// ChunkType represents the type of stream chunk.
type ChunkType string

const (
	ChunkTypeStart    ChunkType = "start"
	ChunkTypeContent  ChunkType = "chunk"
	ChunkTypeMetadata ChunkType = "metadata"
	ChunkTypeDone     ChunkType = "end"
	ChunkTypeError    ChunkType = "error"
)

// StreamChunk represents one event of a streamed response.
type StreamChunk struct {
	Type     ChunkType
	Content  string
	Metadata map[string]interface{}
	Err      error
}

// StreamReader reads stream chunks one at a time. Streams are finite and
// non-restartable; cancellation is cooperative - the consumer simply stops
// pulling and calls Close.
type StreamReader interface {
	// Read returns the next chunk from the stream.
	// Returns io.EOF when the stream is exhausted.
	Read() (*StreamChunk, error)

	// Close releases resources associated with the reader.
	Close() error
}

// Provider is the capability contract every AI backend adapter satisfies.
type Provider interface {
	// Name returns the adapter name used for registry lookup and
	// strategy selection.
	Name() string

	// Capabilities returns the static capability descriptor.
	Capabilities() Capabilities

	// ValidateConfig performs a pure structural and semantic check of the
	// adapter-specific configuration. Never panics, never calls out.
	ValidateConfig(cfg ProviderConfig) bool

	// Initialize validates and stores the adapter configuration and
	// establishes connectivity. Skipped when already initialized with
	// identical configuration.
	Initialize(ctx context.Context, cfg ProviderConfig) error

	// SendMessage performs a single-shot request/response exchange.
	// Never returns a partially populated response.
	SendMessage(ctx context.Context, msg *models.Message) (*models.Response, error)

	// IsHealthy is a best-effort check; it never panics.
	IsHealthy(ctx context.Context) bool

	// Shutdown releases held configuration and state. Safe to call
	// multiple times.
	Shutdown() error
}

// Streamer is the optional streaming capability.
type Streamer interface {
	// StreamMessage produces a lazy, finite, non-restartable stream of
	// response events.
	StreamMessage(ctx context.Context, msg *models.Message) (StreamReader, error)
}

// ExtractConfig builds the tagged provider configuration for the given
// type from the application config.
func ExtractConfig(cfg *config.Config, providerType config.ProviderType) (ProviderConfig, bool) {
	base := ProviderConfig{
		Type:       providerType,
		Timeout:    cfg.API.Timeout,
		RetryCount: cfg.API.MaxRetries,
	}

	switch providerType {
	case config.ProviderTypeAgent:
		agent := cfg.Provider.Agent
		base.Agent = &agent
		return base, true
	case config.ProviderTypeOpenAI:
		openai := cfg.Provider.OpenAI
		base.OpenAI = &openai
		return base, true
	default:
		return ProviderConfig{}, false
	}
}

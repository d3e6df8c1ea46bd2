// Package config handles application configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	domainerrors "github.com/contextads/chat-service/internal/domain/errors"
	"github.com/contextads/chat-service/internal/domain/models"
)

// ProviderType identifies a concrete AI provider adapter. The set is
// closed: config extraction switches exhaustively on it.
type ProviderType string

const (
	// ProviderTypeAgent is the tool-augmented agent adapter.
	ProviderTypeAgent ProviderType = "agent"
	// ProviderTypeOpenAI is the direct-completion adapter.
	ProviderTypeOpenAI ProviderType = "openai"
)

// Config holds all configuration for the application. Built once from the
// environment, validated eagerly, immutable thereafter.
type Config struct {
	Environment  string `env:"APP_ENV" envDefault:"development"`
	Server       ServerConfig
	Provider     ProviderConfig
	Advertising  AdvertisingConfig
	Conversation ConversationConfig
	Cache        CacheConfig
	API          APIConfig
	Log          LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host    string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port    int    `env:"SERVER_PORT" envDefault:"8080"`
	GinMode string `env:"GIN_MODE" envDefault:"debug"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ProviderConfig holds the provider selection and per-provider settings.
type ProviderConfig struct {
	Active ProviderType `env:"AI_PROVIDER" envDefault:"agent"`
	Agent  AgentConfig
	OpenAI OpenAIConfig
}

// AgentConfig holds settings for the tool-augmented agent adapter.
type AgentConfig struct {
	Endpoint string `env:"AGENT_ENDPOINT"`

	// Held-out session/creator pair used by the adapter health probe.
	ProbeConversationID string `env:"AGENT_PROBE_CONVERSATION_ID" envDefault:"00000000-0000-4000-8000-000000000000"`
	ProbeCreatorID      string `env:"AGENT_PROBE_CREATOR_ID" envDefault:"00000000-0000-4000-8000-000000000001"`
}

// OpenAIConfig holds settings for the direct-completion adapter.
type OpenAIConfig struct {
	APIKey       string  `env:"OPENAI_API_KEY"`
	BaseURL      string  `env:"OPENAI_BASE_URL"`
	Model        string  `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	Temperature  float64 `env:"OPENAI_TEMPERATURE" envDefault:"0.7"`
	MaxTokens    int     `env:"OPENAI_MAX_TOKENS" envDefault:"1024"`
	HistoryLimit int     `env:"OPENAI_HISTORY_LIMIT" envDefault:"20"`
	SystemPrompt string  `env:"OPENAI_SYSTEM_PROMPT" envDefault:"You are a helpful assistant for a demo chat application. Answer concisely and mention relevant resources when they are provided."`
}

// AdvertisingConfig holds contextual-ad search settings.
type AdvertisingConfig struct {
	BaseURL            string   `env:"AD_SEARCH_URL"`
	CreatorID          string   `env:"AD_CREATOR_ID"`
	AdTypes            []string `env:"AD_TYPES" envDefault:"hyperlink,popup,banner,video,thinking"`
	Frequency          string   `env:"AD_FREQUENCY" envDefault:"moderate"`
	RevenueVsRelevance float64  `env:"AD_REVENUE_VS_RELEVANCE" envDefault:"0.5"`
}

// Preferences returns the ad preferences sent on session creation.
func (c AdvertisingConfig) Preferences() models.AdPreferences {
	return models.AdPreferences{
		AdTypes:            c.AdTypes,
		Frequency:          c.Frequency,
		RevenueVsRelevance: c.RevenueVsRelevance,
	}
}

// ConversationConfig holds conversation session settings.
type ConversationConfig struct {
	BaseURL        string        `env:"CONVERSATION_SERVICE_URL"`
	AutoInitialize bool          `env:"CONVERSATION_AUTO_INITIALIZE" envDefault:"false"`
	CacheTTL       time.Duration `env:"CONVERSATION_CACHE_TTL" envDefault:"24h"`
}

// CacheConfig holds the session snapshot cache configuration.
type CacheConfig struct {
	Enabled  bool   `env:"CACHE_ENABLED" envDefault:"false"`
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     string `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// APIConfig holds timeout/retry settings consumed by the remote transports.
// The core itself does not retry; MaxRetries is handed to the HTTP clients.
type APIConfig struct {
	Timeout    time.Duration `env:"API_TIMEOUT" envDefault:"30s"`
	MaxRetries int           `env:"API_MAX_RETRIES" envDefault:"0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load loads configuration from environment variables and validates it.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, domainerrors.NewConfigurationError("failed to parse environment", err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration eagerly so that malformed settings
// surface at startup instead of on the first request.
func (c *Config) Validate() error {
	switch c.Provider.Active {
	case ProviderTypeAgent:
		if err := requireURL("AGENT_ENDPOINT", c.Provider.Agent.Endpoint); err != nil {
			return err
		}
	case ProviderTypeOpenAI:
		if c.Provider.OpenAI.APIKey == "" {
			return domainerrors.NewConfigurationError("OPENAI_API_KEY is required", "")
		}
		if c.Provider.OpenAI.Temperature < 0 || c.Provider.OpenAI.Temperature > 2 {
			return domainerrors.NewConfigurationError("OPENAI_TEMPERATURE out of range", "expected [0, 2]")
		}
		if c.Provider.OpenAI.MaxTokens <= 0 {
			return domainerrors.NewConfigurationError("OPENAI_MAX_TOKENS must be positive", "")
		}
		if c.Provider.OpenAI.HistoryLimit <= 0 {
			return domainerrors.NewConfigurationError("OPENAI_HISTORY_LIMIT must be positive", "")
		}
		if c.Provider.OpenAI.BaseURL != "" {
			if err := requireURL("OPENAI_BASE_URL", c.Provider.OpenAI.BaseURL); err != nil {
				return err
			}
		}
	default:
		return domainerrors.NewConfigurationError("unsupported AI_PROVIDER", string(c.Provider.Active))
	}

	if err := requireURL("AD_SEARCH_URL", c.Advertising.BaseURL); err != nil {
		return err
	}
	if c.Advertising.CreatorID == "" {
		return domainerrors.NewConfigurationError("AD_CREATOR_ID is required", "")
	}
	if c.Advertising.RevenueVsRelevance < 0 || c.Advertising.RevenueVsRelevance > 1 {
		return domainerrors.NewConfigurationError("AD_REVENUE_VS_RELEVANCE out of range", "expected [0, 1]")
	}
	for _, t := range c.Advertising.AdTypes {
		if !models.AdType(t).Valid() {
			return domainerrors.NewConfigurationError("unknown ad type in AD_TYPES", t)
		}
	}

	if err := requireURL("CONVERSATION_SERVICE_URL", c.Conversation.BaseURL); err != nil {
		return err
	}

	if c.API.Timeout <= 0 {
		return domainerrors.NewConfigurationError("API_TIMEOUT must be positive", c.API.Timeout.String())
	}

	return nil
}

func requireURL(name, value string) error {
	if value == "" {
		return domainerrors.NewConfigurationError(name+" is required", "")
	}
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return domainerrors.NewConfigurationError(name+" is not a valid URL", value)
	}
	return nil
}

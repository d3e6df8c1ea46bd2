package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/contextads/chat-service/internal/config"
	domainerrors "github.com/contextads/chat-service/internal/domain/errors"
)

// Factory constructs provider adapters lazily, one instance per provider
// type. Construction validates and initializes the adapter; the result is
// cached so repeated Create calls return the same instance.
type Factory struct {
	mu       sync.Mutex
	registry *Registry
	cfg      *config.Config
	active   map[config.ProviderType]Provider
	logger   zerolog.Logger
}

// NewFactory creates a factory over the given registry and application
// configuration.
func NewFactory(registry *Registry, cfg *config.Config) *Factory {
	return &Factory{
		registry: registry,
		cfg:      cfg,
		active:   make(map[config.ProviderType]Provider),
		logger:   log.With().Str("component", "providers").Logger(),
	}
}

// Create returns the cached adapter for the provider type, constructing
// and initializing it on first use.
func (f *Factory) Create(ctx context.Context, providerType config.ProviderType) (Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.active[providerType]; ok {
		return p, nil
	}

	p, ok := f.registry.Get(string(providerType))
	if !ok {
		return nil, domainerrors.NewInitializationError(
			string(providerType), "provider is not registered", nil)
	}

	providerCfg, ok := ExtractConfig(f.cfg, providerType)
	if !ok {
		return nil, domainerrors.NewInitializationError(
			string(providerType), "unsupported provider type", nil)
	}

	if !p.ValidateConfig(providerCfg) {
		return nil, domainerrors.NewInitializationError(
			string(providerType), "provider configuration is invalid", nil)
	}

	if err := p.Initialize(ctx, providerCfg); err != nil {
		return nil, domainerrors.NewInitializationError(
			string(providerType), "provider initialization failed", err)
	}

	f.active[providerType] = p
	f.logger.Info().Str("provider", string(providerType)).Msg("provider initialized")

	return p, nil
}

// ShutdownProvider tears down the cached adapter for the provider type,
// if any.
func (f *Factory) ShutdownProvider(providerType config.ProviderType) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.active[providerType]
	if !ok {
		return nil
	}
	delete(f.active, providerType)

	if err := p.Shutdown(); err != nil {
		return fmt.Errorf("failed to shut down provider %s: %w", providerType, err)
	}
	return nil
}

// ShutdownAll tears down every cached adapter. Individual shutdown
// failures are collected and do not prevent the remaining adapters from
// being torn down.
func (f *Factory) ShutdownAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var firstErr error
	for providerType, p := range f.active {
		if err := p.Shutdown(); err != nil {
			f.logger.Warn().
				Err(err).
				Str("provider", string(providerType)).
				Msg("provider shutdown failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to shut down provider %s: %w", providerType, err)
			}
		}
		delete(f.active, providerType)
	}

	return firstErr
}

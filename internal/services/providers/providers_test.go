package providers_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contextads/chat-service/internal/config"
	domainerrors "github.com/contextads/chat-service/internal/domain/errors"
	"github.com/contextads/chat-service/internal/domain/models"
	"github.com/contextads/chat-service/internal/services/providers"
)

// stubProvider is a scriptable providers.Provider implementation.
type stubProvider struct {
	name        string
	validateOK  bool
	initErr     error
	shutdownErr error

	initCalls     atomic.Int64
	shutdownCalls atomic.Int64
}

func newStubProvider(name string) *stubProvider {
	return &stubProvider{name: name, validateOK: true}
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Capabilities() providers.Capabilities {
	return providers.Capabilities{SupportedModalities: []string{"text"}}
}

func (s *stubProvider) ValidateConfig(cfg providers.ProviderConfig) bool { return s.validateOK }

func (s *stubProvider) Initialize(ctx context.Context, cfg providers.ProviderConfig) error {
	s.initCalls.Add(1)
	return s.initErr
}

func (s *stubProvider) SendMessage(ctx context.Context, msg *models.Message) (*models.Response, error) {
	return models.NewResponse(s.name, msg.ConversationID(), "stub response"), nil
}

func (s *stubProvider) IsHealthy(ctx context.Context) bool { return true }

func (s *stubProvider) Shutdown() error {
	s.shutdownCalls.Add(1)
	return s.shutdownErr
}

func testConfig() *config.Config {
	return &config.Config{
		Provider: config.ProviderConfig{
			Active: config.ProviderTypeAgent,
			Agent: config.AgentConfig{
				Endpoint:            "http://localhost:9000/agent",
				ProbeConversationID: "00000000-0000-4000-8000-000000000000",
				ProbeCreatorID:      "00000000-0000-4000-8000-000000000001",
			},
			OpenAI: config.OpenAIConfig{
				APIKey:       "sk-test",
				Model:        "gpt-4o-mini",
				Temperature:  0.7,
				MaxTokens:    1024,
				HistoryLimit: 20,
			},
		},
		API: config.APIConfig{Timeout: 5 * time.Second},
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	registry := providers.NewRegistry()

	p := newStubProvider("agent")
	registry.Register(p)

	got, ok := registry.Get("agent")
	require.True(t, ok)
	assert.Same(t, providers.Provider(p), got)

	_, ok = registry.Get("missing")
	assert.False(t, ok)
	assert.True(t, registry.IsRegistered("agent"))
	assert.False(t, registry.IsRegistered("missing"))
}

func TestRegistryListIsSorted(t *testing.T) {
	registry := providers.NewRegistry()
	registry.Register(newStubProvider("openai"))
	registry.Register(newStubProvider("agent"))

	assert.Equal(t, []string{"agent", "openai"}, registry.List())
}

func TestRegistryReRegisterOverwrites(t *testing.T) {
	registry := providers.NewRegistry()

	first := newStubProvider("agent")
	second := newStubProvider("agent")
	registry.Register(first)
	registry.Register(second)

	got, ok := registry.Get("agent")
	require.True(t, ok)
	assert.Same(t, providers.Provider(second), got)
	assert.Len(t, registry.List(), 1)
}

func TestExtractConfig(t *testing.T) {
	cfg := testConfig()

	agentCfg, ok := providers.ExtractConfig(cfg, config.ProviderTypeAgent)
	require.True(t, ok)
	require.NotNil(t, agentCfg.Agent)
	assert.Nil(t, agentCfg.OpenAI)
	assert.Equal(t, 5*time.Second, agentCfg.Timeout)

	openaiCfg, ok := providers.ExtractConfig(cfg, config.ProviderTypeOpenAI)
	require.True(t, ok)
	require.NotNil(t, openaiCfg.OpenAI)
	assert.Nil(t, openaiCfg.Agent)

	_, ok = providers.ExtractConfig(cfg, config.ProviderType("unknown"))
	assert.False(t, ok)
}

func TestFactoryCreatesLazySingleton(t *testing.T) {
	registry := providers.NewRegistry()
	stub := newStubProvider("agent")
	registry.Register(stub)

	factory := providers.NewFactory(registry, testConfig())

	first, err := factory.Create(context.Background(), config.ProviderTypeAgent)
	require.NoError(t, err)

	second, err := factory.Create(context.Background(), config.ProviderTypeAgent)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, stub.initCalls.Load())
}

func TestFactoryUnregisteredProvider(t *testing.T) {
	factory := providers.NewFactory(providers.NewRegistry(), testConfig())

	_, err := factory.Create(context.Background(), config.ProviderTypeAgent)
	require.Error(t, err)
	assert.True(t, domainerrors.IsInitializationError(err))
}

func TestFactoryInvalidConfig(t *testing.T) {
	registry := providers.NewRegistry()
	stub := newStubProvider("agent")
	stub.validateOK = false
	registry.Register(stub)

	factory := providers.NewFactory(registry, testConfig())

	_, err := factory.Create(context.Background(), config.ProviderTypeAgent)
	require.Error(t, err)
	assert.True(t, domainerrors.IsInitializationError(err))
	assert.EqualValues(t, 0, stub.initCalls.Load())
}

func TestFactoryInitializeFailureIsNotCached(t *testing.T) {
	registry := providers.NewRegistry()
	stub := newStubProvider("agent")
	stub.initErr = errors.New("endpoint unreachable")
	registry.Register(stub)

	factory := providers.NewFactory(registry, testConfig())

	_, err := factory.Create(context.Background(), config.ProviderTypeAgent)
	require.Error(t, err)
	assert.True(t, domainerrors.IsInitializationError(err))

	// A later attempt retries initialization.
	stub.initErr = nil
	_, err = factory.Create(context.Background(), config.ProviderTypeAgent)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stub.initCalls.Load())
}

func TestFactoryShutdownProvider(t *testing.T) {
	registry := providers.NewRegistry()
	stub := newStubProvider("agent")
	registry.Register(stub)

	factory := providers.NewFactory(registry, testConfig())
	_, err := factory.Create(context.Background(), config.ProviderTypeAgent)
	require.NoError(t, err)

	require.NoError(t, factory.ShutdownProvider(config.ProviderTypeAgent))
	assert.EqualValues(t, 1, stub.shutdownCalls.Load())

	// Shutting down an absent provider is a no-op.
	require.NoError(t, factory.ShutdownProvider(config.ProviderTypeAgent))
	assert.EqualValues(t, 1, stub.shutdownCalls.Load())
}

func TestFactoryShutdownAllIsolatesFailures(t *testing.T) {
	registry := providers.NewRegistry()
	failing := newStubProvider("agent")
	failing.shutdownErr = errors.New("busy")
	healthy := newStubProvider("openai")
	registry.Register(failing)
	registry.Register(healthy)

	factory := providers.NewFactory(registry, testConfig())
	_, err := factory.Create(context.Background(), config.ProviderTypeAgent)
	require.NoError(t, err)
	_, err = factory.Create(context.Background(), config.ProviderTypeOpenAI)
	require.NoError(t, err)

	err = factory.ShutdownAll()
	require.Error(t, err)

	// Both adapters were asked to shut down despite the failure.
	assert.EqualValues(t, 1, failing.shutdownCalls.Load())
	assert.EqualValues(t, 1, healthy.shutdownCalls.Load())
}

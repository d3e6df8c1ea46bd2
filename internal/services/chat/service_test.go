package chat_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contextads/chat-service/internal/config"
	domainerrors "github.com/contextads/chat-service/internal/domain/errors"
	"github.com/contextads/chat-service/internal/domain/models"
	"github.com/contextads/chat-service/internal/services/adsearch"
	"github.com/contextads/chat-service/internal/services/chat"
	"github.com/contextads/chat-service/internal/services/providers"
	"github.com/contextads/chat-service/internal/services/session"
)

// scriptedProvider is a providers.Provider whose SendMessage behavior is
// set per test.
type scriptedProvider struct {
	name         string
	sendErr      error
	lastMessage  *models.Message
	resetCalls   atomic.Int64
	healthy      bool
	replyContent string
}

func newScriptedProvider(name string) *scriptedProvider {
	return &scriptedProvider{name: name, healthy: true, replyContent: "scripted reply"}
}

func (p *scriptedProvider) Name() string                                         { return p.name }
func (p *scriptedProvider) Capabilities() providers.Capabilities                 { return providers.Capabilities{} }
func (p *scriptedProvider) ValidateConfig(cfg providers.ProviderConfig) bool     { return true }
func (p *scriptedProvider) Initialize(ctx context.Context, cfg providers.ProviderConfig) error {
	return nil
}
func (p *scriptedProvider) IsHealthy(ctx context.Context) bool { return p.healthy }
func (p *scriptedProvider) Shutdown() error                    { return nil }
func (p *scriptedProvider) ResetHistory()                      { p.resetCalls.Add(1) }

func (p *scriptedProvider) SendMessage(ctx context.Context, msg *models.Message) (*models.Response, error) {
	p.lastMessage = msg
	if p.sendErr != nil {
		return nil, p.sendErr
	}
	return models.NewResponse(p.name, msg.ConversationID(), p.replyContent), nil
}

// env bundles the wired service with its fakes.
type env struct {
	service  *chat.Service
	provider *scriptedProvider
	adServer *fakeAdServer
}

type fakeAdServer struct {
	*httptest.Server
	fail atomic.Bool
	ads  string
}

func newFakeAdServer(t *testing.T, ads string) *fakeAdServer {
	t.Helper()

	s := &fakeAdServer{ads: ads}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ads": ` + s.ads + `}`))
	}))
	t.Cleanup(s.Close)
	return s
}

func newTestEnv(t *testing.T, providerType config.ProviderType, conversationOK bool) *env {
	t.Helper()

	adServer := newFakeAdServer(t, `[{"id": "ad-1", "title": "AI Toolkit", "description": "Tools", "url": "https://example.com", "ad_type": "hyperlink", "similarity": 0.9}]`)

	conversationServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !conversationOK {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"conversation_id": "d64a4899-20e4-4ecd-a53e-057aceed54cf"}`))
	}))
	t.Cleanup(conversationServer.Close)

	adClient, err := adsearch.NewClient(&adsearch.ClientConfig{BaseURL: adServer.URL})
	require.NoError(t, err)
	component := adsearch.NewComponent(adClient, "creator-1")

	sessionClient, err := session.NewClient(&session.ClientConfig{BaseURL: conversationServer.URL})
	require.NoError(t, err)
	manager, err := session.NewManager(&session.ManagerConfig{
		Client:    sessionClient,
		CreatorID: "creator-1",
	})
	require.NoError(t, err)

	provider := newScriptedProvider(string(providerType))
	registry := providers.NewRegistry()
	registry.Register(provider)

	cfg := &config.Config{
		Provider: config.ProviderConfig{Active: providerType},
		API:      config.APIConfig{Timeout: 5 * time.Second},
	}
	factory := providers.NewFactory(registry, cfg)

	return &env{
		service:  chat.NewService(manager, component, factory, providerType),
		provider: provider,
		adServer: adServer,
	}
}

func TestAgentStrategy(t *testing.T) {
	env := newTestEnv(t, config.ProviderTypeAgent, true)

	result := env.service.SendMessage(context.Background(), "Tell me about AI tools")
	require.NotNil(t, result)

	assert.Equal(t, chat.SourceAgent, result.Source)
	assert.Equal(t, "scripted reply", result.Content)
	assert.Equal(t, "d64a4899-20e4-4ecd-a53e-057aceed54cf", result.ConversationID)
	// The agent provider retrieves ads itself; the result carries none.
	assert.Empty(t, result.Ads)

	// The provider received the raw text with the session join key.
	require.NotNil(t, env.provider.lastMessage)
	assert.Equal(t, "Tell me about AI tools", env.provider.lastMessage.Content)
	assert.Equal(t, "d64a4899-20e4-4ecd-a53e-057aceed54cf", env.provider.lastMessage.ConversationID())
}

func TestManualStrategyAugmentsPrompt(t *testing.T) {
	env := newTestEnv(t, config.ProviderTypeOpenAI, true)

	result := env.service.SendMessage(context.Background(), "Tell me about AI tools")
	require.NotNil(t, result)

	assert.Equal(t, chat.SourceManual, result.Source)
	require.Len(t, result.Ads, 1)
	assert.Equal(t, "AI Toolkit", result.Ads[0].Title)
	assert.Equal(t, "Tell me about AI tools", result.Metadata["originalText"])

	// The provider saw the augmented prompt.
	require.NotNil(t, env.provider.lastMessage)
	assert.Contains(t, env.provider.lastMessage.Content, "Tell me about AI tools")
	assert.Contains(t, env.provider.lastMessage.Content, "AI Toolkit")
}

func TestManualStrategyZeroAdsLeavesPromptUnchanged(t *testing.T) {
	env := newTestEnv(t, config.ProviderTypeOpenAI, true)
	env.adServer.ads = `[]`

	result := env.service.SendMessage(context.Background(), "What time is it?")
	require.NotNil(t, result)

	assert.Equal(t, chat.SourceManual, result.Source)
	assert.Empty(t, result.Ads)
	assert.Equal(t, "What time is it?", env.provider.lastMessage.Content)
}

func TestManualStrategyAdFailureProceedsUnaugmented(t *testing.T) {
	env := newTestEnv(t, config.ProviderTypeOpenAI, true)
	env.adServer.fail.Store(true)

	result := env.service.SendMessage(context.Background(), "hello")
	require.NotNil(t, result)

	assert.Equal(t, chat.SourceManual, result.Source)
	assert.Empty(t, result.Ads)
	assert.Equal(t, "hello", env.provider.lastMessage.Content)
}

func TestFallbackWhenProviderFails(t *testing.T) {
	env := newTestEnv(t, config.ProviderTypeAgent, true)
	env.provider.sendErr = domainerrors.NewRequestError("agent", "backend down", errors.New("boom"))

	result := env.service.SendMessage(context.Background(), "Tell me about AI tools")
	require.NotNil(t, result)

	assert.Equal(t, chat.SourceFallback, result.Source)
	assert.Contains(t, result.Content, "Tell me about AI tools")
	assert.NotEmpty(t, result.Metadata["error"])
}

func TestFallbackWhenEverythingFails(t *testing.T) {
	// Ad search down, provider down, conversation service down: the
	// pipeline must still resolve.
	env := newTestEnv(t, config.ProviderTypeOpenAI, false)
	env.adServer.fail.Store(true)
	env.provider.sendErr = errors.New("provider down")

	result := env.service.SendMessage(context.Background(), "Is anyone there?")
	require.NotNil(t, result)

	assert.Equal(t, chat.SourceFallback, result.Source)
	assert.Contains(t, result.Content, "Is anyone there?")
	assert.Contains(t, result.Content, "No specific resources were found")
}

func TestFallbackReusesCachedAds(t *testing.T) {
	env := newTestEnv(t, config.ProviderTypeOpenAI, true)

	// First exchange succeeds and caches ads.
	first := env.service.SendMessage(context.Background(), "Tell me about AI tools")
	require.Equal(t, chat.SourceManual, first.Source)
	require.Len(t, first.Ads, 1)

	// Second exchange: provider fails, ad search fails, but the cached
	// ads still reach the fallback response.
	env.adServer.fail.Store(true)
	env.provider.sendErr = errors.New("provider down")

	second := env.service.SendMessage(context.Background(), "More please")
	assert.Equal(t, chat.SourceFallback, second.Source)
	require.Len(t, second.Ads, 1)
	assert.Contains(t, second.Content, "AI Toolkit")
}

func TestEmptyTextResolvesToFallback(t *testing.T) {
	env := newTestEnv(t, config.ProviderTypeAgent, true)

	result := env.service.SendMessage(context.Background(), "   ")
	require.NotNil(t, result)

	assert.Equal(t, chat.SourceFallback, result.Source)
	assert.NotEmpty(t, result.Metadata["error"])
	// The provider was never consulted.
	assert.Nil(t, env.provider.lastMessage)
}

func TestResetConversation(t *testing.T) {
	env := newTestEnv(t, config.ProviderTypeOpenAI, true)

	first := env.service.SendMessage(context.Background(), "Tell me about AI tools")
	require.Equal(t, chat.SourceManual, first.Source)
	require.NotEmpty(t, env.service.CurrentAds())

	env.service.ResetConversation(context.Background())

	assert.Empty(t, env.service.CurrentAds())
	assert.Empty(t, env.service.AdHistory())
	assert.EqualValues(t, 1, env.provider.resetCalls.Load())
	assert.Nil(t, env.service.CurrentSession())
}

func TestCheckHealth(t *testing.T) {
	env := newTestEnv(t, config.ProviderTypeAgent, true)

	// Before the first message there is no session.
	health := env.service.CheckHealth(context.Background())
	assert.False(t, health.Session)
	assert.True(t, health.Provider)
	assert.True(t, health.AdSearch)
	assert.False(t, health.Overall())

	_ = env.service.SendMessage(context.Background(), "hello")

	health = env.service.CheckHealth(context.Background())
	assert.True(t, health.Session)
	assert.True(t, health.Overall())

	env.provider.healthy = false
	health = env.service.CheckHealth(context.Background())
	assert.False(t, health.Provider)
	assert.False(t, health.Overall())
}

func TestAdStatisticsFlowThrough(t *testing.T) {
	env := newTestEnv(t, config.ProviderTypeOpenAI, true)

	for i := 0; i < 3; i++ {
		_ = env.service.SendMessage(context.Background(), "query")
	}

	stats := env.service.AdStatistics()
	assert.Equal(t, 3, stats.TotalSearches)
	assert.Equal(t, 3, stats.TotalAdsFound)
}

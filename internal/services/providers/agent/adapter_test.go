package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
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
	"github.com/contextads/chat-service/internal/services/providers"
	"github.com/contextads/chat-service/internal/services/providers/agent"
)

const (
	testCreatorID      = "d64a4899-20e4-4ecd-a53e-057aceed54cf"
	testConversationID = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
)

// fakeRetriever is a scriptable agent.AdRetriever.
type fakeRetriever struct {
	res   *adsearch.SearchResponse
	err   error
	calls atomic.Int64

	lastQueries        []string
	lastCreatorID      string
	lastConversationID string
}

func (f *fakeRetriever) Search(ctx context.Context, queries []string, creatorID, conversationID string) (*adsearch.SearchResponse, error) {
	f.calls.Add(1)
	f.lastQueries = queries
	f.lastCreatorID = creatorID
	f.lastConversationID = conversationID
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

// agentBackend records the prompt posted to the agent endpoint.
type agentBackend struct {
	*httptest.Server
	fail       atomic.Bool
	lastPrompt string
}

func newAgentBackend(t *testing.T, reply string) *agentBackend {
	t.Helper()

	b := &agentBackend{}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			// Reachability probe.
			w.WriteHeader(http.StatusOK)
			return
		}
		if b.fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var req struct {
			Message string `json:"message"`
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		b.lastPrompt = req.Message

		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(b.Close)
	return b
}

func agentConfigFor(endpoint string) providers.ProviderConfig {
	return providers.ProviderConfig{
		Agent: &config.AgentConfig{
			Endpoint:            endpoint,
			ProbeConversationID: "00000000-0000-4000-8000-000000000000",
			ProbeCreatorID:      "00000000-0000-4000-8000-000000000001",
		},
		Timeout: 5 * time.Second,
	}
}

func userMessage(content, conversationID string) *models.Message {
	msg := models.NewMessage(models.RoleUser, content)
	if conversationID != "" {
		msg.Metadata[models.MetaConversationID] = conversationID
	}
	return msg
}

func TestSendMessageAugmentsPromptWithAds(t *testing.T) {
	backend := newAgentBackend(t, "here is my answer")
	retriever := &fakeRetriever{
		res: &adsearch.SearchResponse{
			Ads: []models.Ad{
				{ID: "ad-1", Title: "AI Toolkit", Description: "Developer tools", URL: "https://example.com/toolkit"},
			},
			ContentContext: "software development",
		},
	}

	adapter := agent.NewAdapter(retriever, testCreatorID)
	require.NoError(t, adapter.Initialize(context.Background(), agentConfigFor(backend.URL)))

	msg := userMessage("Tell me about AI tools", testConversationID)
	resp, err := adapter.SendMessage(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, "here is my answer", resp.Content)
	assert.Equal(t, testConversationID, resp.ConversationID)
	assert.Equal(t, agent.Name, resp.Source)

	// The retrieval used the message text, the configured creator and
	// the session conversation id.
	assert.Equal(t, []string{"Tell me about AI tools"}, retriever.lastQueries)
	assert.Equal(t, testCreatorID, retriever.lastCreatorID)
	assert.Equal(t, testConversationID, retriever.lastConversationID)

	// The prompt carries the original text plus the retrieved resources.
	assert.Contains(t, backend.lastPrompt, "Tell me about AI tools")
	assert.Contains(t, backend.lastPrompt, "AI Toolkit")
	assert.Contains(t, backend.lastPrompt, "https://example.com/toolkit")
	assert.Contains(t, backend.lastPrompt, "software development")
}

func TestSendMessageZeroAdsLeavesPromptUnchanged(t *testing.T) {
	backend := newAgentBackend(t, "plain answer")
	retriever := &fakeRetriever{res: &adsearch.SearchResponse{Ads: []models.Ad{}}}

	adapter := agent.NewAdapter(retriever, testCreatorID)
	require.NoError(t, adapter.Initialize(context.Background(), agentConfigFor(backend.URL)))

	msg := userMessage("What time is it?", testConversationID)
	_, err := adapter.SendMessage(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, "What time is it?", backend.lastPrompt)
}

func TestSendMessageRejectsNonUUIDConversationID(t *testing.T) {
	backend := newAgentBackend(t, "unused")
	retriever := &fakeRetriever{res: &adsearch.SearchResponse{}}

	adapter := agent.NewAdapter(retriever, testCreatorID)
	require.NoError(t, adapter.Initialize(context.Background(), agentConfigFor(backend.URL)))

	msg := userMessage("hello", "not-a-uuid")
	_, err := adapter.SendMessage(context.Background(), msg)
	require.Error(t, err)
	assert.True(t, domainerrors.IsRequestError(err))

	// No retrieval attempt was made for an unusable join key.
	assert.EqualValues(t, 0, retriever.calls.Load())
}

func TestSendMessageRejectsMissingConversationID(t *testing.T) {
	backend := newAgentBackend(t, "unused")
	retriever := &fakeRetriever{res: &adsearch.SearchResponse{}}

	adapter := agent.NewAdapter(retriever, testCreatorID)
	require.NoError(t, adapter.Initialize(context.Background(), agentConfigFor(backend.URL)))

	_, err := adapter.SendMessage(context.Background(), userMessage("hello", ""))
	require.Error(t, err)
	assert.True(t, domainerrors.IsRequestError(err))
}

func TestSendMessageRejectsEmptyContent(t *testing.T) {
	backend := newAgentBackend(t, "unused")
	retriever := &fakeRetriever{res: &adsearch.SearchResponse{}}

	adapter := agent.NewAdapter(retriever, testCreatorID)
	require.NoError(t, adapter.Initialize(context.Background(), agentConfigFor(backend.URL)))

	_, err := adapter.SendMessage(context.Background(), userMessage("   ", testConversationID))
	require.Error(t, err)
	assert.True(t, domainerrors.IsValidationError(err))
}

func TestSendMessageAdFailureYieldsTemplatedResponse(t *testing.T) {
	backend := newAgentBackend(t, "unused")
	retriever := &fakeRetriever{err: errors.New("ad search down")}

	adapter := agent.NewAdapter(retriever, testCreatorID)
	require.NoError(t, adapter.Initialize(context.Background(), agentConfigFor(backend.URL)))

	resp, err := adapter.SendMessage(context.Background(), userMessage("Tell me about AI tools", testConversationID))
	require.NoError(t, err)

	assert.Contains(t, resp.Content, "Tell me about AI tools")
	assert.Contains(t, resp.Content, "No specific resources were found")
	assert.Equal(t, true, resp.Metadata.Extra["fallback"])
}

func TestSendMessageAgentFailureListsRetrievedAds(t *testing.T) {
	backend := newAgentBackend(t, "unused")
	backend.fail.Store(true)
	retriever := &fakeRetriever{
		res: &adsearch.SearchResponse{
			Ads: []models.Ad{{ID: "ad-1", Title: "AI Toolkit", URL: "https://example.com/toolkit"}},
		},
	}

	adapter := agent.NewAdapter(retriever, testCreatorID)
	require.NoError(t, adapter.Initialize(context.Background(), agentConfigFor(backend.URL)))

	resp, err := adapter.SendMessage(context.Background(), userMessage("Tell me about AI tools", testConversationID))
	require.NoError(t, err)

	// Ads retrieved before the failure survive into the fallback text.
	assert.Contains(t, resp.Content, "Tell me about AI tools")
	assert.Contains(t, resp.Content, "AI Toolkit")
	assert.Equal(t, true, resp.Metadata.Extra["fallback"])
}

func TestInitializeFailsWhenEndpointUnreachable(t *testing.T) {
	retriever := &fakeRetriever{res: &adsearch.SearchResponse{}}
	adapter := agent.NewAdapter(retriever, testCreatorID)

	err := adapter.Initialize(context.Background(), agentConfigFor("http://127.0.0.1:1"))
	require.Error(t, err)
	assert.True(t, domainerrors.IsInitializationError(err))
}

func TestValidateConfig(t *testing.T) {
	adapter := agent.NewAdapter(&fakeRetriever{}, testCreatorID)

	assert.True(t, adapter.ValidateConfig(agentConfigFor("http://localhost:9000")))
	assert.False(t, adapter.ValidateConfig(providers.ProviderConfig{}))
	assert.False(t, adapter.ValidateConfig(agentConfigFor("ftp://localhost:9000")))

	cfg := agentConfigFor("http://localhost:9000")
	cfg.Agent.ProbeCreatorID = ""
	assert.False(t, adapter.ValidateConfig(cfg))
}

func TestIsHealthyUsesProbePair(t *testing.T) {
	backend := newAgentBackend(t, "ok")
	retriever := &fakeRetriever{res: &adsearch.SearchResponse{}}

	adapter := agent.NewAdapter(retriever, testCreatorID)
	cfg := agentConfigFor(backend.URL)
	require.NoError(t, adapter.Initialize(context.Background(), cfg))

	assert.True(t, adapter.IsHealthy(context.Background()))
	assert.Equal(t, cfg.Agent.ProbeCreatorID, retriever.lastCreatorID)
	assert.Equal(t, cfg.Agent.ProbeConversationID, retriever.lastConversationID)

	retriever.err = errors.New("down")
	assert.False(t, adapter.IsHealthy(context.Background()))
}

func TestIsHealthyBeforeInitialize(t *testing.T) {
	adapter := agent.NewAdapter(&fakeRetriever{}, testCreatorID)
	assert.False(t, adapter.IsHealthy(context.Background()))
}

func TestShutdownIsIdempotent(t *testing.T) {
	backend := newAgentBackend(t, "ok")
	adapter := agent.NewAdapter(&fakeRetriever{res: &adsearch.SearchResponse{}}, testCreatorID)
	require.NoError(t, adapter.Initialize(context.Background(), agentConfigFor(backend.URL)))

	require.NoError(t, adapter.Shutdown())
	require.NoError(t, adapter.Shutdown())

	_, err := adapter.SendMessage(context.Background(), userMessage("hello", testConversationID))
	require.Error(t, err)
	assert.True(t, domainerrors.IsRequestError(err))
}

func TestStreamMessageEmitsChunks(t *testing.T) {
	backend := newAgentBackend(t, "first line\nsecond line\n")
	retriever := &fakeRetriever{res: &adsearch.SearchResponse{}}

	adapter := agent.NewAdapter(retriever, testCreatorID)
	require.NoError(t, adapter.Initialize(context.Background(), agentConfigFor(backend.URL)))

	reader, err := adapter.StreamMessage(context.Background(), userMessage("hello", testConversationID))
	require.NoError(t, err)
	defer reader.Close()

	var types []providers.ChunkType
	var content string
	for {
		chunk, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		types = append(types, chunk.Type)
		content += chunk.Content
	}

	require.NotEmpty(t, types)
	assert.Equal(t, providers.ChunkTypeStart, types[0])
	assert.Equal(t, providers.ChunkTypeDone, types[len(types)-1])
	assert.Equal(t, "first line\nsecond line\n", content)
}

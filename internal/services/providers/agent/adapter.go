// Package agent provides the tool-augmented agent provider adapter. The
// adapter performs its own contextual-ad retrieval before delegating
// generation to the external agent endpoint.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	domainerrors "github.com/contextads/chat-service/internal/domain/errors"
	"github.com/contextads/chat-service/internal/domain/models"
	"github.com/contextads/chat-service/internal/services/adsearch"
	"github.com/contextads/chat-service/internal/services/providers"
)

const (
	// Name is the adapter name used for registration and strategy
	// selection.
	Name = "agent"

	// Version is the adapter version reported in the descriptor.
	Version = "1.0.0"
)

// AdRetriever is the ad search collaborator used for prompt augmentation
// and the health probe.
type AdRetriever interface {
	Search(ctx context.Context, queries []string, creatorID, conversationID string) (*adsearch.SearchResponse, error)
}

type agentRequest struct {
	Message string `json:"message"`
}

// Adapter implements providers.Provider for the external agent endpoint.
type Adapter struct {
	mu                  sync.Mutex
	ads                 AdRetriever
	creatorID           string
	endpoint            string
	probeConversationID string
	probeCreatorID      string
	http                *resty.Client
	initialized         bool
	logger              zerolog.Logger
}

// NewAdapter creates the agent adapter. creatorID is the session creator
// passed on every ad retrieval.
func NewAdapter(ads AdRetriever, creatorID string) *Adapter {
	return &Adapter{
		ads:       ads,
		creatorID: creatorID,
		logger:    log.With().Str("provider", Name).Logger(),
	}
}

// Name returns the adapter name.
func (a *Adapter) Name() string {
	return Name
}

// Capabilities returns the static capability descriptor.
func (a *Adapter) Capabilities() providers.Capabilities {
	return providers.Capabilities{
		Streaming:           true,
		FunctionCalling:     true,
		ContextRetention:    true,
		SupportedModalities: []string{"text"},
	}
}

// ValidateConfig checks the adapter-specific configuration without
// calling out.
func (a *Adapter) ValidateConfig(cfg providers.ProviderConfig) bool {
	if cfg.Agent == nil {
		return false
	}
	if !isHTTPURL(cfg.Agent.Endpoint) {
		return false
	}
	return cfg.Agent.ProbeConversationID != "" && cfg.Agent.ProbeCreatorID != ""
}

// Initialize stores the configuration and probes the agent endpoint for
// reachability. Re-initialization with the same endpoint is a no-op.
func (a *Adapter) Initialize(ctx context.Context, cfg providers.ProviderConfig) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.ValidateConfig(cfg) {
		return domainerrors.NewInitializationError(Name, "invalid agent configuration", nil)
	}

	if a.initialized && a.endpoint == cfg.Agent.Endpoint {
		return nil
	}

	httpClient := resty.New().SetRetryCount(cfg.RetryCount)
	if cfg.Timeout > 0 {
		httpClient.SetTimeout(cfg.Timeout)
	}

	// Reachability probe: any HTTP status means the endpoint answered.
	if _, err := httpClient.R().SetContext(ctx).Get(cfg.Agent.Endpoint); err != nil {
		return domainerrors.NewInitializationError(Name, "agent endpoint is unreachable", err)
	}

	a.endpoint = cfg.Agent.Endpoint
	a.probeConversationID = cfg.Agent.ProbeConversationID
	a.probeCreatorID = cfg.Agent.ProbeCreatorID
	a.http = httpClient
	a.initialized = true

	return nil
}

// SendMessage retrieves contextual ads for the message, augments the
// prompt with them and delegates generation to the agent endpoint. Ad
// retrieval or agent failures degrade to a templated local response
// instead of failing the call.
func (a *Adapter) SendMessage(ctx context.Context, msg *models.Message) (*models.Response, error) {
	if err := a.validateMessage(msg); err != nil {
		return nil, err
	}

	conversationID := msg.ConversationID()
	if !models.IsCanonicalUUID(conversationID) {
		// Ad retrieval is impossible without a valid session join key.
		return nil, domainerrors.NewRequestError(Name,
			"conversation id must be a canonical UUID", fmt.Errorf("got %q", conversationID))
	}

	start := time.Now()

	search, err := a.ads.Search(ctx, []string{msg.Content}, a.creatorID, conversationID)
	if err != nil {
		a.logger.Warn().Err(err).Msg("ad retrieval failed, returning templated response")
		return a.templatedResponse(msg, conversationID, nil, start, err), nil
	}

	prompt := buildAugmentedPrompt(msg.Content, search)

	res, err := a.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(&agentRequest{Message: prompt}).
		Post(a.endpoint)
	if err != nil {
		a.logger.Warn().Err(err).Msg("agent call failed, returning templated response")
		return a.templatedResponse(msg, conversationID, search.Ads, start, err), nil
	}
	if !res.IsSuccess() {
		statusErr := fmt.Errorf("agent returned status %d", res.StatusCode())
		a.logger.Warn().Err(statusErr).Msg("agent call failed, returning templated response")
		return a.templatedResponse(msg, conversationID, search.Ads, start, statusErr), nil
	}

	response := models.NewResponse(Name, conversationID, res.String())
	response.Metadata = models.ResponseMetadata{
		ResponseTimeMs: time.Since(start).Milliseconds(),
		Extra: map[string]interface{}{
			"adsRetrieved": len(search.Ads),
		},
	}
	return response, nil
}

// StreamMessage performs the same retrieval and augmentation as
// SendMessage and streams the agent response body line by line.
func (a *Adapter) StreamMessage(ctx context.Context, msg *models.Message) (providers.StreamReader, error) {
	if err := a.validateMessage(msg); err != nil {
		return nil, err
	}

	conversationID := msg.ConversationID()
	if !models.IsCanonicalUUID(conversationID) {
		return nil, domainerrors.NewRequestError(Name,
			"conversation id must be a canonical UUID", fmt.Errorf("got %q", conversationID))
	}

	search, err := a.ads.Search(ctx, []string{msg.Content}, a.creatorID, conversationID)
	if err != nil {
		return nil, err
	}

	prompt := buildAugmentedPrompt(msg.Content, search)

	res, err := a.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(&agentRequest{Message: prompt}).
		SetDoNotParseResponse(true).
		Post(a.endpoint)
	if err != nil {
		return nil, domainerrors.NewRequestError(Name, "agent stream request failed", err)
	}
	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		_ = res.RawBody().Close()
		return nil, domainerrors.NewRequestError(Name,
			fmt.Sprintf("agent returned status %d", res.StatusCode()), nil)
	}

	return newStreamReader(res.RawBody()), nil
}

// IsHealthy runs the ad-retrieval probe against the held-out test
// session/creator pair.
func (a *Adapter) IsHealthy(ctx context.Context) bool {
	a.mu.Lock()
	initialized := a.initialized
	probeCreator := a.probeCreatorID
	probeConversation := a.probeConversationID
	a.mu.Unlock()

	if !initialized || a.ads == nil {
		return false
	}

	_, err := a.ads.Search(ctx, []string{"health check"}, probeCreator, probeConversation)
	return err == nil
}

// Shutdown releases the held configuration. Safe to call multiple times.
func (a *Adapter) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.initialized = false
	a.http = nil
	a.endpoint = ""
	return nil
}

func (a *Adapter) validateMessage(msg *models.Message) error {
	if msg == nil || !msg.HasContent() {
		return domainerrors.NewValidationError("message content must not be empty", "")
	}
	if !msg.Role.Valid() {
		return domainerrors.NewValidationError("unknown message role", string(msg.Role))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.initialized {
		return domainerrors.NewRequestError(Name, "adapter is not initialized", nil)
	}
	return nil
}

// templatedResponse builds the degraded local response: it echoes the
// user's question and lists any ads retrieved before the failure.
func (a *Adapter) templatedResponse(msg *models.Message, conversationID string, ads []models.Ad, start time.Time, cause error) *models.Response {
	var b strings.Builder
	fmt.Fprintf(&b, "You asked: %q.\n\n", msg.Content)

	if len(ads) > 0 {
		b.WriteString("Here are some resources that may help:\n")
		writeAdList(&b, ads)
	} else {
		b.WriteString("No specific resources were found for your question.")
	}

	response := models.NewResponse(Name, conversationID, b.String())
	response.Metadata = models.ResponseMetadata{
		ResponseTimeMs: time.Since(start).Milliseconds(),
		Extra: map[string]interface{}{
			"fallback": true,
			"error":    cause.Error(),
		},
	}
	return response
}

// buildAugmentedPrompt appends the returned content context and a
// numbered resource list to the original text. Zero ads and no context
// leave the prompt unchanged.
func buildAugmentedPrompt(text string, search *adsearch.SearchResponse) string {
	if search == nil || (len(search.Ads) == 0 && search.ContentContext == "") {
		return text
	}

	var b strings.Builder
	b.WriteString(text)

	if search.ContentContext != "" {
		b.WriteString("\n\n")
		b.WriteString(search.ContentContext)
	}

	if len(search.Ads) > 0 {
		b.WriteString("\n\nRelevant resources:\n")
		writeAdList(&b, search.Ads)
	}

	return b.String()
}

func writeAdList(b *strings.Builder, ads []models.Ad) {
	for i, ad := range ads {
		fmt.Fprintf(b, "%d. %s - %s (%s)\n", i+1, ad.Title, ad.Description, ad.URL)
	}
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

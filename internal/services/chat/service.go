// Package chat orchestrates the chat pipeline: session management, ad
// retrieval, provider dispatch and the degraded fallback path.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/contextads/chat-service/internal/config"
	domainerrors "github.com/contextads/chat-service/internal/domain/errors"
	"github.com/contextads/chat-service/internal/domain/models"
	"github.com/contextads/chat-service/internal/services/adsearch"
	"github.com/contextads/chat-service/internal/services/providers"
	"github.com/contextads/chat-service/internal/services/session"
)

// Response sources, in fallback order.
const (
	SourceAgent    = "agent"
	SourceManual   = "manual"
	SourceFallback = "fallback"
)

// Result is the orchestrated chat outcome. SendMessage always resolves
// to a Result; failures surface in the source and metadata rather than
// as errors.
type Result struct {
	Content        string                 `json:"content"`
	Source         string                 `json:"source"`
	ConversationID string                 `json:"conversationId"`
	Ads            []models.Ad            `json:"ads"`
	ResponseTimeMs int64                  `json:"responseTimeMs"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// Health is the aggregated component health snapshot.
type Health struct {
	Session  bool `json:"session"`
	Provider bool `json:"provider"`
	AdSearch bool `json:"adSearch"`
}

// Overall reports whether every component is healthy.
func (h Health) Overall() bool {
	return h.Session && h.Provider && h.AdSearch
}

// historyResetter is implemented by providers that retain conversation
// history locally.
type historyResetter interface {
	ResetHistory()
}

// Service wires the session manager, the ad search component and the
// provider factory into the message pipeline.
type Service struct {
	sessions     *session.Manager
	ads          *adsearch.Component
	factory      *providers.Factory
	providerType config.ProviderType
	logger       zerolog.Logger
}

// NewService creates the chat orchestration service.
func NewService(sessions *session.Manager, ads *adsearch.Component, factory *providers.Factory, providerType config.ProviderType) *Service {
	return &Service{
		sessions:     sessions,
		ads:          ads,
		factory:      factory,
		providerType: providerType,
		logger:       log.With().Str("component", "chat").Logger(),
	}
}

// SendMessage runs the three-tier pipeline for one user message. Tier
// one delegates to a self-retrieving agent provider; tier two manually
// augments the prompt with retrieved ads for direct-completion
// providers; tier three produces a local fallback response. The call
// always resolves to a Result.
func (s *Service) SendMessage(ctx context.Context, text string) *Result {
	start := time.Now()

	if strings.TrimSpace(text) == "" {
		return s.fallbackResult(text, start,
			domainerrors.NewValidationError("message text must not be empty", ""))
	}

	sess, err := s.sessions.InitializeConversation(ctx)
	if err != nil {
		return s.fallbackResult(text, start, err)
	}

	provider, err := s.factory.Create(ctx, s.providerType)
	if err != nil {
		return s.fallbackResult(text, start, err)
	}

	msg := models.NewMessage(models.RoleUser, text)
	msg.Metadata[models.MetaConversationID] = sess.ConversationID

	if s.providerType == config.ProviderTypeAgent {
		return s.sendAgent(ctx, provider, msg, start)
	}
	return s.sendManual(ctx, provider, msg, start)
}

// sendAgent delegates to a provider that performs its own ad retrieval.
// The result carries no ads of its own; retrieval happened inside the
// provider.
func (s *Service) sendAgent(ctx context.Context, provider providers.Provider, msg *models.Message, start time.Time) *Result {
	resp, err := provider.SendMessage(ctx, msg)
	if err != nil {
		s.logger.Warn().Err(err).Str("provider", provider.Name()).Msg("agent strategy failed")
		return s.fallbackResult(msg.Content, start, err)
	}

	return &Result{
		Content:        resp.Content,
		Source:         SourceAgent,
		ConversationID: resp.ConversationID,
		Ads:            []models.Ad{},
		ResponseTimeMs: time.Since(start).Milliseconds(),
		Metadata: map[string]interface{}{
			"provider": provider.Name(),
		},
	}
}

// sendManual retrieves ads itself, augments the prompt and sends it to a
// direct-completion provider. Ad retrieval failure degrades to the
// unaugmented prompt; provider failure falls through to tier three.
func (s *Service) sendManual(ctx context.Context, provider providers.Provider, msg *models.Message, start time.Time) *Result {
	ads, err := s.ads.SearchForMessage(ctx, msg)
	if err != nil {
		s.logger.Warn().Err(err).Msg("ad retrieval failed, proceeding without augmentation")
		ads = nil
	}

	augmented := models.NewMessage(msg.Role, buildAugmentedPrompt(msg.Content, ads))
	augmented.Metadata[models.MetaConversationID] = msg.ConversationID()

	resp, err := provider.SendMessage(ctx, augmented)
	if err != nil {
		s.logger.Warn().Err(err).Str("provider", provider.Name()).Msg("manual strategy failed")
		return s.fallbackResult(msg.Content, start, err)
	}

	if ads == nil {
		ads = []models.Ad{}
	}
	return &Result{
		Content:        resp.Content,
		Source:         SourceManual,
		ConversationID: msg.ConversationID(),
		Ads:            ads,
		ResponseTimeMs: time.Since(start).Milliseconds(),
		Metadata: map[string]interface{}{
			"provider":     provider.Name(),
			"originalText": msg.Content,
			"adsRetrieved": len(ads),
		},
	}
}

// fallbackResult is tier three: a locally composed response that echoes
// the question and reuses whatever ads are already cached from earlier
// searches. It never fails.
func (s *Service) fallbackResult(text string, start time.Time, cause error) *Result {
	ads := s.ads.CurrentAds()

	var b strings.Builder
	fmt.Fprintf(&b, "You asked: %q.\n\n", text)
	if len(ads) > 0 {
		b.WriteString("Here are some resources that may help:\n")
		for i, ad := range ads {
			fmt.Fprintf(&b, "%d. %s - %s (%s)\n", i+1, ad.Title, ad.Description, ad.URL)
		}
	} else {
		b.WriteString("No specific resources were found for your question.")
	}

	conversationID := ""
	if sess := s.sessions.CurrentSession(); sess != nil {
		conversationID = sess.ConversationID
	}

	metadata := map[string]interface{}{}
	if cause != nil {
		metadata["error"] = cause.Error()
	}

	return &Result{
		Content:        b.String(),
		Source:         SourceFallback,
		ConversationID: conversationID,
		Ads:            ads,
		ResponseTimeMs: time.Since(start).Milliseconds(),
		Metadata:       metadata,
	}
}

// StreamMessage runs the agent pipeline in streaming mode. Providers
// without streaming support yield a validation error.
func (s *Service) StreamMessage(ctx context.Context, text string) (providers.StreamReader, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domainerrors.NewValidationError("message text must not be empty", "")
	}

	sess, err := s.sessions.InitializeConversation(ctx)
	if err != nil {
		return nil, err
	}

	provider, err := s.factory.Create(ctx, s.providerType)
	if err != nil {
		return nil, err
	}

	streamer, ok := provider.(providers.Streamer)
	if !ok || !provider.Capabilities().Streaming {
		return nil, domainerrors.NewValidationError("provider does not support streaming", provider.Name())
	}

	msg := models.NewMessage(models.RoleUser, text)
	msg.Metadata[models.MetaConversationID] = sess.ConversationID

	return streamer.StreamMessage(ctx, msg)
}

// ResetConversation clears the session, the ad state and any provider-
// retained history. Idempotent.
func (s *Service) ResetConversation(ctx context.Context) {
	s.sessions.ResetConversation(ctx)
	s.ads.Reset()

	if provider, err := s.factory.Create(ctx, s.providerType); err == nil {
		if r, ok := provider.(historyResetter); ok {
			r.ResetHistory()
		}
	}
}

// CheckHealth gathers per-component health concurrently and returns the
// aggregate snapshot.
func (s *Service) CheckHealth(ctx context.Context) Health {
	var health Health
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		health.Session = s.sessions.UpdateConversationHealth()
	}()
	go func() {
		defer wg.Done()
		provider, err := s.factory.Create(ctx, s.providerType)
		health.Provider = err == nil && provider.IsHealthy(ctx)
	}()
	wg.Wait()

	health.AdSearch = s.ads.Healthy()
	return health
}

// CurrentAds returns the ads from the most recent successful search.
func (s *Service) CurrentAds() []models.Ad {
	return s.ads.CurrentAds()
}

// AdHistory returns the rolling search history, oldest first.
func (s *Service) AdHistory() []adsearch.Result {
	return s.ads.History()
}

// AdStatistics returns aggregate statistics over the rolling history.
func (s *Service) AdStatistics() adsearch.Stats {
	return s.ads.Statistics()
}

// CurrentSession returns a copy of the active session, or nil.
func (s *Service) CurrentSession() *models.Session {
	return s.sessions.CurrentSession()
}

// buildAugmentedPrompt appends a numbered resource list to the prompt.
// Zero ads leave the prompt unchanged.
func buildAugmentedPrompt(text string, ads []models.Ad) string {
	if len(ads) == 0 {
		return text
	}

	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\nRelevant resources:\n")
	for i, ad := range ads {
		fmt.Fprintf(&b, "%d. %s - %s (%s)\n", i+1, ad.Title, ad.Description, ad.URL)
	}
	return b.String()
}

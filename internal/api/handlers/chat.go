// Package handlers provides HTTP handlers for the API.
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contextads/chat-service/internal/api/dto"
	"github.com/contextads/chat-service/internal/api/middleware"
	"github.com/contextads/chat-service/internal/api/sse"
	domainerrors "github.com/contextads/chat-service/internal/domain/errors"
	"github.com/contextads/chat-service/internal/services/chat"
	"github.com/contextads/chat-service/internal/services/providers"
)

// ChatHandler handles the chat endpoints.
type ChatHandler struct {
	service  *chat.Service
	registry *providers.Registry
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(service *chat.Service, registry *providers.Registry) *ChatHandler {
	return &ChatHandler{
		service:  service,
		registry: registry,
	}
}

// SendMessage handles POST /api/v1/chat/messages
// @Summary Send a message
// @Description Runs the chat pipeline for one user message and returns the resolved response (supports SSE streaming)
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body dto.SendMessageRequest true "Message content"
// @Success 200 {object} dto.SendMessageResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/chat/messages [post]
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, domainerrors.NewValidationError("invalid request body", err.Error()))
		return
	}

	if req.Stream {
		h.streamMessage(c, req.Content)
		return
	}

	result := h.service.SendMessage(c.Request.Context(), req.Content)

	c.JSON(http.StatusOK, dto.SendMessageResponse{
		Content:        result.Content,
		Source:         result.Source,
		ConversationID: result.ConversationID,
		Ads:            result.Ads,
		ResponseTimeMs: result.ResponseTimeMs,
		Metadata:       result.Metadata,
	})
}

// streamMessage relays the provider stream as SSE events.
func (h *ChatHandler) streamMessage(c *gin.Context, content string) {
	reader, err := h.service.StreamMessage(c.Request.Context(), content)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	defer reader.Close()

	writer, err := sse.NewWriter(c.Writer)
	if err != nil {
		middleware.HandleError(c, domainerrors.NewValidationError("streaming not supported", err.Error()))
		return
	}

	for {
		chunk, err := reader.Read()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				_ = writer.WriteStreamError("STREAM_ERROR", "stream read failed", err.Error())
			}
			break
		}

		switch chunk.Type {
		case providers.ChunkTypeStart:
			sess := h.service.CurrentSession()
			conversationID := ""
			if sess != nil {
				conversationID = sess.ConversationID
			}
			_ = writer.WriteStreamStart("", conversationID)
		case providers.ChunkTypeContent:
			_ = writer.WriteTextStream(chunk.Content)
		case providers.ChunkTypeError:
			details := ""
			if chunk.Err != nil {
				details = chunk.Err.Error()
			}
			_ = writer.WriteStreamError("STREAM_ERROR", "provider stream failed", details)
		case providers.ChunkTypeDone:
			_ = writer.WriteStreamEnd()
		}
	}

	_ = writer.WriteDone()
}

// Reset handles POST /api/v1/chat/reset
// @Summary Reset the conversation
// @Description Clears the session, retained provider history and ad state
// @Tags Chat
// @Produce json
// @Success 200 {object} dto.ResetResponse
// @Router /api/v1/chat/reset [post]
func (h *ChatHandler) Reset(c *gin.Context) {
	h.service.ResetConversation(c.Request.Context())
	c.JSON(http.StatusOK, dto.ResetResponse{Reset: true})
}

// GetAds handles GET /api/v1/chat/ads
// @Summary Get ad search state
// @Description Returns the current ads, the rolling search history and aggregate statistics
// @Tags Chat
// @Produce json
// @Success 200 {object} dto.AdsResponse
// @Router /api/v1/chat/ads [get]
func (h *ChatHandler) GetAds(c *gin.Context) {
	c.JSON(http.StatusOK, dto.AdsResponse{
		Current: h.service.CurrentAds(),
		History: h.service.AdHistory(),
		Stats:   h.service.AdStatistics(),
	})
}

// GetSession handles GET /api/v1/chat/session
// @Summary Get the active session
// @Description Returns the active conversation session, initializing one if needed
// @Tags Chat
// @Produce json
// @Success 200 {object} dto.SessionResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/chat/session [get]
func (h *ChatHandler) GetSession(c *gin.Context) {
	sess := h.service.CurrentSession()
	if sess == nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Code:    "NOT_FOUND",
			Message: "no active session",
		})
		return
	}

	c.JSON(http.StatusOK, dto.SessionResponse{
		ConversationID:     sess.ConversationID,
		BackendInitialized: sess.BackendInitialized,
		IsHealthy:          sess.IsHealthy,
		Timestamp:          sess.Timestamp,
	})
}

// GetProviders handles GET /api/v1/chat/providers
// @Summary List provider adapters
// @Description Returns the registered provider adapters and their capabilities
// @Tags Chat
// @Produce json
// @Success 200 {object} dto.GetProvidersResponse
// @Router /api/v1/chat/providers [get]
func (h *ChatHandler) GetProviders(c *gin.Context) {
	names := h.registry.List()
	resp := dto.GetProvidersResponse{Providers: make([]dto.ProviderResponse, 0, len(names))}

	for _, name := range names {
		p, ok := h.registry.Get(name)
		if !ok {
			continue
		}
		resp.Providers = append(resp.Providers, dto.ProviderResponse{
			Name:         name,
			Active:       p.IsHealthy(c.Request.Context()),
			Capabilities: p.Capabilities(),
		})
	}

	c.JSON(http.StatusOK, resp)
}

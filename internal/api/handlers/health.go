// Package handlers provides HTTP handlers for the API.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contextads/chat-service/internal/api/dto"
	"github.com/contextads/chat-service/internal/core/cache"
	"github.com/contextads/chat-service/internal/services/chat"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	service     *chat.Service
	cacheClient cache.Client
}

// NewHealthHandler creates a new HealthHandler. cacheClient may be nil
// when the session snapshot cache is disabled.
func NewHealthHandler(service *chat.Service, cacheClient cache.Client) *HealthHandler {
	return &HealthHandler{
		service:     service,
		cacheClient: cacheClient,
	}
}

// Health handles the /health endpoint.
// @Summary Health check
// @Description Returns the overall health status and component statuses
// @Tags Health
// @Produce json
// @Success 200 {object} dto.HealthResponse "Service healthy"
// @Failure 503 {object} dto.HealthResponse "Service unhealthy"
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	health := h.service.CheckHealth(c.Request.Context())

	components := map[string]string{
		"session":  statusString(health.Session),
		"provider": statusString(health.Provider),
		"adsearch": statusString(health.AdSearch),
	}

	healthy := health.Overall()
	if h.cacheClient != nil {
		cacheHealthy := h.cacheClient.Ping(c.Request.Context()) == nil
		components["cache"] = statusString(cacheHealthy)
		healthy = healthy && cacheHealthy
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !healthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, dto.HealthResponse{
		Status:     status,
		Components: components,
	})
}

// Ready handles the /ready endpoint.
// @Summary Readiness check
// @Description Returns 200 if the service is ready to accept traffic
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string "Service ready"
// @Failure 503 {object} map[string]string "Service not ready"
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.cacheClient != nil {
		if err := h.cacheClient.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": "cache unavailable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

// Live handles the /live endpoint.
// @Summary Liveness check
// @Description Returns 200 if the service is alive
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string "Service alive"
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

func statusString(healthy bool) string {
	if healthy {
		return "healthy"
	}
	return "unhealthy"
}

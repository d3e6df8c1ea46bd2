// Package routes defines the HTTP routes for the contextual-ad chat service.
package routes

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/contextads/chat-service/internal/api/handlers"
	"github.com/contextads/chat-service/internal/api/middleware"
)

// Config holds the dependencies for setting up routes.
type Config struct {
	HealthHandler *handlers.HealthHandler
	ChatHandler   *handlers.ChatHandler
}

// Setup configures all routes on the Gin engine.
func Setup(r *gin.Engine, cfg *Config) {
	// Health check routes
	r.GET("/health", cfg.HealthHandler.Health)
	r.GET("/ready", cfg.HealthHandler.Ready)
	r.GET("/live", cfg.HealthHandler.Live)

	// Swagger documentation
	r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	{
		chat := v1.Group("/chat")
		{
			chat.POST("/messages", cfg.ChatHandler.SendMessage)
			chat.POST("/reset", cfg.ChatHandler.Reset)
			chat.GET("/ads", cfg.ChatHandler.GetAds)
			chat.GET("/session", cfg.ChatHandler.GetSession)
			chat.GET("/providers", cfg.ChatHandler.GetProviders)
		}
	}
}

// SetupWithMiddleware sets up routes with common middleware.
func SetupWithMiddleware(r *gin.Engine, cfg *Config, loggingMw *middleware.LoggingMiddleware, errorMw *middleware.ErrorMiddleware) {
	// Apply global middleware
	r.Use(loggingMw.Logger())
	r.Use(errorMw.Recovery())
	r.Use(gin.Recovery())

	// Setup routes
	Setup(r, cfg)
}

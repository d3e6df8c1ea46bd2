// Package main is the entry point for the contextual-ad chat service.
// @title Contextual-Ad Chat Service API
// @version 1.0
// @description Demo chat service with pluggable AI providers and contextual-ad augmentation

// @contact.name API Support
// @contact.url https://github.com/contextads/chat-service

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "github.com/contextads/chat-service/docs"
	"github.com/contextads/chat-service/internal/api/handlers"
	"github.com/contextads/chat-service/internal/api/middleware"
	"github.com/contextads/chat-service/internal/api/routes"
	"github.com/contextads/chat-service/internal/config"
	"github.com/contextads/chat-service/internal/core/cache"
	rediscache "github.com/contextads/chat-service/internal/infrastructure/cache/redis"
	"github.com/contextads/chat-service/internal/services/adsearch"
	"github.com/contextads/chat-service/internal/services/chat"
	"github.com/contextads/chat-service/internal/services/providers"
	agentprovider "github.com/contextads/chat-service/internal/services/providers/agent"
	openaiprovider "github.com/contextads/chat-service/internal/services/providers/openai"
	"github.com/contextads/chat-service/internal/services/session"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	setupLogging(cfg.Log)

	// Session snapshot cache is optional; startup continues without it.
	cacheClient := createCacheClient(cfg.Cache)
	if cacheClient != nil {
		defer cacheClient.Close()
	}

	// Ad search
	adClient, err := adsearch.NewClient(&adsearch.ClientConfig{
		BaseURL:    cfg.Advertising.BaseURL,
		Timeout:    cfg.API.Timeout,
		RetryCount: cfg.API.MaxRetries,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create ad search client")
	}
	adComponent := adsearch.NewComponent(adClient, cfg.Advertising.CreatorID)

	// Conversation session manager
	sessionClient, err := session.NewClient(&session.ClientConfig{
		BaseURL:    cfg.Conversation.BaseURL,
		Timeout:    cfg.API.Timeout,
		RetryCount: cfg.API.MaxRetries,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create conversation client")
	}

	sessionManager, err := session.NewManager(&session.ManagerConfig{
		Client:         sessionClient,
		CreatorID:      cfg.Advertising.CreatorID,
		AdPreferences:  cfg.Advertising.Preferences(),
		AutoInitialize: cfg.Conversation.AutoInitialize,
		Cache:          cacheClient,
		CacheTTL:       cfg.Conversation.CacheTTL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create session manager")
	}

	// Providers
	registry := providers.NewRegistry()
	registry.Register(agentprovider.NewAdapter(adClient, cfg.Advertising.CreatorID))
	registry.Register(openaiprovider.NewAdapter())

	factory := providers.NewFactory(registry, cfg)
	defer func() {
		if err := factory.ShutdownAll(); err != nil {
			log.Warn().Err(err).Msg("provider shutdown failed")
		}
	}()

	// Orchestration
	chatService := chat.NewService(sessionManager, adComponent, factory, cfg.Provider.Active)

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	router := setupRouter(chatService, registry, cacheClient)

	srv := &http.Server{
		Addr:    cfg.Server.Address(),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", cfg.Server.Address()).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}

// setupLogging configures the global zerolog logger.
func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// createCacheClient connects to Redis when the cache is enabled. A
// connection failure is logged and the service runs without a snapshot
// cache.
func createCacheClient(cfg config.CacheConfig) cache.Client {
	if !cfg.Enabled {
		return nil
	}

	client, err := rediscache.NewClient(rediscache.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		log.Warn().Err(err).Msg("cache unavailable, continuing without session snapshot cache")
		return nil
	}
	return client
}

// setupRouter creates and configures the Gin router.
func setupRouter(chatService *chat.Service, registry *providers.Registry, cacheClient cache.Client) *gin.Engine {
	router := gin.New()

	loggingMw := middleware.NewLoggingMiddleware()
	errorMw := middleware.NewErrorMiddleware()
	router.Use(middleware.NewCORSMiddleware(middleware.DefaultCORSConfig()))

	healthHandler := handlers.NewHealthHandler(chatService, cacheClient)
	chatHandler := handlers.NewChatHandler(chatService, registry)

	routesCfg := &routes.Config{
		HealthHandler: healthHandler,
		ChatHandler:   chatHandler,
	}

	routes.SetupWithMiddleware(router, routesCfg, loggingMw, errorMw)

	return router
}

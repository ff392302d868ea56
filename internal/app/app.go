package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/finsignal/finsignal/internal/common"
	"github.com/finsignal/finsignal/internal/handlers"
	"github.com/finsignal/finsignal/internal/interfaces"
	"github.com/finsignal/finsignal/internal/models"
	"github.com/finsignal/finsignal/internal/services/cache"
	"github.com/finsignal/finsignal/internal/services/dedup"
	"github.com/finsignal/finsignal/internal/services/enrichment"
	"github.com/finsignal/finsignal/internal/services/pipeline"
	"github.com/finsignal/finsignal/internal/services/ratelimit"
	"github.com/finsignal/finsignal/internal/services/sources"
	"github.com/finsignal/finsignal/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	Adapters     map[string]interfaces.SourceAdapter
	RateLimiter  interfaces.RateLimiter
	DedupService *dedup.Service
	Gateway      *enrichment.Gateway
	Orchestrator *pipeline.Orchestrator
	CacheJanitor *cache.Janitor

	// HTTP handlers
	WSHandler       *handlers.WebSocketHandler
	AnalysisHandler *handlers.AnalysisHandler
}

// New wires the application graph from configuration.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	storageManager, err := storage.NewManager(logger, &config.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	adapters, err := sources.BuildAdapters(config.Scraper, logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to build source adapters: %w", err)
	}
	if len(adapters) == 0 {
		storageManager.Close()
		return nil, fmt.Errorf("no sources configured")
	}

	providers, err := buildProviders(&config.LLM, logger)
	if err != nil {
		storageManager.Close()
		return nil, err
	}

	observer := activityObserver(storageManager.ActivityStorage(), logger)
	gateway := enrichment.NewGateway(providers, storageManager.CacheStorage(),
		config.LLM, config.Cache, observer, logger)

	wsHandler := handlers.NewWebSocketHandler(logger)

	transport := &http.Client{Timeout: config.Scraper.RequestTimeout}
	limiter := ratelimit.NewLimiter(config.Scraper.DefaultLimit, config.Scraper.OriginLimits, logger)
	dedupService := dedup.NewService(logger)

	orchestrator := pipeline.NewOrchestrator(
		adapters, limiter, transport, dedupService, gateway,
		storageManager, wsHandler, config.Pipeline,
		config.WebSocket.ProgressInterval, logger)

	janitor := cache.NewJanitor(storageManager.CacheStorage(), config.Cache.JanitorSchedule, logger)

	analysisHandler := handlers.NewAnalysisHandler(
		orchestrator, storageManager, adapters,
		config.Pipeline, config.Pipeline.DefaultModel, logger)

	return &App{
		Config:          config,
		Logger:          logger,
		StorageManager:  storageManager,
		Adapters:        adapters,
		RateLimiter:     limiter,
		DedupService:    dedupService,
		Gateway:         gateway,
		Orchestrator:    orchestrator,
		CacheJanitor:    janitor,
		WSHandler:       wsHandler,
		AnalysisHandler: analysisHandler,
	}, nil
}

// Start launches background services.
func (a *App) Start() error {
	return a.CacheJanitor.Start()
}

// Close stops background services and releases resources.
func (a *App) Close() error {
	a.CacheJanitor.Stop()
	if a.StorageManager != nil {
		return a.StorageManager.Close()
	}
	return nil
}

// buildProviders constructs every model provider with an API key configured.
// At least one is required; a session naming a model on a missing provider
// fails at request validation.
func buildProviders(cfg *common.LLMConfig, logger arbor.ILogger) (map[string]interfaces.LLMProvider, error) {
	providers := make(map[string]interfaces.LLMProvider)

	if cfg.OpenAI.APIKey != "" {
		provider, err := enrichment.NewOpenAIProvider(cfg.OpenAI, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI provider: %w", err)
		}
		providers[enrichment.ProviderOpenAI] = provider
	}
	if cfg.Claude.APIKey != "" {
		provider, err := enrichment.NewAnthropicProvider(cfg.Claude, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Anthropic provider: %w", err)
		}
		providers[enrichment.ProviderAnthropic] = provider
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no model provider configured, set OPENAI_API_KEY or ANTHROPIC_API_KEY")
	}

	logger.Info().Int("providers", len(providers)).Msg("Model providers initialized")
	return providers, nil
}

// activityObserver records gateway observations in the audit trail. Append
// failures are logged and swallowed.
func activityObserver(activity interfaces.ActivityStorage, logger arbor.ILogger) interfaces.GatewayObserver {
	return func(action string, details map[string]interface{}) {
		sessionID := ""
		if id, ok := details["session_id"].(string); ok {
			sessionID = id
		}
		entry := &models.ActivityLog{
			Level:     "info",
			Category:  "enrichment",
			Action:    action,
			Message:   action,
			Details:   details,
			SessionID: sessionID,
		}
		if err := activity.Append(context.Background(), entry); err != nil {
			logger.Debug().Err(err).Str("action", action).Msg("Failed to record gateway observation")
		}
	}
}

// Package app assembles the turn engine from configuration. The api and the
// worker share it so both run turns through identical pipelines.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/turn-engine/internal/config"
	"github.com/jwebster45206/turn-engine/internal/logger"
	"github.com/jwebster45206/turn-engine/internal/observability"
	"github.com/jwebster45206/turn-engine/internal/services"
	"github.com/jwebster45206/turn-engine/internal/services/events"
	queuesvc "github.com/jwebster45206/turn-engine/internal/services/queue"
	"github.com/jwebster45206/turn-engine/internal/storage"
	"github.com/jwebster45206/turn-engine/pkg/scenario"
	sessionstore "github.com/jwebster45206/turn-engine/pkg/storage"
	"github.com/jwebster45206/turn-engine/pkg/turn"
)

const (
	storeConnectTimeout = 2 * time.Minute
	queueConnectTimeout = 5 * time.Second
	narratorMaxRetries  = 2
)

// Version is reported to the tracing backend.
var Version = "dev"

// App is a fully wired engine. Queue and Events are nil when Redis is not
// reachable; callers that need them must check.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Catalog  *scenario.Catalog
	Store    sessionstore.SessionStore
	Narrator services.Narrator
	Metrics  *observability.Metrics
	Tracing  *observability.TracerProvider
	Pipeline *turn.Pipeline
	Queue    *queuesvc.TurnQueue
	Events   *events.Broadcaster

	closers []func() error
}

// New builds every component cfg asks for. On error, anything already opened
// is closed.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log}
	if err := a.init(ctx); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg, log := a.Config, a.Logger

	var err error
	a.Catalog, err = scenario.LoadDir(cfg.ScenarioDir)
	if err != nil {
		return fmt.Errorf("failed to load scenarios: %w", err)
	}
	log.Info("Scenarios loaded", "dir", cfg.ScenarioDir, "count", len(a.Catalog.List()))

	a.Tracing, err = observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    logger.ServiceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		Enabled:        cfg.TracesEnabled,
		Endpoint:       cfg.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}

	client, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	a.openQueue(ctx, client)

	a.Narrator, err = newNarrator(cfg, log)
	if err != nil {
		return err
	}

	a.Pipeline = turn.NewPipeline(a.Store, a.Narrator, log).
		WithScenarios(a.Catalog).
		WithTracer(a.Tracing.Tracer("turn-engine/turn")).
		WithModelTimeout(cfg.ModelTimeout).
		WithModel(cfg.ModelName)
	if cfg.MetricsEnabled {
		a.Metrics = observability.NewMetrics()
		a.Pipeline.WithMetrics(a.Metrics)
	}
	return nil
}

// openStore opens the configured session store. For the redis backend it
// returns the queue client sharing the store's connection.
func (a *App) openStore(ctx context.Context) (*queuesvc.Client, error) {
	cfg, log := a.Config, a.Logger
	switch cfg.StoreBackend {
	case config.StoreRedis:
		rs, err := storage.NewRedisStore(cfg.RedisURL, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rs.Close)
		connectCtx, cancel := context.WithTimeout(ctx, storeConnectTimeout)
		defer cancel()
		if err := rs.WaitForConnection(connectCtx); err != nil {
			return nil, fmt.Errorf("failed to connect to redis store: %w", err)
		}
		a.Store = rs.WithTTL(cfg.SessionTTL).WithInitializer(a.Catalog.NewSession)
		return queuesvc.NewClientFromRedis(rs.Client(), log), nil
	case config.StoreSQLite:
		ss, err := storage.OpenSQLite(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		a.closers = append(a.closers, ss.Close)
		a.Store = ss.WithInitializer(a.Catalog.NewSession)
	case config.StoreMemory:
		a.Store = sessionstore.NewMemoryStore().WithInitializer(a.Catalog.NewSession)
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
	log.Info("Session store ready", "backend", cfg.StoreBackend)
	return nil, nil
}

// openQueue connects the turn queue and event broadcaster. Without Redis the
// engine still serves synchronous turns.
func (a *App) openQueue(ctx context.Context, client *queuesvc.Client) {
	cfg, log := a.Config, a.Logger
	if client == nil {
		if cfg.RedisURL == "" {
			log.Info("No Redis configured; async turns disabled")
			return
		}
		connectCtx, cancel := context.WithTimeout(ctx, queueConnectTimeout)
		defer cancel()
		c, err := queuesvc.NewClient(connectCtx, cfg.RedisURL, log)
		if err != nil {
			log.Warn("Redis unavailable; async turns disabled", "error", err)
			return
		}
		a.closers = append(a.closers, c.Close)
		client = c
	}
	a.Queue = queuesvc.NewTurnQueue(client, cfg.WorkerQueue)
	a.Events = events.NewBroadcaster(client.Redis(), log)
}

func newNarrator(cfg *config.Config, log *slog.Logger) (services.Narrator, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		log.Info("Using OpenAI-compatible narrator", "model", cfg.ModelName, "base_url", cfg.LLMBaseURL)
		return services.NewOpenAINarrator(services.OpenAIConfig{
			APIKey:     cfg.LLMAPIKey,
			BaseURL:    cfg.LLMBaseURL,
			Model:      cfg.ModelName,
			MaxTokens:  cfg.MaxTokens,
			MaxRetries: narratorMaxRetries,
		}, log), nil
	case config.ProviderAnthropic:
		log.Info("Using Anthropic narrator", "model", cfg.ModelName)
		return services.NewAnthropicNarrator(services.AnthropicConfig{
			APIKey:    cfg.LLMAPIKey,
			BaseURL:   cfg.LLMBaseURL,
			Model:     cfg.ModelName,
			MaxTokens: cfg.MaxTokens,
		}, log), nil
	case config.ProviderOllama:
		log.Info("Using Ollama narrator", "model", cfg.ModelName, "base_url", cfg.LLMBaseURL)
		return services.NewOllamaNarrator(cfg.LLMBaseURL, cfg.ModelName, log), nil
	case config.ProviderMock:
		log.Warn("Using mock narrator")
		return services.NewMockNarrator(), nil
	default:
		return nil, fmt.Errorf("unsupported narrator provider %q", cfg.LLMProvider)
	}
}

// Close flushes traces and closes connections in reverse open order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Tracing.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

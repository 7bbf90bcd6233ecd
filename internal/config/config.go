package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends.
const (
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Narrator providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderMock      = "mock"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelRaw string `env:"LOG_LEVEL" envDefault:"info"`
	LogLevel    slog.Level

	StoreBackend string        `env:"STORE_BACKEND" envDefault:"redis"`
	RedisURL     string        `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"0s"`
	SQLitePath   string        `env:"SQLITE_PATH" envDefault:"data/sessions.db"`

	LLMProvider  string        `env:"LLM_PROVIDER" envDefault:"openai"`
	LLMAPIKey    string        `env:"LLM_API_KEY"`
	LLMBaseURL   string        `env:"LLM_BASE_URL"`
	ModelName    string        `env:"MODEL_NAME"`
	ModelTimeout time.Duration `env:"MODEL_TIMEOUT" envDefault:"45s"`
	MaxTokens    int64         `env:"MAX_TOKENS" envDefault:"0"`

	ScenarioDir string `env:"SCENARIO_DIR" envDefault:"data/scenarios"`

	TracesEnabled  bool   `env:"OTEL_TRACES_ENABLED" envDefault:"false"`
	OTLPEndpoint   string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`

	WorkerQueue string `env:"WORKER_QUEUE" envDefault:"turn-requests"`
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelRaw)
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis store")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q (want redis, sqlite or memory)", c.StoreBackend)
	}

	switch c.LLMProvider {
	case ProviderOpenAI, ProviderAnthropic:
		if c.LLMAPIKey == "" {
			return fmt.Errorf("LLM_API_KEY is required for the %s provider", c.LLMProvider)
		}
		if c.ModelName == "" {
			return fmt.Errorf("MODEL_NAME is required for the %s provider", c.LLMProvider)
		}
	case ProviderOllama:
		if c.ModelName == "" {
			return fmt.Errorf("MODEL_NAME is required for the ollama provider")
		}
	case ProviderMock:
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q (want openai, anthropic, ollama or mock)", c.LLMProvider)
	}

	if c.ModelTimeout <= 0 {
		return fmt.Errorf("MODEL_TIMEOUT must be positive")
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("SESSION_TTL must not be negative")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("MAX_TOKENS must not be negative")
	}
	if c.TracesEnabled && c.OTLPEndpoint == "" {
		return fmt.Errorf("OTEL_EXPORTER_OTLP_ENDPOINT is required when tracing is enabled")
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

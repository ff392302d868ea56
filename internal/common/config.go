package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment" validate:"oneof=development production"`
	Server      ServerConfig    `toml:"server"`
	Logging     LoggingConfig   `toml:"logging"`
	Storage     StorageConfig   `toml:"storage"`
	Scraper     ScraperConfig   `toml:"scraper"`
	LLM         LLMConfig       `toml:"llm"`
	Pipeline    PipelineConfig  `toml:"pipeline"`
	Cache       CacheConfig     `toml:"cache"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"min=1,max=65535"`
	Host string `toml:"host" validate:"required"`
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=debug info warn error"`
	Output []string `toml:"output"` // "stdout", "file"
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// OriginLimit is a per-origin sliding-window rate limit.
type OriginLimit struct {
	MaxRequests   int `toml:"max_requests" validate:"min=1"`
	WindowSeconds int `toml:"window_seconds" validate:"min=1"`
}

// ScraperConfig contains source scraping configuration.
type ScraperConfig struct {
	UserAgent      string                  `toml:"user_agent"`
	RequestTimeout time.Duration           `toml:"request_timeout" validate:"min=1s"`
	MaxContentLen  int                     `toml:"max_content_len" validate:"min=1"`
	MinContentLen  int                     `toml:"min_content_len" validate:"min=1"`
	DefaultLimit   OriginLimit             `toml:"default_limit"`
	OriginLimits   map[string]OriginLimit  `toml:"origin_limits"` // keyed by host
	Sources        map[string]SourceConfig `toml:"sources"`
}

// SourceConfig describes one configured source adapter.
type SourceConfig struct {
	Kind string `toml:"kind" validate:"oneof=feed table"` // adapter strategy
	URL  string `toml:"url" validate:"required,url"`
}

// ProviderConfig holds one vendor's API settings.
type ProviderConfig struct {
	APIKey      string  `toml:"api_key"`
	Timeout     string  `toml:"timeout"` // duration string
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
}

// LLMConfig contains configuration for all model providers.
type LLMConfig struct {
	OpenAI      ProviderConfig `toml:"openai"`
	Claude      ProviderConfig `toml:"claude"`
	MaxAttempts int            `toml:"max_attempts" validate:"min=1,max=10"`
	BaseBackoff time.Duration  `toml:"base_backoff" validate:"min=100ms"`
}

// PipelineConfig bounds session output.
type PipelineConfig struct {
	MaxPositions  int     `toml:"max_positions" validate:"min=1"`
	MinConfidence float64 `toml:"min_confidence" validate:"min=0,max=1"`
	HeadlineLimit int     `toml:"headline_limit" validate:"min=1"` // fallback filter keeps first N
	DefaultModel  string  `toml:"default_model" validate:"required"`
}

// CacheConfig contains enrichment cache TTLs and the janitor schedule.
type CacheConfig struct {
	FilterTTL       time.Duration `toml:"filter_ttl" validate:"min=1m"`
	SentimentTTL    time.Duration `toml:"sentiment_ttl" validate:"min=1m"`
	SummaryTTL      time.Duration `toml:"summary_ttl" validate:"min=1m"`
	JanitorSchedule string        `toml:"janitor_schedule"` // cron expression
}

// WebSocketConfig contains configuration for status streaming.
type WebSocketConfig struct {
	// Throttle interval for per-item progress events. Stage transitions are
	// never throttled.
	ProgressInterval time.Duration `toml:"progress_interval"`
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings are exposed in finsignal.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/finsignal",
			},
		},
		Scraper: ScraperConfig{
			UserAgent:      "finsignal/1.0",
			RequestTimeout: 30 * time.Second,
			MaxContentLen:  10000,
			MinContentLen:  200,
			DefaultLimit: OriginLimit{
				MaxRequests:   10,
				WindowSeconds: 60,
			},
			OriginLimits: map[string]OriginLimit{},
			Sources:      map[string]SourceConfig{},
		},
		LLM: LLMConfig{
			OpenAI: ProviderConfig{
				Timeout:     "2m",
				MaxTokens:   4096,
				Temperature: 0.3,
			},
			Claude: ProviderConfig{
				Timeout:     "2m",
				MaxTokens:   4096,
				Temperature: 0.3,
			},
			MaxAttempts: 3,
			BaseBackoff: 2 * time.Second,
		},
		Pipeline: PipelineConfig{
			MaxPositions:  5,
			MinConfidence: 0.6,
			HeadlineLimit: 20,
			DefaultModel:  "gpt-4o-mini",
		},
		Cache: CacheConfig{
			FilterTTL:       24 * time.Hour,
			SentimentTTL:    24 * time.Hour,
			SummaryTTL:      2 * time.Hour,
			JanitorSchedule: "@every 1h",
		},
		WebSocket: WebSocketConfig{
			ProgressInterval: time.Second,
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier ones.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the assembled configuration for structural errors.
func Validate(config *Config) error {
	v := validator.New()
	if err := v.Struct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for name, src := range config.Scraper.Sources {
		if err := v.Struct(src); err != nil {
			return fmt.Errorf("invalid source %q: %w", name, err)
		}
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FINSIGNAL_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("FINSIGNAL_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("FINSIGNAL_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if badgerPath := os.Getenv("FINSIGNAL_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("FINSIGNAL_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("FINSIGNAL_LOG_OUTPUT"); output != "" {
		var outputs []string
		for _, o := range strings.Split(output, ",") {
			if o = strings.TrimSpace(o); o != "" {
				outputs = append(outputs, o)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" && config.LLM.OpenAI.APIKey == "" {
		config.LLM.OpenAI.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && config.LLM.Claude.APIKey == "" {
		config.LLM.Claude.APIKey = key
	}
}

// ApplyFlagOverrides applies CLI flag values over the loaded config.
// Zero values mean "not set".
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap/zapcore"

	"github.com/ekaya-inc/gepetto/pkg/database"
	"github.com/ekaya-inc/gepetto/pkg/llm"
	"github.com/ekaya-inc/gepetto/pkg/pricing"
)

// DefaultPath is the config file read when no path is given. It is optional.
const DefaultPath = "gepetto.yaml"

// Config holds all configuration for gepetto.
// Configuration can come from a YAML file (gepetto.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (API key, database URL) must only come from environment variables.
type Config struct {
	Version string `yaml:"-"` // Set at load time, not from config

	OpenAI OpenAIConfig `yaml:"openai"`
	Usage  UsageConfig  `yaml:"usage"`
	Log    LogConfig    `yaml:"log"`
}

// OpenAIConfig holds the model endpoint and per-process call settings.
type OpenAIConfig struct {
	BaseURL string `yaml:"base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1/"`
	APIKey  string `yaml:"-" env:"OPENAI_API_KEY"` // Secret - not in YAML

	// Model is the default model. Empty selects the price table default.
	Model       string        `yaml:"model" env:"GEPETTO_MODEL" env-default:""`
	HTTPTimeout time.Duration `yaml:"http_timeout" env:"GEPETTO_HTTP_TIMEOUT" env-default:"60s"`

	// UnknownModelPolicy is "zero" (price unknown models at 0) or "strict" (reject them).
	UnknownModelPolicy string `yaml:"unknown_model_policy" env:"GEPETTO_UNKNOWN_MODEL_POLICY" env-default:"zero"`

	// MaxConcurrent bounds in-flight calls for batch operations.
	MaxConcurrent int `yaml:"max_concurrent" env:"GEPETTO_MAX_CONCURRENT" env-default:"8"`
}

// UsageConfig controls the optional PostgreSQL usage ledger.
type UsageConfig struct {
	Enabled        bool   `yaml:"enabled" env:"GEPETTO_USAGE_ENABLED" env-default:"false"`
	DatabaseURL    string `yaml:"-" env:"GEPETTO_DATABASE_URL"` // Secret - not in YAML
	QueueSize      int    `yaml:"queue_size" env:"GEPETTO_USAGE_QUEUE_SIZE" env-default:"100"`
	MaxConnections int32  `yaml:"max_connections" env:"GEPETTO_DATABASE_MAX_CONNECTIONS" env-default:"4"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"console"` // console or json
}

// Load reads configuration from path with environment variable overrides.
// An empty path reads DefaultPath if it exists and otherwise uses the
// environment alone. An explicit path must exist.
func Load(path, version string) (*Config, error) {
	cfg := &Config{Version: version}

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}

	if path == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file %s does not exist", path)
		}
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks values that cleanenv cannot check by type alone.
func (c *Config) Validate() error {
	u, err := url.Parse(c.OpenAI.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("openai base_url %q is not an absolute URL", c.OpenAI.BaseURL)
	}

	if _, err := pricing.ParsePolicy(c.OpenAI.UnknownModelPolicy); err != nil {
		return err
	}

	if c.OpenAI.HTTPTimeout < 0 {
		return fmt.Errorf("http_timeout must not be negative")
	}

	if c.OpenAI.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", c.OpenAI.MaxConcurrent)
	}

	if c.Usage.Enabled && c.Usage.DatabaseURL == "" {
		return fmt.Errorf("usage recording is enabled but GEPETTO_DATABASE_URL is not set")
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("log format must be console or json, got %q", c.Log.Format)
	}

	return nil
}

// PriceTable returns the built-in price table with the configured unknown-model policy.
func (c *Config) PriceTable() (*pricing.Table, error) {
	policy, err := pricing.ParsePolicy(c.OpenAI.UnknownModelPolicy)
	if err != nil {
		return nil, err
	}
	return pricing.Builtin().WithPolicy(policy), nil
}

// LLMConfig returns the client configuration. A localhost endpoint is
// rewritten to reach the host when running inside Docker.
func (c *Config) LLMConfig() *llm.Config {
	return &llm.Config{
		Endpoint:    ResolveEndpointForDocker(c.OpenAI.BaseURL),
		Model:       c.OpenAI.Model,
		APIKey:      c.OpenAI.APIKey,
		HTTPTimeout: c.OpenAI.HTTPTimeout,
	}
}

// WorkerPoolConfig returns the batch concurrency settings.
func (c *Config) WorkerPoolConfig() llm.WorkerPoolConfig {
	return llm.WorkerPoolConfig{MaxConcurrent: c.OpenAI.MaxConcurrent}
}

// DatabaseConfig returns the usage ledger connection settings.
func (c *Config) DatabaseConfig() *database.Config {
	return &database.Config{
		URL:            c.Usage.DatabaseURL,
		MaxConnections: c.Usage.MaxConnections,
	}
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the template worker
type Config struct {
	// Worker configuration
	WorkerID    string `env:"WORKER_ID" envDefault:"template-1"`
	Concurrency int    `env:"CONCURRENCY" envDefault:"4"`

	// Redis configuration
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASS" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Stream configuration
	StreamKey     string        `env:"STREAM_KEY" envDefault:"template.render"`
	ConsumerGroup string        `env:"CONSUMER_GROUP" envDefault:"template-workers"`
	ResultStream  string        `env:"RESULT_STREAM" envDefault:"template.rendered"`
	BlockTime     time.Duration `env:"BLOCK_TIME" envDefault:"1s"`

	// Template sources
	TemplateDir  string `env:"TEMPLATE_DIR" envDefault:""`
	TemplateExt  string `env:"TEMPLATE_EXT" envDefault:".hbs"`
	TemplateHash string `env:"TEMPLATE_HASH" envDefault:"templates"`

	// Rendering configuration
	CELEnabled      bool `env:"CEL_ENABLED" envDefault:"true"`
	EscapeHTML      bool `env:"ESCAPE_HTML" envDefault:"true"`
	MaxPartialDepth int  `env:"MAX_PARTIAL_DEPTH" envDefault:"64"`

	// Health check configuration
	HealthPort int `env:"HEALTH_PORT" envDefault:"8082"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return LoadWithOptions(env.Options{})
}

// LoadWithOptions loads configuration using explicit env options, which lets
// tests supply an environment map
func LoadWithOptions(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.WorkerID == "" {
		return fmt.Errorf("WORKER_ID is required")
	}

	if c.Concurrency <= 0 {
		return fmt.Errorf("CONCURRENCY must be positive")
	}

	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}

	if c.StreamKey == "" {
		return fmt.Errorf("STREAM_KEY is required")
	}

	if c.ConsumerGroup == "" {
		return fmt.Errorf("CONSUMER_GROUP is required")
	}

	if c.ResultStream == "" {
		return fmt.Errorf("RESULT_STREAM is required")
	}

	if c.BlockTime <= 0 {
		return fmt.Errorf("BLOCK_TIME must be positive")
	}

	if !strings.HasPrefix(c.TemplateExt, ".") || len(c.TemplateExt) < 2 {
		return fmt.Errorf("TEMPLATE_EXT must start with a dot")
	}

	if c.MaxPartialDepth <= 0 {
		return fmt.Errorf("MAX_PARTIAL_DEPTH must be positive")
	}

	if c.HealthPort <= 0 || c.HealthPort > 65535 {
		return fmt.Errorf("HEALTH_PORT must be between 1 and 65535")
	}

	if !isValidLogLevel(c.LogLevel) {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	return nil
}

// isValidLogLevel checks if the log level is valid
func isValidLogLevel(level string) bool {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	return validLevels[level]
}

// String returns a string representation of the config (without sensitive data)
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{WorkerID=%s, Concurrency=%d, RedisAddr=%s, RedisDB=%d, StreamKey=%s, ConsumerGroup=%s, "+
			"ResultStream=%s, TemplateDir=%s, TemplateHash=%s, CELEnabled=%v, EscapeHTML=%v, HealthPort=%d, LogLevel=%s}",
		c.WorkerID,
		c.Concurrency,
		c.RedisAddr,
		c.RedisDB,
		c.StreamKey,
		c.ConsumerGroup,
		c.ResultStream,
		c.TemplateDir,
		c.TemplateHash,
		c.CELEnabled,
		c.EscapeHTML,
		c.HealthPort,
		c.LogLevel,
	)
}

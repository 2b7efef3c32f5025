// Package config provides configuration loading and validation from environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/placementcell/campus-api/internal/logging"
	"github.com/placementcell/campus-api/internal/sanitize"
)

// Deployment environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds all application configuration.
type Config struct {
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`      // debug, info, warn, error
	LogFormat         string `env:"LOG_FORMAT" envDefault:"json"`     // json, text
	ListenAddr        string `env:"LISTEN_ADDR" envDefault:":8080"`   // Server listen address
	MetricsListenAddr string `env:"METRICS_LISTEN_ADDR" envDefault:"localhost:9090"`
	DatabasePath      string `env:"DATABASE_PATH" envDefault:"/data/campus.db"`
	Environment       string `env:"APP_ENV" envDefault:"development"`
	PolicyFile        string `env:"POLICY_FILE"` // Optional YAML overlay for the policy tables

	// BootstrapKey authenticates as an admin until the first admin token exists.
	BootstrapKey string `env:"BOOTSTRAP_KEY"`

	MaxDepth    int `env:"SANITIZE_MAX_DEPTH" envDefault:"50"`
	MaxKeys     int `env:"SANITIZE_MAX_KEYS" envDefault:"10000"`
	MaxElements int `env:"SANITIZE_MAX_ELEMENTS" envDefault:"50000"`
	MaxNodes    int `env:"SANITIZE_MAX_NODES" envDefault:"1000000"`

	MaxBodyBytes    int64         `env:"MAX_BODY_BYTES" envDefault:"1048576"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load parses configuration from environment variables. A .env file in the
// working directory, if present, is loaded first without overriding
// variables that are already set.
func Load() (*Config, error) {
	// A missing .env file is the normal case in containers.
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}

// Validate checks all configuration constraints.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: LOG_LEVEL: %v", ErrInvalidConfig, err)
	}
	if c.LogFormat != logging.FormatJSON && c.LogFormat != logging.FormatText {
		return fmt.Errorf("%w: LOG_FORMAT must be json or text, got %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		return fmt.Errorf("%w: APP_ENV must be development or production, got %q", ErrInvalidConfig, c.Environment)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("%w: LISTEN_ADDR is required", ErrInvalidConfig)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("%w: DATABASE_PATH is required", ErrInvalidConfig)
	}

	limits := []struct {
		name  string
		value int64
	}{
		{"SANITIZE_MAX_DEPTH", int64(c.MaxDepth)},
		{"SANITIZE_MAX_KEYS", int64(c.MaxKeys)},
		{"SANITIZE_MAX_ELEMENTS", int64(c.MaxElements)},
		{"SANITIZE_MAX_NODES", int64(c.MaxNodes)},
		{"MAX_BODY_BYTES", c.MaxBodyBytes},
		{"SHUTDOWN_TIMEOUT", int64(c.ShutdownTimeout)},
	}
	for _, l := range limits {
		if l.value <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, l.name)
		}
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Limits returns the sanitizer bounds.
func (c *Config) Limits() sanitize.Limits {
	return sanitize.Limits{
		MaxDepth:    c.MaxDepth,
		MaxKeys:     c.MaxKeys,
		MaxElements: c.MaxElements,
		MaxNodes:    c.MaxNodes,
	}
}

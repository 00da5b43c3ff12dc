// Package config loads program settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Environments understood by COOPHUB_ENV.
const (
	Development = "development"
	Production  = "production"
)

// Config holds settings for programs built on the SDK.
type Config struct {
	APIURL      string        `env:"API_URL"`
	Environment string        `env:"ENV" envDefault:"development"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"30s"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`
	SessionFile string        `env:"SESSION_FILE"`
	// RateLimit is outbound requests per second. Zero disables pacing.
	RateLimit float64 `env:"RATE_LIMIT" envDefault:"0"`
}

// Options controls where Load reads from.
type Options struct {
	// EnvFiles are loaded in order before parsing; missing files are skipped.
	EnvFiles []string
	// Environment replaces the process environment, for tests.
	Environment map[string]string
}

// Load reads .env (if present) and parses COOPHUB_* variables.
func Load() (*Config, error) {
	return LoadWith(Options{EnvFiles: []string{".env"}})
}

// LoadWith is Load with explicit sources.
func LoadWith(o Options) (*Config, error) {
	for _, f := range o.EnvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	opts := env.Options{Prefix: "COOPHUB_"}
	if o.Environment != nil {
		opts.Environment = o.Environment
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.SessionFile == "" {
		cfg.SessionFile = DefaultSessionFile()
	}
	return cfg, nil
}

// Validate checks value ranges env tags cannot express.
func (c *Config) Validate() error {
	switch c.Environment {
	case Development, Production:
	default:
		return fmt.Errorf("COOPHUB_ENV must be %q or %q, got %q", Development, Production, c.Environment)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("COOPHUB_TIMEOUT must be positive, got %s", c.Timeout)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("COOPHUB_RATE_LIMIT must not be negative, got %v", c.RateLimit)
	}
	return nil
}

// DefaultSessionFile is $HOME/.coophub/session.json, or a relative
// .coophub/session.json when the home directory is unknown.
func DefaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".coophub", "session.json")
}

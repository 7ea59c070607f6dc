// Package config loads client settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// DefaultTokenTTLDays is how long a session token is kept when nothing else is configured.
const DefaultTokenTTLDays = 7

// Config holds the recognized client options.
type Config struct {
	BaseURL      string        `env:"ALLIN_BASE_URL" envDefault:"http://localhost:3000"`
	TokenTTLDays int           `env:"ALLIN_TOKEN_TTL_DAYS" envDefault:"7"`
	Dir          string        `env:"ALLIN_CONFIG_DIR"`
	Timeout      time.Duration `env:"ALLIN_TIMEOUT" envDefault:"0s"`
	LogLevel     string        `env:"ALLIN_LOG_LEVEL" envDefault:"warn"`
}

// Load parses the environment and fills derived defaults. Callers run
// Validate once any flag overrides are applied.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Dir == "" {
		cfg.Dir = defaultDir()
	}
	return cfg, nil
}

// Validate rejects settings the client cannot work with.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base url %q: scheme must be http or https", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("base url %q: missing host", c.BaseURL)
	}
	if c.TokenTTLDays < 0 {
		return errors.New("token ttl must not be negative")
	}
	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	return nil
}

// Secure reports whether the API is reached over TLS.
func (c Config) Secure() bool {
	return strings.HasPrefix(strings.ToLower(c.BaseURL), "https://")
}

// TokenPath is the file holding the persisted session token.
func (c Config) TokenPath() string { return filepath.Join(c.Dir, "token") }

func defaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "allin")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "allin")
}

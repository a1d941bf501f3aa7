// Package config loads and validates server configuration from the
// environment (optionally a YAML file) using cleanenv.
//
// Validation is fail-fast: a missing or short signing secret, or a malformed
// public base URL, aborts startup rather than running with a weak secret.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const minSigningSecretLen = 32

// Config is the root server configuration.
type Config struct {
	Env     string        `yaml:"env" env:"GATEHOUSE_ENV" env-default:"development"`
	Addr    string        `yaml:"addr" env:"GATEHOUSE_ADDR" env-default:":8080"`
	BaseURL string        `yaml:"base_url" env:"GATEHOUSE_BASE_URL" env-default:"http://localhost:8080"`
	Session SessionConfig `yaml:"session"`
	Store   StoreConfig   `yaml:"store"`
}

// SessionConfig holds signed-session parameters.
type SessionConfig struct {
	SigningSecret string        `yaml:"signing_secret" env:"GATEHOUSE_SIGNING_SECRET" env-required:"true"`
	Lifetime      time.Duration `yaml:"lifetime" env:"GATEHOUSE_SESSION_LIFETIME" env-default:"720h"`
	RefreshAfter  time.Duration `yaml:"refresh_after" env:"GATEHOUSE_SESSION_REFRESH_AFTER" env-default:"24h"`
}

// StoreConfig describes the user store connection.
type StoreConfig struct {
	DSN     string        `yaml:"dsn" env:"GATEHOUSE_STORE_DSN" env-default:"memory://"`
	Timeout time.Duration `yaml:"timeout" env:"GATEHOUSE_STORE_TIMEOUT" env-default:"2s"`
}

// IsProduction reports whether the server runs in production mode.
// Strict-Transport-Security is only emitted in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile reads configuration from a YAML file, then the environment.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces startup invariants on the loaded configuration.
func (c *Config) Validate() error {
	if len(c.Session.SigningSecret) < minSigningSecretLen {
		return fmt.Errorf("signing secret must be at least %d characters, got %d",
			minSigningSecretLen, len(c.Session.SigningSecret))
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("base url %q is not a well-formed absolute URL", c.BaseURL)
	}
	if c.Session.Lifetime <= 0 {
		return fmt.Errorf("session lifetime must be positive")
	}
	if c.Session.RefreshAfter <= 0 || c.Session.RefreshAfter >= c.Session.Lifetime {
		return fmt.Errorf("session refresh threshold must be positive and below the lifetime")
	}
	if c.Store.Timeout <= 0 {
		return fmt.Errorf("store timeout must be positive")
	}
	return nil
}

// Package config handles application configuration from environment variables
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asaskevich/govalidator/v11"
	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// Cache backends
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// Config holds all application configuration
type Config struct {
	Token     string        `env:"ALERTS_IN_UA_TOKEN"`
	BaseURL   string        `env:"ALERTS_IN_UA_BASE_URL" envDefault:"https://api.alerts.in.ua"`
	UserAgent string        `env:"ALERTS_CLIENT_USER_AGENT"`
	Timeout   time.Duration `env:"ALERTS_IN_UA_TIMEOUT" envDefault:"10s"`
	LogLevel  string        `env:"ALERTS_LOG_LEVEL" envDefault:"info"`

	Cache CacheConfig `envPrefix:"ALERTS_CACHE_"`
}

// CacheConfig selects and tunes the response cache
type CacheConfig struct {
	Backend string `env:"BACKEND" envDefault:"memory"`

	// Dir is the file backend root; empty means ~/.alertsua_cache
	Dir string `env:"DIR"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	DefaultTTL         time.Duration `env:"DEFAULT_TTL" envDefault:"300s"`
	MinRefreshInterval time.Duration `env:"MIN_REFRESH_INTERVAL" envDefault:"0s"`

	// TTLOverrides maps request types to durations, e.g.
	// "active_alerts:1m,alerts_history:10m"
	TTLOverrides map[string]string `env:"TTL_OVERRIDES" envKeyValSeparator:":"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))
	return cfg, nil
}

// HasToken returns true if an API token is configured
func (c *Config) HasToken() bool {
	return c.Token != ""
}

// CachingEnabled returns false for the none backend
func (c *Config) CachingEnabled() bool {
	return c.Cache.Backend != BackendNone
}

// Level returns the configured log level, info if unparsable
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// TTLs parses the per-type TTL overrides
func (c *CacheConfig) TTLs() (map[string]time.Duration, error) {
	out := make(map[string]time.Duration, len(c.TTLOverrides))
	for typ, raw := range c.TTLOverrides {
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("ttl override %s: %w", typ, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("ttl override %s: negative duration", typ)
		}
		out[strings.TrimSpace(typ)] = d
	}
	return out, nil
}

// Validate ensures the configuration is usable for API calls
func (c *Config) Validate() error {
	var errs []error

	if !c.HasToken() {
		errs = append(errs, errors.New("ALERTS_IN_UA_TOKEN is required"))
	}
	if !govalidator.IsURL(c.BaseURL) || !govalidator.IsRequestURL(c.BaseURL) {
		errs = append(errs, fmt.Errorf("ALERTS_IN_UA_BASE_URL is not a valid URL: %q", c.BaseURL))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("ALERTS_IN_UA_TIMEOUT must be positive, got %s", c.Timeout))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("ALERTS_LOG_LEVEL: %w", err))
	}

	switch c.Cache.Backend {
	case BackendMemory, BackendFile, BackendNone:
	case BackendRedis:
		if !govalidator.IsDialString(c.Cache.RedisAddr) {
			errs = append(errs, fmt.Errorf("ALERTS_CACHE_REDIS_ADDR must be host:port for the redis backend, got %q", c.Cache.RedisAddr))
		}
	default:
		errs = append(errs, fmt.Errorf("ALERTS_CACHE_BACKEND must be one of memory, file, redis, none, got %q", c.Cache.Backend))
	}
	if c.Cache.DefaultTTL < 0 {
		errs = append(errs, errors.New("ALERTS_CACHE_DEFAULT_TTL must not be negative"))
	}
	if c.Cache.MinRefreshInterval < 0 {
		errs = append(errs, errors.New("ALERTS_CACHE_MIN_REFRESH_INTERVAL must not be negative"))
	}
	if _, err := c.Cache.TTLs(); err != nil {
		errs = append(errs, fmt.Errorf("ALERTS_CACHE_TTL_OVERRIDES: %w", err))
	}

	return errors.Join(errs...)
}

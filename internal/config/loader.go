package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "BOOKMATCH_"
	envFileVar = "BOOKMATCH_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if BOOKMATCH_CONFIG is set
//  3. env (prefix BOOKMATCH_, "__" separates nested keys)
func Load(_ context.Context) (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(envFileVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// BOOKMATCH_MATCHING__CONFIDENCE_THRESHOLD -> matching.confidence_threshold
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.QueueSize < 1:
		return invalid("queue_size must be positive, got %d", c.QueueSize)
	case c.WorkerCount < 1:
		return invalid("worker_count must be positive, got %d", c.WorkerCount)
	case c.Matching.ConfidenceThreshold < 0 || c.Matching.ConfidenceThreshold > 1:
		return invalid("matching.confidence_threshold must be within [0,1], got %v", c.Matching.ConfidenceThreshold)
	case c.Matching.MaxSearchResults < 1:
		return invalid("matching.max_search_results must be positive, got %d", c.Matching.MaxSearchResults)
	case c.Catalog.RequestsPerSecond <= 0:
		return invalid("catalog.requests_per_second must be positive")
	case c.Catalog.MaxRetries < 0:
		return invalid("catalog.max_retries must not be negative")
	case c.Catalog.TimeoutSeconds < 1:
		return invalid("catalog.timeout_seconds must be positive")
	case c.Scoring.Edition.Alternatives < 0:
		return invalid("scoring.edition.alternatives must not be negative")
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return invalid("log_format must be text or json, got %q", c.LogFormat)
	}

	switch c.Cache.Backend {
	case CacheMemory:
	case CacheSQLite:
		if c.Cache.DSN == "" {
			return invalid("cache.dsn is required for the sqlite backend")
		}
	default:
		return invalid("cache.backend must be %s or %s, got %q", CacheMemory, CacheSQLite, c.Cache.Backend)
	}
	return nil
}

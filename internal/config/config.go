// Package config defines service configuration and its layered loading.
package config

import (
	"runtime"
	"time"

	"github.com/okian/bookmatch/internal/domain/scoring"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// UserID is the destination user a sync pass runs for.
	UserID string `koanf:"user_id"`

	// QueueSize bounds the sync pass job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of concurrent matchers.
	WorkerCount int `koanf:"worker_count"`

	Matching MatchingConfig `koanf:"matching"`
	Catalog  CatalogConfig  `koanf:"catalog"`
	Cache    CacheConfig    `koanf:"cache"`
	Scoring  ScoringConfig  `koanf:"scoring"`
}

// MatchingConfig controls the tier chain.
type MatchingConfig struct {
	// ConfidenceThreshold is the minimum identity score, in [0,1], for a
	// title/author match.
	ConfidenceThreshold float64 `koanf:"confidence_threshold"`
	MaxSearchResults    int     `koanf:"max_search_results"`
	TitleAuthorEnabled  bool    `koanf:"title_author_enabled"`
	ASINRemoteSearch    bool    `koanf:"asin_remote_search"`
}

// CatalogConfig points at the destination catalog API.
type CatalogConfig struct {
	BaseURL           string  `koanf:"base_url"`
	Token             string  `koanf:"token"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	MaxRetries        int     `koanf:"max_retries"`
	TimeoutSeconds    int     `koanf:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration.
func (c CatalogConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Cache backends.
const (
	CacheMemory = "memory"
	CacheSQLite = "sqlite"
)

// CacheConfig selects the edition mapping store.
type CacheConfig struct {
	Backend    string `koanf:"backend"`
	DSN        string `koanf:"dsn"`
	MaxEntries int    `koanf:"max_entries"`
}

// ScoringConfig exposes the tuned scoring constants.
type ScoringConfig struct {
	Identity scoring.IdentityTuning `koanf:"identity"`
	Edition  scoring.EditionTuning  `koanf:"edition"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:    "info",
		LogFormat:   "text",
		Addr:        ":9080",
		QueueSize:   1000,
		WorkerCount: runtime.NumCPU() * 2,
		Matching: MatchingConfig{
			ConfidenceThreshold: 0.7,
			MaxSearchResults:    5,
			TitleAuthorEnabled:  true,
			ASINRemoteSearch:    true,
		},
		Catalog: CatalogConfig{
			RequestsPerSecond: 5,
			MaxRetries:        3,
			TimeoutSeconds:    15,
		},
		Cache: CacheConfig{
			Backend:    CacheMemory,
			DSN:        "bookmatch.db",
			MaxEntries: 10_000,
		},
		Scoring: ScoringConfig{
			Identity: scoring.DefaultIdentityTuning(),
			Edition:  scoring.DefaultEditionTuning(),
		},
	}
}

// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New returns a Config populated with defaults.
//   - Load layers an optional YAML file and COFFEEMATCH_* environment
//     variables on top of the defaults.
//   - Validation failures wrap ErrInvalidConfig; provider failures wrap
//     ErrLoadConfig.
package config

import (
	"time"

	"github.com/okian/coffeematch/internal/adapters/matching"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// MatchingServiceURL is the base URL of the external matching service.
	// It may be empty at load time; the client refuses to start without it.
	MatchingServiceURL string `koanf:"matching_service_url"`

	// MatchingServiceTimeout bounds each individual HTTP attempt.
	MatchingServiceTimeout time.Duration `koanf:"matching_service_timeout"`

	// MatchingMaxRetries is the number of attempts made on transport failures.
	MatchingMaxRetries int `koanf:"matching_max_retries"`

	// MatchingBackoffBase is the first backoff wait; it doubles per attempt.
	MatchingBackoffBase time.Duration `koanf:"matching_backoff_base"`

	// MetricsTriggerToken enables POST /metrics/trigger when non-empty.
	MetricsTriggerToken string `koanf:"metrics_trigger_token"`

	// DatabasePath points at the SQLite database holding employees and
	// pairing history. ":memory:" is accepted.
	DatabasePath string `koanf:"database_path"`

	// MatchingInterval is the period between scheduled matching runs.
	MatchingInterval time.Duration `koanf:"matching_interval"`

	// RunOnStart triggers one matching run as soon as the scheduler starts.
	RunOnStart bool `koanf:"run_on_start"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		Addr:                   ":9080",
		MatchingServiceURL:     "http://localhost:8080",
		MatchingServiceTimeout: matching.DefaultTimeout,
		MatchingMaxRetries:     matching.DefaultMaxRetries,
		MatchingBackoffBase:    matching.DefaultBackoffBase,
		MetricsTriggerToken:    "",
		DatabasePath:           "coffeematch.db",
		MatchingInterval:       7 * 24 * time.Hour,
		RunOnStart:             false,
	}
}

// MatchingClientConfig projects the matching-service settings into the
// client's configuration.
func (c *Config) MatchingClientConfig() matching.Config {
	return matching.Config{
		BaseURL:     c.MatchingServiceURL,
		Timeout:     c.MatchingServiceTimeout,
		MaxRetries:  c.MatchingMaxRetries,
		BackoffBase: c.MatchingBackoffBase,
	}
}

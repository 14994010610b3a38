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

// Environment variable names understood by Load.
const (
	EnvPrefix = "COFFEEMATCH_"
	EnvConfig = EnvPrefix + "CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if COFFEEMATCH_CONFIG is set
//  3. env (prefix COFFEEMATCH_)
func Load(ctx context.Context) (*Config, error) {
	return LoadFile(ctx, os.Getenv(EnvConfig))
}

// LoadFile is Load with an explicit YAML path; an empty path skips the file layer.
func LoadFile(_ context.Context, path string) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// COFFEEMATCH_MATCHING_SERVICE_URL -> matching_service_url (flat keys).
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the process cannot start without. The
// matching service URL is checked later, when the client is constructed.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.MatchingInterval <= 0:
		return fmt.Errorf("%w: matching_interval must be positive", ErrInvalidConfig)
	case c.MatchingMaxRetries < 1:
		return fmt.Errorf("%w: matching_max_retries must be at least 1", ErrInvalidConfig)
	case c.MatchingServiceTimeout <= 0:
		return fmt.Errorf("%w: matching_service_timeout must be positive", ErrInvalidConfig)
	case c.MatchingBackoffBase <= 0:
		return fmt.Errorf("%w: matching_backoff_base must be positive", ErrInvalidConfig)
	case strings.TrimSpace(c.DatabasePath) == "":
		return fmt.Errorf("%w: database_path must not be empty", ErrInvalidConfig)
	}
	return nil
}

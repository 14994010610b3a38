package matching

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Defaults mirror the deployed matching-service settings.
const (
	DefaultTimeout     = 15 * time.Second
	DefaultMaxRetries  = 3
	DefaultBackoffBase = 500 * time.Millisecond
)

// Service endpoints, relative to the base URL.
const (
	HealthPath = "/api/v1/matching/health"
	MatchPath  = "/api/v1/matching/match/secret-coffee"
)

// Config is the immutable client configuration.
type Config struct {
	// BaseURL of the matching service, e.g. http://matcher:8080. Required.
	BaseURL string
	// Timeout applies to every single attempt.
	Timeout time.Duration
	// MaxRetries is the total number of attempts on transport failures.
	MaxRetries int
	// BackoffBase is the wait after the first failed attempt. Zero means
	// DefaultBackoffBase.
	BackoffBase time.Duration
}

// normalize validates the base URL and fills zero values with defaults.
func (c Config) normalize() (Config, error) {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		return Config{}, fmt.Errorf("%w: matching service base URL is not set", ErrConfiguration)
	}
	u, err := url.Parse(base)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return Config{}, fmt.Errorf("%w: matching service base URL %q is not an absolute http(s) URL", ErrConfiguration, c.BaseURL)
	}
	c.BaseURL = base
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	return c, nil
}

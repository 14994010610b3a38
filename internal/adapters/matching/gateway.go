package matching

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/okian/coffeematch/pkg/logger"
)

// jitterFraction bounds the random delay added on top of each backoff wait.
const jitterFraction = 0.1

// Doer performs a single HTTP exchange. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Jitter returns a random duration in [0, limit].
type Jitter func(limit time.Duration) time.Duration

// Gateway issues HTTP requests with bounded exponential backoff. Only
// transport failures are retried; any response, whatever its status, is
// returned to the caller as is.
type Gateway struct {
	client      Doer
	maxRetries  int
	backoffBase time.Duration
	sleep       Sleeper
	jitter      Jitter
	log         logger.Logger
}

// NewGateway builds a gateway making at most maxRetries attempts per call.
func NewGateway(client Doer, maxRetries int, backoffBase time.Duration, sleep Sleeper, jitter Jitter, log logger.Logger) *Gateway {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if sleep == nil {
		sleep = contextSleep
	}
	if jitter == nil {
		jitter = randomJitter
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Gateway{
		client:      client,
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
		sleep:       sleep,
		jitter:      jitter,
		log:         log,
	}
}

// Backoff returns the wait after failed attempt n (1-based), before jitter.
func Backoff(base time.Duration, n int) time.Duration {
	if n < 1 {
		n = 1
	}
	return time.Duration(float64(base) * math.Pow(2, float64(n-1)))
}

// Do sends method to url. body is replayed on every attempt; nil means no
// body. The error wraps ErrUnsupportedMethod or ErrTransport.
func (g *Gateway) Do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	method = strings.ToUpper(method)
	if method != http.MethodGet && method != http.MethodPost {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		attempts = attempt
		resp, err := g.attempt(ctx, method, url, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt == g.maxRetries {
			break
		}

		wait := Backoff(g.backoffBase, attempt)
		wait += g.jitter(time.Duration(float64(wait) * jitterFraction))
		g.log.Warn(ctx, "matching service request failed, retrying",
			logger.String("method", method),
			logger.String("url", url),
			logger.Int("attempt", attempt),
			logger.Int("max_attempts", g.maxRetries),
			logger.Duration("wait", wait),
			logger.Error(err))
		if serr := g.sleep(ctx, wait); serr != nil {
			lastErr = serr
			break
		}
	}

	g.log.Error(ctx, "matching service request failed",
		logger.String("method", method),
		logger.String("url", url),
		logger.Int("attempts", attempts),
		logger.Error(lastErr))
	return nil, fmt.Errorf("%w: %s %s failed after %d attempt(s): %v", ErrTransport, method, url, attempts, lastErr)
}

func (g *Gateway) attempt(ctx context.Context, method, url string, body []byte) (resp *http.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("transport panic: %v", r)
		}
	}()

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return g.client.Do(req)
}

func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(limit) + 1))
}

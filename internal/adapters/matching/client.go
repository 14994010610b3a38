// Package matching is a resilient client for the external secret-coffee
// matching service. A run is health-gated, retried on transport failures
// and instrumented with in-process counters mirrored to an optional sink.
package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/coffeematch/internal/domain/model"
	"github.com/okian/coffeematch/pkg/logger"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	httpClient  Doer
	sinkFactory func() (Sink, error)
	log         logger.Logger
	sleep       Sleeper
	jitter      Jitter
}

// WithHTTPClient overrides the transport. The configured per-attempt
// timeout is only applied to the default *http.Client.
func WithHTTPClient(d Doer) Option {
	return func(o *options) {
		if d != nil {
			o.httpClient = d
		}
	}
}

// WithSink mirrors counters into s.
func WithSink(s Sink) Option {
	return func(o *options) {
		if s != nil {
			o.sinkFactory = func() (Sink, error) { return s, nil }
		}
	}
}

// WithSinkFactory defers sink construction to New. A failing factory
// leaves the client on NoopSink.
func WithSinkFactory(f func() (Sink, error)) Option {
	return func(o *options) {
		if f != nil {
			o.sinkFactory = f
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithSleeper replaces the backoff wait.
func WithSleeper(s Sleeper) Option {
	return func(o *options) {
		if s != nil {
			o.sleep = s
		}
	}
}

// WithJitter replaces the backoff jitter source.
func WithJitter(j Jitter) Option {
	return func(o *options) {
		if j != nil {
			o.jitter = j
		}
	}
}

// Client talks to the matching service. It is safe for concurrent use.
type Client struct {
	cfg      Config
	gateway  *Gateway
	recorder *Recorder
	log      logger.Logger
}

// New validates cfg and builds a Client. The only error is ErrConfiguration.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}

	o := options{log: logger.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	log := o.log.Named("matching")

	var sink Sink = NoopSink{}
	if o.sinkFactory != nil {
		s, err := o.sinkFactory()
		switch {
		case err != nil:
			log.Warn(context.Background(), "metrics sink unavailable, using in-process counters only",
				logger.Error(fmt.Errorf("%w: %v", ErrMetricsRecording, err)))
		case s != nil:
			sink = s
		}
	}

	return &Client{
		cfg:      cfg,
		gateway:  NewGateway(o.httpClient, cfg.MaxRetries, cfg.BackoffBase, o.sleep, o.jitter, log),
		recorder: NewRecorder(sink, log),
		log:      log,
	}, nil
}

// Config returns the normalized configuration.
func (c *Client) Config() Config { return c.cfg }

// Snapshot returns the in-process counters.
func (c *Client) Snapshot() Snapshot { return c.recorder.Snapshot() }

// Recorder exposes the counters for out-of-band updates such as the
// metrics self-test endpoint.
func (c *Client) Recorder() *Recorder { return c.recorder }

// Match runs one health-gated matching round. A nil error always comes with
// a non-nil (possibly empty) slice; failures are returned as errors wrapping
// ErrDependencyUnhealthy, ErrTransport or ErrProtocol.
func (c *Client) Match(ctx context.Context, employees []model.Employee, history []model.HistoryRecord) ([]model.Pair, error) {
	if !c.CheckHealth(ctx) {
		c.log.Warn(ctx, "matching service is unhealthy, skipping matching request")
		return nil, ErrDependencyUnhealthy
	}

	c.recorder.MatchingRequest()

	req := BuildRequest(employees, history)
	c.log.Info(ctx, "sending matching request", logger.Int("employees_count", len(req.Employees)))
	if payload, err := json.Marshal(Sanitize(req)); err == nil {
		c.log.Debug(ctx, "matching request payload", logger.String("payload", string(payload)))
	}

	body, err := json.Marshal(req)
	if err != nil {
		c.recorder.MatchingFailure()
		return nil, fmt.Errorf("%w: encode request: %v", ErrProtocol, err)
	}

	start := time.Now()
	resp, err := c.gateway.Do(ctx, http.MethodPost, c.cfg.BaseURL+MatchPath, body)
	if err != nil {
		c.log.Error(ctx, "matching request got no response", logger.Error(err))
		c.recorder.MatchingFailure()
		return nil, err
	}
	defer closeBody(resp.Body)

	if !isSuccess(resp.StatusCode) {
		c.log.Error(ctx, "matching service rejected request", logger.Int("status_code", resp.StatusCode))
		c.recorder.MatchingFailure()
		return nil, fmt.Errorf("%w: unexpected status %d", ErrProtocol, resp.StatusCode)
	}

	var out MatchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&out); err != nil {
		c.log.Error(ctx, "matching response is not valid JSON", logger.Error(err))
		c.recorder.MatchingFailure()
		return nil, fmt.Errorf("%w: decode response: %v", ErrProtocol, err)
	}

	elapsed := time.Since(start)
	c.recorder.MatchingLatency(elapsed)

	pairs := make([]model.Pair, 0, len(out.Pairs))
	for _, p := range out.Pairs {
		pairs = append(pairs, model.Pair{A: p.Employee1ID, B: p.Employee2ID})
	}
	if len(pairs) > 0 {
		c.recorder.MatchingSuccess()
	}

	c.log.Info(ctx, "matching completed",
		logger.Int("pairs_count", len(pairs)),
		logger.Float64("latency_ms", float64(elapsed)/float64(time.Millisecond)))
	return pairs, nil
}

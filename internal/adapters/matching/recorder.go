package matching

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/coffeematch/pkg/logger"
)

// Sink mirrors client counters into an external metrics backend.
// *metrics.Manager satisfies it.
type Sink interface {
	IncHealthChecks()
	IncHealthFailures()
	IncMatchingRequests()
	IncMatchingFailures()
	IncMatchingSuccess()
	ObserveMatchingLatency(seconds float64)
}

// NoopSink discards everything.
type NoopSink struct{}

func (NoopSink) IncHealthChecks()               {}
func (NoopSink) IncHealthFailures()             {}
func (NoopSink) IncMatchingRequests()           {}
func (NoopSink) IncMatchingFailures()           {}
func (NoopSink) IncMatchingSuccess()            {}
func (NoopSink) ObserveMatchingLatency(float64) {}

// Snapshot is a point-in-time copy of the in-process counters.
type Snapshot struct {
	HealthChecks            uint64  `json:"health_checks"`
	HealthFailures          uint64  `json:"health_failures"`
	MatchingRequests        uint64  `json:"matching_requests"`
	MatchingFailures        uint64  `json:"matching_failures"`
	MatchingRequestsSuccess uint64  `json:"matching_requests_success"`
	MatchingLatencyMsTotal  float64 `json:"matching_latency_ms_total"`
}

// Map returns the snapshot keyed by metric name.
func (s Snapshot) Map() map[string]any {
	return map[string]any{
		"health_checks":             s.HealthChecks,
		"health_failures":           s.HealthFailures,
		"matching_requests":         s.MatchingRequests,
		"matching_failures":         s.MatchingFailures,
		"matching_requests_success": s.MatchingRequestsSuccess,
		"matching_latency_ms_total": s.MatchingLatencyMsTotal,
	}
}

// Recorder keeps the in-process counters and forwards every update to a
// Sink. Sink panics are logged and never reach the caller.
type Recorder struct {
	healthChecks     atomic.Uint64
	healthFailures   atomic.Uint64
	matchingRequests atomic.Uint64
	matchingFailures atomic.Uint64
	matchingSuccess  atomic.Uint64

	latencyMu      sync.Mutex
	latencyMsTotal float64

	sink Sink
	log  logger.Logger
}

// NewRecorder returns a Recorder forwarding to sink; nil means NoopSink.
func NewRecorder(sink Sink, log logger.Logger) *Recorder {
	if sink == nil {
		sink = NoopSink{}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Recorder{sink: sink, log: log}
}

func (r *Recorder) HealthCheck() {
	r.healthChecks.Add(1)
	r.mirror("health_checks", Sink.IncHealthChecks)
}

func (r *Recorder) HealthFailure() {
	r.healthFailures.Add(1)
	r.mirror("health_failures", Sink.IncHealthFailures)
}

func (r *Recorder) MatchingRequest() {
	r.matchingRequests.Add(1)
	r.mirror("matching_requests", Sink.IncMatchingRequests)
}

func (r *Recorder) MatchingFailure() {
	r.matchingFailures.Add(1)
	r.mirror("matching_failures", Sink.IncMatchingFailures)
}

func (r *Recorder) MatchingSuccess() {
	r.matchingSuccess.Add(1)
	r.mirror("matching_requests_success", Sink.IncMatchingSuccess)
}

// MatchingLatency adds d to the millisecond total and observes it in
// seconds on the sink. Negative durations are ignored.
func (r *Recorder) MatchingLatency(d time.Duration) {
	if d < 0 {
		return
	}
	r.latencyMu.Lock()
	r.latencyMsTotal += float64(d) / float64(time.Millisecond)
	r.latencyMu.Unlock()
	r.mirror("matching_latency", func(s Sink) { s.ObserveMatchingLatency(d.Seconds()) })
}

// Snapshot copies the current counters.
func (r *Recorder) Snapshot() Snapshot {
	r.latencyMu.Lock()
	latency := r.latencyMsTotal
	r.latencyMu.Unlock()
	return Snapshot{
		HealthChecks:            r.healthChecks.Load(),
		HealthFailures:          r.healthFailures.Load(),
		MatchingRequests:        r.matchingRequests.Load(),
		MatchingFailures:        r.matchingFailures.Load(),
		MatchingRequestsSuccess: r.matchingSuccess.Load(),
		MatchingLatencyMsTotal:  latency,
	}
}

func (r *Recorder) mirror(metric string, fn func(Sink)) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Debug(context.Background(), "metrics sink update failed",
				logger.String("metric", metric),
				logger.Error(fmt.Errorf("%w: %v", ErrMetricsRecording, rec)))
		}
	}()
	fn(r.sink)
}

// Package metrics provides Prometheus metrics for the coffeematch service.
package metrics

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Default metric naming.
const (
	defaultNamespace = "coffeematch"
	defaultSubsystem = "matching_service"
)

// Manager owns the matching-service metrics mirrored from the client's
// in-memory counters. It satisfies the client's metrics sink capability.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	healthChecks     prometheus.Counter
	healthFailures   prometheus.Counter
	matchingRequests prometheus.Counter
	matchingFailures prometheus.Counter
	matchingSuccess  prometheus.Counter
	matchingLatency  prometheus.Histogram
}

// serviceMetrics covers the process surface: HTTP endpoints and the scheduler.
type serviceMetrics struct {
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec
	scheduledRuns       *prometheus.CounterVec
}

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

var global *serviceMetrics //nolint:gochecknoglobals // intentional global for process metrics

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	global = newServiceMetrics(customRegistry)
}

// NewManager registers the matching-service metrics on the configured
// registry (the package registry by default). Collectors that are already
// registered with an identical descriptor are reused, so several managers
// built on one registry observe the same series. Any other registration
// conflict is returned as ErrRegister.
func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{
		namespace:        defaultNamespace,
		subsystem:        defaultSubsystem,
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
		registry:         customRegistry,
	}
	for _, opt := range opts {
		opt(m)
	}

	var err error
	if m.healthChecks, err = register(m.registry, m.counter("health_checks_total", "Total health checks performed")); err != nil {
		return nil, err
	}
	if m.healthFailures, err = register(m.registry, m.counter("health_failures_total", "Total health check failures")); err != nil {
		return nil, err
	}
	if m.matchingRequests, err = register(m.registry, m.counter("matching_requests_total", "Total matching requests")); err != nil {
		return nil, err
	}
	if m.matchingFailures, err = register(m.registry, m.counter("matching_failures_total", "Total matching failures")); err != nil {
		return nil, err
	}
	if m.matchingSuccess, err = register(m.registry, m.counter("matching_success_total", "Total matching requests that returned at least one pair")); err != nil {
		return nil, err
	}
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "matching_latency_seconds",
		Help:        "Matching request latency in seconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})
	if m.matchingLatency, err = register(m.registry, latency); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrRegister, err)
	}
	return c, nil
}

// IncHealthChecks increments the health check counter.
func (m *Manager) IncHealthChecks() { m.healthChecks.Inc() }

// IncHealthFailures increments the health failure counter.
func (m *Manager) IncHealthFailures() { m.healthFailures.Inc() }

// IncMatchingRequests increments the matching request counter.
func (m *Manager) IncMatchingRequests() { m.matchingRequests.Inc() }

// IncMatchingFailures increments the matching failure counter.
func (m *Manager) IncMatchingFailures() { m.matchingFailures.Inc() }

// IncMatchingSuccess increments the successful matching counter.
func (m *Manager) IncMatchingSuccess() { m.matchingSuccess.Inc() }

// ObserveMatchingLatency records one matching call duration in seconds.
func (m *Manager) ObserveMatchingLatency(seconds float64) { m.matchingLatency.Observe(seconds) }

func newServiceMetrics(reg prometheus.Registerer) *serviceMetrics {
	auto := promauto.With(reg)
	return &serviceMetrics{
		httpRequests: auto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: defaultNamespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests by endpoint and method",
			},
			[]string{"endpoint", "method", "status_code"},
		),
		httpRequestDuration: auto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: defaultNamespace,
				Subsystem: "http",
				Name:      "request_duration_milliseconds",
				Help:      "HTTP request duration in milliseconds",
				Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
			[]string{"endpoint", "method", "status_code"},
		),
		httpErrors: auto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: defaultNamespace,
				Subsystem: "http",
				Name:      "errors_total",
				Help:      "HTTP error responses by endpoint, method and error type",
			},
			[]string{"endpoint", "method", "error_type"},
		),
		scheduledRuns: auto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: defaultNamespace,
				Subsystem: "scheduler",
				Name:      "scheduled_runs_total",
				Help:      "Scheduled matching runs by outcome (done, empty, failed)",
			},
			[]string{"outcome"},
		),
	}
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	global.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	global.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordHTTPError counts an error response by classified type.
func RecordHTTPError(endpoint, method, errorType string) {
	global.httpErrors.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordScheduledRun counts one scheduler-triggered run by outcome.
func RecordScheduledRun(outcome string) {
	global.scheduledRuns.WithLabelValues(outcome).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Exposition renders every metric of the package registry in the
// Prometheus text format.
func Exposition() (string, error) {
	return exposition(customRegistry)
}

func exposition(g prometheus.Gatherer) (string, error) {
	mfs, err := g.Gather()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGather, err)
	}
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return "", fmt.Errorf("%w: %v", ErrGather, err)
		}
	}
	return buf.String(), nil
}

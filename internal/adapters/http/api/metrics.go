package api

import (
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/coffeematch/internal/adapters/matching"
	"github.com/okian/coffeematch/pkg/logger"
	"github.com/okian/coffeematch/pkg/metrics"
)

// TriggerTokenHeader carries the shared secret for POST /metrics/trigger.
const TriggerTokenHeader = "X-METRICS-TRIGGER-TOKEN"

// triggerLatency is the synthetic latency recorded by the trigger endpoint.
const triggerLatency = 120 * time.Millisecond

// MetricsHandler serves the Prometheus exposition, the combined JSON view
// and the guarded self-test trigger.
type MetricsHandler struct {
	clients ClientProvider
	token   string
	log     logger.Logger
	prom    http.Handler
}

// NewMetricsHandler creates a metrics handler. An empty token disables the
// trigger endpoint.
func NewMetricsHandler(clients ClientProvider, token string, log logger.Logger) *MetricsHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &MetricsHandler{
		clients: clients,
		token:   token,
		log:     log,
		prom:    promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleMetrics handles GET /metrics.
func (h *MetricsHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.prom.ServeHTTP(w, r)
}

type internalResponse struct {
	Prometheus *string        `json:"prometheus"`
	InMemory   map[string]any `json:"in_memory"`
}

// HandleInternal handles GET /metrics/internal: the Prometheus text plus the
// client's in-process counters.
func (h *MetricsHandler) HandleInternal(w http.ResponseWriter, r *http.Request) {
	var resp internalResponse
	if text, err := metrics.Exposition(); err == nil {
		resp.Prometheus = &text
	} else {
		h.log.Warn(r.Context(), "prometheus exposition failed", logger.Error(err))
	}

	if c, err := h.client(); err == nil {
		resp.InMemory = c.Snapshot().Map()
	} else {
		h.log.Warn(r.Context(), "matching client unavailable for metrics", logger.Error(err))
		resp.InMemory = map[string]any{"error": ErrClientUnavailable.Error()}
	}
	writeJSON(w, http.StatusOK, resp)
}

type triggerResponse struct {
	Status   string         `json:"status"`
	InMemory map[string]any `json:"in_memory"`
}

// HandleTrigger handles POST /metrics/trigger. It records one synthetic
// successful matching request on the shared client. The endpoint answers
// 404 unless a token is configured and only accepts loopback callers.
func (h *MetricsHandler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, ErrMethodNotAllowed)
		return
	}
	if h.token == "" {
		writeError(w, http.StatusNotFound, ErrNotFound)
		return
	}
	if !isLoopback(r.RemoteAddr) {
		h.log.Warn(r.Context(), "metrics trigger rejected for non-local caller", logger.String("remote_addr", r.RemoteAddr))
		writeError(w, http.StatusForbidden, ErrForbidden)
		return
	}
	if subtle.ConstantTimeCompare([]byte(r.Header.Get(TriggerTokenHeader)), []byte(h.token)) != 1 {
		writeError(w, http.StatusForbidden, ErrInvalidToken)
		return
	}

	c, err := h.client()
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("%w: %v", ErrClientUnavailable, err))
		return
	}
	rec := c.Recorder()
	rec.MatchingRequest()
	rec.MatchingSuccess()
	rec.MatchingLatency(triggerLatency)

	h.log.Info(r.Context(), "synthetic matching metrics recorded")
	writeJSON(w, http.StatusOK, triggerResponse{Status: "ok", InMemory: c.Snapshot().Map()})
}

func (h *MetricsHandler) client() (*matching.Client, error) {
	if h.clients == nil {
		return nil, matching.ErrConfiguration
	}
	return h.clients.Client()
}

// isLoopback reports whether a request's remote address is local.
func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

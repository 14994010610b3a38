// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/coffeematch/internal/adapters/matching"
	"github.com/okian/coffeematch/pkg/logger"
)

// ClientProvider hands out the process-wide matching client.
type ClientProvider interface {
	Client() (*matching.Client, error)
}

// Server wires HTTP routes for the metrics and diagnostics surface.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	metricsHandler *MetricsHandler
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	triggerToken string
	log          logger.Logger
}

// WithTriggerToken enables POST /metrics/trigger for callers presenting
// token. An empty token keeps the endpoint hidden.
func WithTriggerToken(token string) Option {
	return func(o *serverOptions) { o.triggerToken = token }
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(o *serverOptions) {
		if l != nil {
			o.log = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(clients ClientProvider, statsProvider StatsProvider, opts ...Option) *Server {
	o := serverOptions{log: logger.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		metricsHandler: NewMetricsHandler(clients, o.triggerToken, o.log),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/metrics", MetricsMiddleware(s.metricsHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("/metrics/internal", MetricsMiddleware(s.metricsHandler.HandleInternal, "metrics_internal"))
	mux.HandleFunc("/metrics/trigger", MetricsMiddleware(s.metricsHandler.HandleTrigger, "metrics_trigger"))
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, statusResponse{Status: "error", Error: msg})
}

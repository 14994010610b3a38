// Package api declares HTTP contracts and route registration helpers.
package api

import "net/http"

// HealthHandler handles liveness requests.
type HealthHandler struct{}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// HandleHealth handles GET /healthz. It reports process liveness only; the
// matching service health is checked per run.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, ErrMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

package handler

import (
	"context"
	"net/http"

	"github.com/alanyoungcy/rsibot/internal/engine"
)

// StatusSource provides the operator view of the engine.
type StatusSource interface {
	Status(ctx context.Context) engine.Status
}

// StatusHandler serves the engine status for the dashboard.
type StatusHandler struct {
	source StatusSource
}

// NewStatusHandler creates a StatusHandler backed by source.
func NewStatusHandler(source StatusSource) *StatusHandler {
	return &StatusHandler{source: source}
}

// GetStatus responds with position, wallet, parameters, the latest
// observation and realized P&L.
// GET /api/status, GET /stats
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.source.Status(r.Context()))
}

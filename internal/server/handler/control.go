package handler

import (
	"context"
	"net/http"
)

// RunController pauses and resumes the decision loop.
type RunController interface {
	Pause(ctx context.Context) bool
	Resume(ctx context.Context) bool
}

// ControlHandler serves the run-control endpoints.
type ControlHandler struct {
	run RunController
}

// NewControlHandler creates a ControlHandler.
func NewControlHandler(run RunController) *ControlHandler {
	return &ControlHandler{run: run}
}

type controlResponse struct {
	Paused  bool `json:"paused"`
	Changed bool `json:"changed"`
}

// Pause stops the loop from acting on signals. Repeating it is a no-op.
// POST /api/control/pause
func (h *ControlHandler) Pause(w http.ResponseWriter, r *http.Request) {
	changed := h.run.Pause(r.Context())
	writeJSON(w, http.StatusOK, controlResponse{Paused: true, Changed: changed})
}

// Resume lets the loop act on signals again.
// POST /api/control/resume
func (h *ControlHandler) Resume(w http.ResponseWriter, r *http.Request) {
	changed := h.run.Resume(r.Context())
	writeJSON(w, http.StatusOK, controlResponse{Paused: false, Changed: changed})
}

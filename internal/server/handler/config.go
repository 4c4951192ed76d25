package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/rsibot/internal/domain"
)

// ParamsUpdater applies partial strategy parameter updates.
type ParamsUpdater interface {
	UpdateParams(ctx context.Context, upd domain.ParamsUpdate) (domain.StrategyParams, error)
}

// ConfigHandler serves live strategy parameter updates.
type ConfigHandler struct {
	params ParamsUpdater
	logger *slog.Logger
}

// NewConfigHandler creates a ConfigHandler with the given updater and logger.
func NewConfigHandler(params ParamsUpdater, logger *slog.Logger) *ConfigHandler {
	return &ConfigHandler{
		params: params,
		logger: logHandler(logger, "config"),
	}
}

type configResponse struct {
	Params domain.StrategyParams `json:"params"`
}

// UpdateConfig merges the supplied fields into the live parameters. Omitted
// fields keep their current value; an invalid result leaves the parameters
// untouched.
// POST /api/config
func (h *ConfigHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var upd domain.ParamsUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if upd.Empty() {
		writeError(w, http.StatusBadRequest, "no parameters supplied")
		return
	}

	next, err := h.params.UpdateParams(r.Context(), upd)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidParams) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: update params failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to update parameters")
		return
	}

	writeJSON(w, http.StatusOK, configResponse{Params: next})
}

package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/rsibot/internal/domain"
	"github.com/alanyoungcy/rsibot/internal/engine"
)

// ManualTrader executes operator-initiated trades.
type ManualTrader interface {
	ManualTrade(ctx context.Context, side domain.Side) (engine.Result, error)
}

// TradeHandler serves the manual trade endpoint.
type TradeHandler struct {
	trader ManualTrader
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler with the given trader and logger.
func NewTradeHandler(trader ManualTrader, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{
		trader: trader,
		logger: logHandler(logger, "trade"),
	}
}

type tradeErrorResponse struct {
	Error   string         `json:"error"`
	Outcome engine.Outcome `json:"outcome,omitempty"`
}

// ManualTrade buys or sells at the current ticker price.
// POST /api/trade/{action}
func (h *TradeHandler) ManualTrade(w http.ResponseWriter, r *http.Request) {
	var side domain.Side
	switch strings.ToLower(pathParam(r, "action")) {
	case "buy":
		side = domain.SideBuy
	case "sell":
		side = domain.SideSell
	default:
		writeError(w, http.StatusBadRequest, "action must be buy or sell")
		return
	}

	res, err := h.trader.ManualTrade(r.Context(), side)
	if err == nil {
		writeJSON(w, http.StatusOK, res)
		return
	}

	code := tradeStatus(res, err)
	if code >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "handler: manual trade failed",
			slog.String("side", string(side)),
			slog.String("outcome", string(res.Outcome)),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, code, tradeErrorResponse{Error: err.Error(), Outcome: res.Outcome})
}

// tradeStatus maps a refused manual trade to an HTTP status code.
func tradeStatus(res engine.Result, err error) int {
	switch {
	case res.Outcome == engine.OutcomeDegraded, errors.Is(err, domain.ErrNoData):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrAlreadyInPosition), errors.Is(err, domain.ErrNothingToSell):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientBalance), errors.Is(err, domain.ErrSizeTooSmall):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

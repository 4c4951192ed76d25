package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/rsibot/internal/domain"
)

// TradeLister returns recent trade records.
type TradeLister interface {
	Trades(ctx context.Context, limit int) ([]domain.TradeRecord, error)
}

// TradesHandler serves the trade history endpoint.
type TradesHandler struct {
	trades TradeLister
	logger *slog.Logger
}

// NewTradesHandler creates a TradesHandler.
func NewTradesHandler(trades TradeLister, logger *slog.Logger) *TradesHandler {
	return &TradesHandler{
		trades: trades,
		logger: logHandler(logger, "trades"),
	}
}

type listTradesResponse struct {
	Trades []domain.TradeRecord `json:"trades"`
	Count  int                  `json:"count"`
}

// ListTrades returns the newest trade records first.
// GET /api/trades?limit=50
func (h *TradesHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	recs, err := h.trades.Trades(r.Context(), parseLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list trades failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}
	if recs == nil {
		recs = []domain.TradeRecord{}
	}
	writeJSON(w, http.StatusOK, listTradesResponse{Trades: recs, Count: len(recs)})
}

// Package risk decides forced exits for an open position.
package risk

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/rsibot/internal/domain"
)

// Exit is the outcome of a risk check.
type Exit struct {
	Triggered bool
	Reason    domain.TradeReason
	// Change is (price - entry) / entry.
	Change decimal.Decimal
}

// Label returns the operator-facing exit name.
func (e Exit) Label() string {
	switch e.Reason {
	case domain.ReasonStopLoss:
		return "Stop Loss"
	case domain.ReasonTakeProfit:
		return "Take Profit"
	default:
		return ""
	}
}

// Check compares price against the open position's entry. Only an
// IN_POSITION position can trigger. A move at or beyond -StopLoss exits with
// ReasonStopLoss; otherwise a move at or beyond TakeProfit exits with
// ReasonTakeProfit.
func Check(pos domain.Position, price decimal.Decimal, params domain.StrategyParams) Exit {
	if !pos.Open() || !pos.EntryPrice.IsPositive() {
		return Exit{}
	}
	change := price.Sub(pos.EntryPrice).Div(pos.EntryPrice)

	stopLoss := decimal.NewFromFloat(params.StopLoss)
	takeProfit := decimal.NewFromFloat(params.TakeProfit)

	if stopLoss.IsPositive() && change.LessThanOrEqual(stopLoss.Neg()) {
		return Exit{Triggered: true, Reason: domain.ReasonStopLoss, Change: change}
	}
	if takeProfit.IsPositive() && change.GreaterThanOrEqual(takeProfit) {
		return Exit{Triggered: true, Reason: domain.ReasonTakeProfit, Change: change}
	}
	return Exit{Change: change}
}

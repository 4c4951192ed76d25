package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an executed trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// TradeReason records what caused a trade.
type TradeReason string

const (
	ReasonSignal     TradeReason = "signal"
	ReasonStopLoss   TradeReason = "stop_loss"
	ReasonTakeProfit TradeReason = "take_profit"
	ReasonManual     TradeReason = "manual"
)

// TradeRecord is an immutable fill appended to the trade log. Profit is nil
// on BUY records; a BUY with no later SELL is the currently open lot.
type TradeRecord struct {
	ID        int64            `json:"id"`
	ClientID  string           `json:"client_id"`
	Symbol    string           `json:"symbol"`
	Side      Side             `json:"side"`
	Price     decimal.Decimal  `json:"price"`
	Amount    decimal.Decimal  `json:"amount"`
	Strategy  string           `json:"strategy"`
	Reason    TradeReason      `json:"reason"`
	Profit    *decimal.Decimal `json:"profit"`
	Timestamp time.Time        `json:"timestamp"`
}

// Notional returns price × amount.
func (t TradeRecord) Notional() decimal.Decimal {
	return t.Price.Mul(t.Amount)
}

// IsOpenLot reports whether the record is a BUY not yet closed by a SELL.
func (t TradeRecord) IsOpenLot() bool {
	return t.Side == SideBuy && t.Profit == nil
}

// PnLStats aggregates realized profit across closed trades. A closed trade
// with profit > 0 is a win; every other closed trade counts as a loss.
type PnLStats struct {
	TotalProfit decimal.Decimal `json:"total_profit"`
	Wins        int64           `json:"wins"`
	Losses      int64           `json:"losses"`
	Closed      int64           `json:"closed"`
}

// WinRate returns the fraction of closed trades that were wins, or 0 when no
// trade has closed.
func (s PnLStats) WinRate() float64 {
	if s.Closed == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Closed)
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionStatus is the state of the single tracked holding.
type PositionStatus string

const (
	StatusNeutral    PositionStatus = "NEUTRAL"
	StatusInPosition PositionStatus = "IN_POSITION"
)

// Position is the engine's one holding. Size > 0 iff Status is IN_POSITION.
type Position struct {
	Symbol     string          `json:"symbol"`
	Status     PositionStatus  `json:"status"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Size       decimal.Decimal `json:"size"`
	OpenedAt   time.Time       `json:"opened_at,omitzero"`
}

// NeutralPosition returns a flat position for symbol.
func NeutralPosition(symbol string) Position {
	return Position{Symbol: symbol, Status: StatusNeutral}
}

// Open reports whether the position is IN_POSITION.
func (p Position) Open() bool {
	return p.Status == StatusInPosition
}

// CostBasis returns entry price × size, zero when flat.
func (p Position) CostBasis() decimal.Decimal {
	if !p.Open() {
		return decimal.Zero
	}
	return p.EntryPrice.Mul(p.Size)
}

// Wallet holds the quote cash and base asset balances. Both are never negative.
type Wallet struct {
	Quote decimal.Decimal `json:"quote"`
	Base  decimal.Decimal `json:"base"`
}

// Equity values the wallet at price.
func (w Wallet) Equity(price decimal.Decimal) decimal.Decimal {
	return w.Quote.Add(w.Base.Mul(price))
}

// Equal reports whether both balances match exactly.
func (w Wallet) Equal(o Wallet) bool {
	return w.Quote.Equal(o.Quote) && w.Base.Equal(o.Base)
}

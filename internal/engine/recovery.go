package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/rsibot/internal/domain"
)

// Recovered is the in-memory state rebuilt from the trade log.
type Recovered struct {
	Position  domain.Position
	Wallet    domain.Wallet
	LastActed domain.Signal
	Records   int
}

// Recover rebuilds position, wallet and the last acted signal from records
// (oldest first) for symbol. The newest record decides the position: an
// unmatched BUY means IN_POSITION at its price and amount, anything else is
// NEUTRAL. Quote balance is initial capital plus all realized profit, minus
// the open lot's cost basis. Recover is pure and tolerates an empty log.
func Recover(symbol string, records []domain.TradeRecord, initialCapital decimal.Decimal) (Recovered, error) {
	rec := Recovered{
		Position: domain.NeutralPosition(symbol),
		Wallet:   domain.Wallet{Quote: initialCapital, Base: decimal.Zero},
		Records:  len(records),
	}

	for _, r := range records {
		if r.Profit != nil {
			rec.Wallet.Quote = rec.Wallet.Quote.Add(*r.Profit)
		}
	}

	if len(records) == 0 {
		return rec, nil
	}

	latest := records[len(records)-1]
	rec.LastActed = domain.SignalFor(latest.Side)

	if latest.IsOpenLot() {
		if !latest.Amount.IsPositive() || !latest.Price.IsPositive() {
			return Recovered{}, fmt.Errorf("engine: recover: open lot %d has price %s amount %s",
				latest.ID, latest.Price, latest.Amount)
		}
		rec.Position = domain.Position{
			Symbol:     symbol,
			Status:     domain.StatusInPosition,
			EntryPrice: latest.Price,
			Size:       latest.Amount,
			OpenedAt:   latest.Timestamp,
		}
		rec.Wallet.Quote = rec.Wallet.Quote.Sub(rec.Position.CostBasis())
		rec.Wallet.Base = latest.Amount
	}

	if rec.Wallet.Quote.IsNegative() {
		return Recovered{}, fmt.Errorf("engine: recover: trade log implies negative quote balance %s", rec.Wallet.Quote)
	}
	return rec, nil
}

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/rsibot/internal/domain"
	"github.com/alanyoungcy/rsibot/internal/sizing"
)

// Sizer picks the quantity for a new position.
type Sizer interface {
	Size(ctx context.Context, balance, price decimal.Decimal) sizing.Result
}

// Machine applies signals to the position state. A trade is appended to the
// log first; position and wallet only change after the append succeeds.
// Callers must hold State.mu.
type Machine struct {
	trades       domain.TradeStore
	sizer        Sizer
	events       *Events
	strategy     string
	symbol       string
	storeTimeout time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// NewMachine creates a Machine for symbol.
func NewMachine(trades domain.TradeStore, sizer Sizer, events *Events, strategy, symbol string, storeTimeout time.Duration, logger *slog.Logger) *Machine {
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &Machine{
		trades:       trades,
		sizer:        sizer,
		events:       events,
		strategy:     strategy,
		symbol:       symbol,
		storeTimeout: storeTimeout,
		now:          time.Now,
		logger:       logger.With(slog.String("component", "machine")),
	}
}

// apply runs one signal against st. When dedup is set, a signal equal to the
// last acted signal is skipped. st.mu must be held.
func (m *Machine) apply(ctx context.Context, st *State, sig domain.Signal, price decimal.Decimal, reason domain.TradeReason, dedup bool) Result {
	switch sig {
	case domain.SignalBuy:
		if dedup && st.lastActed == sig {
			return Result{Outcome: OutcomeSkipped, Signal: sig, Detail: "repeated signal"}
		}
		return m.buy(ctx, st, price, reason)
	case domain.SignalSell:
		if dedup && st.lastActed == sig {
			return Result{Outcome: OutcomeSkipped, Signal: sig, Detail: "repeated signal"}
		}
		return m.sell(ctx, st, price, reason)
	default:
		return Result{Outcome: OutcomeHeld, Signal: domain.SignalHold}
	}
}

func (m *Machine) buy(ctx context.Context, st *State, price decimal.Decimal, reason domain.TradeReason) Result {
	res := Result{Signal: domain.SignalBuy, Reason: reason}
	if st.position.Open() {
		res.Outcome = OutcomeSkipped
		res.Err = domain.ErrAlreadyInPosition
		return res
	}
	if !price.IsPositive() {
		res.Outcome = OutcomeRejected
		res.Err = fmt.Errorf("engine: buy: %w: price %s", domain.ErrNoData, price)
		return res
	}

	size := m.sizer.Size(ctx, st.wallet.Quote, price)
	res.Tier = size.TierLabel()
	if !size.Amount.IsPositive() {
		res.Outcome = OutcomeRejected
		res.Err = domain.ErrSizeTooSmall
		return res
	}
	cost := size.Amount.Mul(price)
	if cost.GreaterThan(st.wallet.Quote) {
		res.Outcome = OutcomeRejected
		res.Err = fmt.Errorf("engine: buy: %w: need %s, have %s",
			domain.ErrInsufficientBalance, cost.StringFixed(2), st.wallet.Quote.StringFixed(2))
		return res
	}

	rec, err := m.persist(ctx, domain.TradeRecord{
		Side:   domain.SideBuy,
		Price:  price,
		Amount: size.Amount,
		Reason: reason,
	})
	if err != nil {
		res.Outcome = OutcomeRejected
		res.Err = err
		return res
	}

	st.position = domain.Position{
		Symbol:     m.symbol,
		Status:     domain.StatusInPosition,
		EntryPrice: price,
		Size:       size.Amount,
		OpenedAt:   rec.Timestamp,
	}
	st.wallet.Quote = st.wallet.Quote.Sub(cost)
	st.wallet.Base = st.wallet.Base.Add(size.Amount)
	st.lastActed = domain.SignalBuy

	m.logger.InfoContext(ctx, "position opened",
		slog.String("symbol", m.symbol),
		slog.String("price", price.String()),
		slog.String("amount", size.Amount.String()),
		slog.String("tier", res.Tier),
		slog.String("reason", string(reason)),
	)
	m.events.TradeExecuted(rec, st.wallet, res.Tier)

	res.Outcome = OutcomeTraded
	res.Trade = &rec
	return res
}

func (m *Machine) sell(ctx context.Context, st *State, price decimal.Decimal, reason domain.TradeReason) Result {
	res := Result{Signal: domain.SignalSell, Reason: reason}
	if !st.position.Open() {
		res.Outcome = OutcomeSkipped
		res.Err = domain.ErrNothingToSell
		return res
	}
	if !price.IsPositive() {
		res.Outcome = OutcomeRejected
		res.Err = fmt.Errorf("engine: sell: %w: price %s", domain.ErrNoData, price)
		return res
	}
	amount := st.position.Size
	if st.wallet.Base.LessThan(amount) {
		res.Outcome = OutcomeRejected
		res.Err = fmt.Errorf("engine: sell: %w: hold %s base, position is %s",
			domain.ErrInsufficientBalance, st.wallet.Base, amount)
		return res
	}

	profit := price.Sub(st.position.EntryPrice).Mul(amount)
	rec, err := m.persist(ctx, domain.TradeRecord{
		Side:   domain.SideSell,
		Price:  price,
		Amount: amount,
		Reason: reason,
		Profit: &profit,
	})
	if err != nil {
		res.Outcome = OutcomeRejected
		res.Err = err
		return res
	}

	st.wallet.Quote = st.wallet.Quote.Add(amount.Mul(price))
	st.wallet.Base = st.wallet.Base.Sub(amount)
	st.position = domain.NeutralPosition(m.symbol)
	st.lastActed = domain.SignalSell

	m.logger.InfoContext(ctx, "position closed",
		slog.String("symbol", m.symbol),
		slog.String("price", price.String()),
		slog.String("amount", amount.String()),
		slog.String("profit", profit.StringFixed(2)),
		slog.String("reason", string(reason)),
	)
	m.events.TradeExecuted(rec, st.wallet, "")

	res.Outcome = OutcomeTraded
	res.Trade = &rec
	return res
}

// persist appends rec to the trade log with a fresh client id.
func (m *Machine) persist(ctx context.Context, rec domain.TradeRecord) (domain.TradeRecord, error) {
	rec.ClientID = uuid.NewString()
	rec.Symbol = m.symbol
	rec.Strategy = m.strategy
	rec.Timestamp = m.now().UTC()

	sctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()
	saved, err := m.trades.Append(sctx, rec)
	if err != nil {
		m.logger.ErrorContext(ctx, "trade append failed, state unchanged",
			slog.String("side", string(rec.Side)),
			slog.String("error", err.Error()),
		)
		return domain.TradeRecord{}, fmt.Errorf("engine: append trade: %w", err)
	}
	return saved, nil
}

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/rsibot/internal/domain"
	"github.com/alanyoungcy/rsibot/internal/notify"
	"github.com/alanyoungcy/rsibot/internal/strategy"
)

// Controller is the operator surface over a running engine. Every method is
// safe to call concurrently with the decision loop.
type Controller struct {
	cfg      Config
	state    *State
	machine  *Machine
	feed     domain.PriceFeed
	strategy strategy.Strategy
	trades   domain.TradeStore
	configs  domain.StrategyConfigStore
	audit    domain.AuditStore
	events   *Events
	logger   *slog.Logger

	// cfgMu serializes parameter updates so persistence order matches
	// the order they were applied in.
	cfgMu sync.Mutex
}

// Status is the operator view of the engine.
type Status struct {
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	Strategy  string          `json:"strategy"`
	Snapshot
	Stats     *domain.PnLStats `json:"stats,omitempty"`
	Equity    decimal.Decimal  `json:"equity"`
	ROI       float64          `json:"roi_pct"`
	Initial   decimal.Decimal  `json:"initial_capital"`
}

// Status returns a consistent snapshot plus realized P&L. The P&L query is
// best-effort; on failure Stats is omitted.
func (c *Controller) Status(ctx context.Context) Status {
	snap := c.state.Snapshot()
	equity, roi := equityROI(snap.Wallet, snap.Last.Price, c.cfg.InitialCapital)
	st := Status{
		Symbol:    c.cfg.Symbol,
		Timeframe: c.cfg.Timeframe,
		Strategy:  c.strategy.Name(),
		Snapshot:  snap,
		Equity:    equity,
		ROI:       roi,
		Initial:   c.cfg.InitialCapital,
	}

	sctx, cancel := context.WithTimeout(ctx, c.cfg.StoreTimeout)
	defer cancel()
	stats, err := c.trades.AggregatePnL(sctx)
	if err != nil {
		c.logger.WarnContext(ctx, "status: aggregate pnl failed", slog.String("error", err.Error()))
		return st
	}
	st.Stats = &stats
	return st
}

// UpdateParams merges upd into the live parameters. The merged set is
// validated as a whole and either fully applied or rejected. Persistence is
// best-effort and never rolls back the in-memory change.
func (c *Controller) UpdateParams(ctx context.Context, upd domain.ParamsUpdate) (domain.StrategyParams, error) {
	c.cfgMu.Lock()
	defer c.cfgMu.Unlock()

	c.state.mu.Lock()
	prev := c.state.params
	next := upd.Apply(prev)
	if err := strategy.ValidateParams(c.strategy, next); err != nil {
		c.state.mu.Unlock()
		return prev, err
	}
	c.state.params = next
	c.state.mu.Unlock()

	c.logger.InfoContext(ctx, "strategy parameters updated",
		slog.Float64("buy_threshold", next.BuyThreshold),
		slog.Float64("sell_threshold", next.SellThreshold),
		slog.Float64("stop_loss", next.StopLoss),
		slog.Float64("take_profit", next.TakeProfit),
	)

	sctx, cancel := context.WithTimeout(ctx, c.cfg.StoreTimeout)
	defer cancel()
	if c.configs != nil {
		err := c.configs.Upsert(sctx, domain.StrategyConfig{
			Name:      c.strategy.Name(),
			Params:    next,
			UpdatedAt: time.Now().UTC(),
		})
		if err != nil {
			c.logger.WarnContext(ctx, "persist strategy config failed", slog.String("error", err.Error()))
		}
	}
	c.auditLog(sctx, "config_updated", map[string]any{"previous": prev, "current": next})

	c.events.Alert(notify.EventConfigUpdated, notify.Message{
		Title: "Config updated",
		Body:  fmt.Sprintf("%s thresholds %.4g / %.4g", c.strategy.Name(), next.BuyThreshold, next.SellThreshold),
		Color: notify.ColorInfo,
		Fields: []notify.Field{
			{Name: "Stop Loss", Value: fmt.Sprintf("%.2f%%", next.StopLoss*100), Inline: true},
			{Name: "Take Profit", Value: fmt.Sprintf("%.2f%%", next.TakeProfit*100), Inline: true},
		},
	})
	return next, nil
}

// Pause stops the loop from acting. Iterations keep observing the market.
func (c *Controller) Pause(ctx context.Context) bool {
	return c.setPaused(ctx, true)
}

// Resume re-enables trading.
func (c *Controller) Resume(ctx context.Context) bool {
	return c.setPaused(ctx, false)
}

func (c *Controller) setPaused(ctx context.Context, paused bool) bool {
	prev := c.state.SetPaused(paused)
	if prev == paused {
		return false
	}

	action := "resumed"
	if paused {
		action = "paused"
	}
	c.logger.InfoContext(ctx, "engine "+action)

	sctx, cancel := context.WithTimeout(ctx, c.cfg.StoreTimeout)
	defer cancel()
	c.auditLog(sctx, "run_control", map[string]any{"action": action})
	c.events.Alert(notify.EventRunControl, notify.Message{
		Title: "Engine " + action,
		Body:  fmt.Sprintf("%s trading %s", c.cfg.Symbol, action),
		Color: notify.ColorWarn,
	})
	return true
}

// ManualTrade executes side at the current ticker price. Manual trades
// bypass signal dedup but still honor every position and balance guard.
func (c *Controller) ManualTrade(ctx context.Context, side domain.Side) (Result, error) {
	if side != domain.SideBuy && side != domain.SideSell {
		return Result{}, fmt.Errorf("engine: manual trade: unknown side %q", side)
	}

	fctx, cancel := context.WithTimeout(ctx, c.cfg.FeedTimeout)
	price, err := c.feed.Ticker(fctx, c.cfg.Symbol)
	cancel()
	if err != nil {
		return Result{Outcome: OutcomeDegraded, Err: err}, fmt.Errorf("engine: manual trade: ticker: %w", err)
	}

	c.state.mu.Lock()
	res := c.machine.apply(ctx, c.state, domain.SignalFor(side), price, domain.ReasonManual, false)
	c.state.mu.Unlock()

	c.logger.InfoContext(ctx, "manual trade",
		slog.String("side", string(side)),
		slog.String("price", price.String()),
		slog.String("outcome", string(res.Outcome)),
		slog.String("error", res.Error()),
	)

	if res.Outcome == OutcomeTraded {
		sctx, cancel := context.WithTimeout(ctx, c.cfg.StoreTimeout)
		defer cancel()
		c.auditLog(sctx, "manual_trade", map[string]any{
			"side":   side,
			"price":  price.String(),
			"amount": res.Trade.Amount.String(),
		})
	}
	return res, res.Err
}

// Trades returns the newest limit records for the engine's symbol.
func (c *Controller) Trades(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	sctx, cancel := context.WithTimeout(ctx, c.cfg.StoreTimeout)
	defer cancel()
	recs, err := c.trades.List(sctx, c.cfg.Symbol, domain.ListOpts{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("engine: list trades: %w", err)
	}
	return recs, nil
}

func (c *Controller) auditLog(ctx context.Context, event string, detail map[string]any) {
	if c.audit == nil {
		return
	}
	if err := c.audit.Log(ctx, event, detail); err != nil {
		c.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

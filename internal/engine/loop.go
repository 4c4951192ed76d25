package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/rsibot/internal/domain"
	"github.com/alanyoungcy/rsibot/internal/risk"
	"github.com/alanyoungcy/rsibot/internal/strategy"
)

// Loop is the periodic decision cycle: fetch candles, evaluate the
// strategy, check risk exits, then apply the signal.
type Loop struct {
	cfg      Config
	feed     domain.PriceFeed
	strategy strategy.Strategy
	state    *State
	machine  *Machine
	trades   domain.TradeStore
	events   *Events
	logger   *slog.Logger
}

// Step runs exactly one iteration. It never panics and never returns an
// error; failures are reported through the Result.
func (l *Loop) Step(ctx context.Context) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.ErrorContext(ctx, "decision step panicked", slog.Any("panic", r))
			res = degraded(fmt.Errorf("engine: step panic: %v", r))
			l.observe(Observation{Signal: domain.SignalHold}, res)
		}
	}()

	fctx, cancel := context.WithTimeout(ctx, l.cfg.FeedTimeout)
	candles, err := l.feed.Candles(fctx, l.cfg.Symbol, l.cfg.Timeframe, l.cfg.CandleLimit)
	cancel()
	if err == nil && len(candles) == 0 {
		err = domain.ErrNoData
	}
	if err != nil {
		res = degraded(fmt.Errorf("engine: fetch candles: %w", err))
		l.observe(Observation{Signal: domain.SignalHold}, res)
		return res
	}

	last := candles[len(candles)-1]
	price := decimal.NewFromFloat(last.Close)
	obs := Observation{Price: price}

	value, evalErr := l.strategy.Evaluate(candles)
	if evalErr == nil {
		obs.Indicator = &value
	}

	l.state.mu.Lock()
	defer l.state.mu.Unlock()

	params := l.state.params
	sig := domain.SignalHold
	if evalErr == nil {
		sig = strategy.Decide(value, params)
	}
	obs.Signal = sig

	if l.state.paused {
		res = Result{Outcome: OutcomeSkipped, Signal: sig, Detail: "paused"}
		l.recordLocked(obs, res)
		return res
	}

	if exit := risk.Check(l.state.position, price, params); exit.Triggered {
		l.logger.WarnContext(ctx, exit.Label()+" triggered",
			slog.String("symbol", l.cfg.Symbol),
			slog.String("price", price.String()),
			slog.String("entry", l.state.position.EntryPrice.String()),
			slog.String("change", exit.Change.StringFixed(4)),
		)
		obs.Signal = domain.SignalSell
		res = l.machine.apply(ctx, l.state, domain.SignalSell, price, exit.Reason, false)
		res.Detail = exit.Label()
		l.recordLocked(obs, res)
		return res
	}

	if evalErr != nil {
		res = degraded(fmt.Errorf("engine: evaluate %s: %w", l.strategy.Name(), evalErr))
		l.recordLocked(obs, res)
		return res
	}

	res = l.machine.apply(ctx, l.state, sig, price, domain.ReasonSignal, true)
	l.recordLocked(obs, res)
	return res
}

func (l *Loop) observe(obs Observation, res Result) {
	l.state.mu.Lock()
	defer l.state.mu.Unlock()
	l.recordLocked(obs, res)
}

func (l *Loop) recordLocked(obs Observation, res Result) {
	obs.Outcome = res.Outcome
	obs.Error = res.Error()
	obs.At = time.Now().UTC()
	l.state.obs = obs
	l.state.iterations++

	l.events.Status(StatusEvent{
		Symbol:  l.cfg.Symbol,
		Paused:  l.state.paused,
		Last:    obs,
		Status:  string(l.state.position.Status),
		Wallet:  l.state.wallet,
		Updated: obs.At,
	})
}

// Run calls Step every PollInterval until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.InfoContext(ctx, "decision loop started",
		slog.String("symbol", l.cfg.Symbol),
		slog.String("timeframe", l.cfg.Timeframe),
		slog.String("strategy", l.strategy.Name()),
		slog.Duration("interval", l.cfg.PollInterval),
	)

	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	var n int64
	for {
		res := l.Step(ctx)
		l.logResult(ctx, res)

		n++
		if l.cfg.PerfLogEvery > 0 && n%int64(l.cfg.PerfLogEvery) == 0 {
			l.logPerformance(ctx)
		}

		select {
		case <-ctx.Done():
			l.logger.InfoContext(ctx, "decision loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Loop) logResult(ctx context.Context, res Result) {
	attrs := []any{
		slog.String("outcome", string(res.Outcome)),
		slog.String("signal", string(res.Signal)),
	}
	if res.Detail != "" {
		attrs = append(attrs, slog.String("detail", res.Detail))
	}
	if res.Err != nil {
		attrs = append(attrs, slog.String("error", res.Err.Error()))
	}
	switch {
	case res.Outcome == OutcomeDegraded || res.Outcome == OutcomeRejected:
		if errors.Is(res.Err, context.Canceled) {
			return
		}
		l.logger.WarnContext(ctx, "decision step", attrs...)
	case res.Outcome == OutcomeTraded:
		l.logger.InfoContext(ctx, "decision step", attrs...)
	default:
		l.logger.DebugContext(ctx, "decision step", attrs...)
	}
}

func (l *Loop) logPerformance(ctx context.Context) {
	snap := l.state.Snapshot()

	sctx, cancel := context.WithTimeout(ctx, l.cfg.StoreTimeout)
	stats, err := l.trades.AggregatePnL(sctx)
	cancel()
	if err != nil {
		l.logger.WarnContext(ctx, "performance query failed", slog.String("error", err.Error()))
		return
	}

	equity, roi := equityROI(snap.Wallet, snap.Last.Price, l.cfg.InitialCapital)
	l.logger.InfoContext(ctx, "performance",
		slog.String("total_profit", stats.TotalProfit.StringFixed(2)),
		slog.Int64("wins", stats.Wins),
		slog.Int64("losses", stats.Losses),
		slog.Float64("win_rate", stats.WinRate()),
		slog.String("equity", equity.StringFixed(2)),
		slog.Float64("roi_pct", roi),
		slog.String("status", string(snap.Position.Status)),
	)
}

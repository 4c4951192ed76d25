package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/rsibot/internal/domain"
	"github.com/alanyoungcy/rsibot/internal/engine"
	"github.com/alanyoungcy/rsibot/internal/feed/binance"
	"github.com/alanyoungcy/rsibot/internal/server"
	"github.com/alanyoungcy/rsibot/internal/server/handler"
	"github.com/alanyoungcy/rsibot/internal/server/ws"
	"github.com/alanyoungcy/rsibot/internal/sizing"
	"github.com/alanyoungcy/rsibot/internal/strategy"
)

// wsBackfill is how many recent trades a new dashboard connection replays.
const wsBackfill = 20

// TradeMode recovers the engine from the trade log, takes the instance lock
// and runs the decision loop alongside the HTTP control surface.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")
	return a.runEngine(ctx, deps, false)
}

// MonitorMode is TradeMode started paused: the loop observes and publishes
// status but does not act on signals until resumed.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")
	return a.runEngine(ctx, deps, true)
}

// ArchiveMode exports trade records older than the retention window to
// object storage and exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return errors.New("archive mode: archiver not configured")
	}
	before := time.Now().UTC().AddDate(0, 0, -a.cfg.S3.RetentionDays)
	a.logger.InfoContext(ctx, "starting archive mode", slog.Time("before", before))

	n, err := deps.Archiver.ArchiveTrades(ctx, before)
	if err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}
	a.logger.InfoContext(ctx, "archive complete", slog.Int64("trades", n))
	return nil
}

func (a *App) runEngine(ctx context.Context, deps *Dependencies, startPaused bool) error {
	symbol := a.cfg.Engine.Symbol

	// One engine per symbol: a second instance would double-trade the wallet.
	if deps.LockManager != nil {
		ttl := a.cfg.Engine.LockTTL.Duration
		lease, err := deps.LockManager.Acquire(ctx, "engine:"+symbol, ttl)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				return fmt.Errorf("another engine instance is running for %s: %w", symbol, err)
			}
			return fmt.Errorf("acquire instance lock: %w", err)
		}
		defer lease.Release()
		a.logger.InfoContext(ctx, "instance lock acquired", slog.String("symbol", symbol))

		// Losing the lock cancels the group and stops trading.
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return a.holdLease(gctx, lease, ttl) })
		g.Go(func() error { return a.serveEngine(gctx, deps, startPaused) })
		return g.Wait()
	}

	return a.serveEngine(ctx, deps, startPaused)
}

// holdLease refreshes lease at a third of its TTL until ctx ends.
func (a *App) holdLease(ctx context.Context, lease domain.Lease, ttl time.Duration) error {
	ticker := time.NewTicker(ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rctx, cancel := context.WithTimeout(ctx, ttl/3)
			err := lease.Refresh(rctx, ttl)
			cancel()
			if errors.Is(err, domain.ErrLockHeld) {
				a.logger.ErrorContext(ctx, "instance lock lost; stopping")
				return fmt.Errorf("instance lock lost: %w", err)
			}
			if err != nil {
				// Transient; the TTL leaves two more attempts.
				a.logger.WarnContext(ctx, "instance lock refresh failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func (a *App) serveEngine(ctx context.Context, deps *Dependencies, startPaused bool) error {
	strat, err := strategy.DefaultRegistry(a.cfg.Strategy.RSIPeriod).Get(a.cfg.Strategy.Name)
	if err != nil {
		return fmt.Errorf("select strategy: %w", err)
	}

	eng, err := engine.Start(ctx, a.engineConfig(strat, startPaused), engine.Deps{
		Feed:     a.newFeed(deps),
		Strategy: strat,
		Trades:   deps.TradeStore,
		Sizer:    a.newSizer(deps),
		Configs:  deps.StratCfgStore,
		Audit:    deps.AuditStore,
		Bus:      deps.SignalBus,
		Wallets:  deps.WalletCache,
		Notifier: deps.Notifier,
		Logger:   a.logger,
	})
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Run(ctx)
	})
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, eng.Controller)
	}
	return g.Wait()
}

func (a *App) engineConfig(strat strategy.Strategy, startPaused bool) engine.Config {
	e := a.cfg.Engine
	cfg := engine.Config{
		Symbol:         e.Symbol,
		Timeframe:      e.Timeframe,
		CandleLimit:    e.CandleLimit,
		PollInterval:   e.PollInterval.Duration,
		FeedTimeout:    e.FeedTimeout.Duration,
		StoreTimeout:   e.StoreTimeout.Duration,
		PerfLogEvery:   e.PerfLogEvery,
		InitialCapital: decimal.NewFromFloat(e.InitialCapital),
		StartPaused:    startPaused,
	}

	// Configured thresholds overlay the strategy defaults field by field.
	if s := a.cfg.Strategy; s.HasThresholds() {
		p := strat.Defaults()
		if s.BuyThreshold != 0 {
			p.BuyThreshold = s.BuyThreshold
		}
		if s.SellThreshold != 0 {
			p.SellThreshold = s.SellThreshold
		}
		if s.StopLoss != 0 {
			p.StopLoss = s.StopLoss
		}
		if s.TakeProfit != 0 {
			p.TakeProfit = s.TakeProfit
		}
		cfg.Params = &p
	}
	return cfg
}

func (a *App) newFeed(deps *Dependencies) *binance.Client {
	baseURL := a.cfg.Exchange.BaseURL
	if baseURL == "" {
		baseURL = binance.MainnetURL
		if a.cfg.Exchange.Testnet {
			baseURL = binance.TestnetURL
		}
	}

	opts := []binance.Option{
		binance.WithHTTPClient(&http.Client{Timeout: a.cfg.Exchange.RequestTimeout.Duration}),
	}
	if deps.RateLimiter != nil {
		opts = append(opts, binance.WithRateLimiter(deps.RateLimiter))
	}
	return binance.NewClient(baseURL, opts...)
}

func (a *App) newSizer(deps *Dependencies) *sizing.Sizer {
	s := a.cfg.Sizing
	return sizing.New(sizing.Config{
		MinNotional:  decimal.NewFromFloat(s.MinNotional),
		MaxFraction:  decimal.NewFromFloat(s.MaxFraction),
		LotStep:      decimal.NewFromFloat(s.LotStep),
		StatsTimeout: s.StatsTimeout.Duration,
	}, deps.TradeStore, a.logger)
}

// startHTTPServer adds the HTTP server, its graceful shutdown and the
// WebSocket hub (when a bus is wired) to the given errgroup.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, ctl *engine.Controller) {
	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, ctl, ws.Config{Backfill: wsBackfill}, a.logger)
		g.Go(func() error {
			err := hub.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  time.Minute,
	}, server.Handlers{
		Health:  handler.NewHealthHandler(deps.Checks, a.logger),
		Status:  handler.NewStatusHandler(ctl),
		Config:  handler.NewConfigHandler(ctl, a.logger),
		Control: handler.NewControlHandler(ctl),
		Trade:   handler.NewTradeHandler(ctl, a.logger),
		Trades:  handler.NewTradesHandler(ctl, a.logger),
	}, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

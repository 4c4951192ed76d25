// Package engine runs the single-symbol trading state machine: the periodic
// decision loop, crash recovery from the trade log, and the concurrent
// control surface used by the HTTP API.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/rsibot/internal/domain"
	"github.com/alanyoungcy/rsibot/internal/notify"
	"github.com/alanyoungcy/rsibot/internal/strategy"
)

// Config holds the engine's runtime settings.
type Config struct {
	Symbol         string
	Timeframe      string
	CandleLimit    int
	PollInterval   time.Duration
	FeedTimeout    time.Duration
	StoreTimeout   time.Duration
	EventTimeout   time.Duration
	PerfLogEvery   int
	InitialCapital decimal.Decimal
	StartPaused    bool
	// Params overrides the strategy defaults when no persisted config
	// exists. Nil means use the defaults.
	Params *domain.StrategyParams
}

func (c *Config) setDefaults() {
	if c.Timeframe == "" {
		c.Timeframe = "1h"
	}
	if c.CandleLimit <= 0 {
		c.CandleLimit = 100
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.FeedTimeout <= 0 {
		c.FeedTimeout = 10 * time.Second
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 5 * time.Second
	}
	if c.EventTimeout <= 0 {
		c.EventTimeout = 5 * time.Second
	}
}

// Deps are the collaborators the engine is wired with. Feed, Strategy,
// Trades and Sizer are required; the rest may be nil.
type Deps struct {
	Feed     domain.PriceFeed
	Strategy strategy.Strategy
	Trades   domain.TradeStore
	Sizer    Sizer
	Configs  domain.StrategyConfigStore
	Audit    domain.AuditStore
	Bus      domain.SignalBus
	Wallets  domain.WalletCache
	Notifier Notifier
	Logger   *slog.Logger
}

// Engine bundles the loop and controller sharing one State.
type Engine struct {
	Loop       *Loop
	Controller *Controller
	events     *Events
	logger     *slog.Logger
}

// Start recovers state from the trade log, loads the live parameters and
// returns an Engine ready to Run. It fails if the log cannot be read or is
// inconsistent, so that the engine never trades on a guessed position.
func Start(ctx context.Context, cfg Config, deps Deps) (*Engine, error) {
	if cfg.Symbol == "" {
		return nil, errors.New("engine: symbol is required")
	}
	if deps.Feed == nil || deps.Strategy == nil || deps.Trades == nil || deps.Sizer == nil {
		return nil, errors.New("engine: feed, strategy, trades and sizer are required")
	}
	cfg.setDefaults()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "engine"), slog.String("symbol", cfg.Symbol))

	params, err := loadParams(ctx, cfg, deps, logger)
	if err != nil {
		return nil, err
	}

	hctx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	history, err := deps.Trades.History(hctx, cfg.Symbol)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("engine: load trade history: %w", err)
	}
	rec, err := Recover(cfg.Symbol, history, cfg.InitialCapital)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "state recovered",
		slog.Int("records", rec.Records),
		slog.String("status", string(rec.Position.Status)),
		slog.String("entry_price", rec.Position.EntryPrice.String()),
		slog.String("size", rec.Position.Size.String()),
		slog.String("quote", rec.Wallet.Quote.StringFixed(2)),
		slog.String("last_acted", string(rec.LastActed)),
	)
	checkWalletCache(ctx, cfg, deps.Wallets, rec.Wallet, logger)

	events := NewEvents(deps.Notifier, deps.Bus, deps.Wallets, cfg.EventTimeout, logger)
	state := NewState(rec, params, cfg.StartPaused)
	machine := NewMachine(deps.Trades, deps.Sizer, events, deps.Strategy.Name(), cfg.Symbol, cfg.StoreTimeout, logger)

	e := &Engine{
		Loop: &Loop{
			cfg:      cfg,
			feed:     deps.Feed,
			strategy: deps.Strategy,
			state:    state,
			machine:  machine,
			trades:   deps.Trades,
			events:   events,
			logger:   logger.With(slog.String("component", "loop")),
		},
		Controller: &Controller{
			cfg:      cfg,
			state:    state,
			machine:  machine,
			feed:     deps.Feed,
			strategy: deps.Strategy,
			trades:   deps.Trades,
			configs:  deps.Configs,
			audit:    deps.Audit,
			events:   events,
			logger:   logger.With(slog.String("component", "controller")),
		},
		events: events,
		logger: logger,
	}

	events.Alert(notify.EventEngineStarted, notify.Message{
		Title: "Bot started",
		Body:  fmt.Sprintf("Monitoring %s (%s) with %s", cfg.Symbol, cfg.Timeframe, deps.Strategy.Name()),
		Color: notify.ColorInfo,
		Fields: []notify.Field{
			{Name: "Status", Value: string(rec.Position.Status), Inline: true},
			{Name: "Quote", Value: rec.Wallet.Quote.StringFixed(2), Inline: true},
			{Name: "Paused", Value: fmt.Sprintf("%t", cfg.StartPaused), Inline: true},
		},
	})
	return e, nil
}

// Run blocks running the decision loop until ctx is cancelled, then waits
// for in-flight event deliveries.
func (e *Engine) Run(ctx context.Context) error {
	err := e.Loop.Run(ctx)
	e.events.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func loadParams(ctx context.Context, cfg Config, deps Deps, logger *slog.Logger) (domain.StrategyParams, error) {
	params := deps.Strategy.Defaults()
	if cfg.Params != nil {
		params = *cfg.Params
	}

	if deps.Configs != nil {
		sctx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
		stored, err := deps.Configs.Get(sctx, deps.Strategy.Name())
		cancel()
		switch {
		case err == nil:
			if verr := strategy.ValidateParams(deps.Strategy, stored.Params); verr != nil {
				logger.WarnContext(ctx, "ignoring invalid persisted parameters", slog.String("error", verr.Error()))
			} else {
				params = stored.Params
				logger.InfoContext(ctx, "loaded persisted parameters", slog.Time("updated_at", stored.UpdatedAt))
			}
		case errors.Is(err, domain.ErrNotFound):
		default:
			logger.WarnContext(ctx, "load persisted parameters failed", slog.String("error", err.Error()))
		}
	}

	if err := strategy.ValidateParams(deps.Strategy, params); err != nil {
		return domain.StrategyParams{}, fmt.Errorf("engine: %w", err)
	}
	return params, nil
}

// checkWalletCache compares the recovered wallet with the last cached
// snapshot. The trade log is authoritative; a mismatch is only reported.
func checkWalletCache(ctx context.Context, cfg Config, cache domain.WalletCache, w domain.Wallet, logger *slog.Logger) {
	if cache == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	defer cancel()
	cached, err := cache.GetWallet(cctx, cfg.Symbol)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.WarnContext(ctx, "wallet cache read failed", slog.String("error", err.Error()))
		}
		return
	}
	if !cached.Equal(w) {
		logger.WarnContext(ctx, "cached wallet differs from trade log, using trade log",
			slog.String("cached_quote", cached.Quote.String()),
			slog.String("cached_base", cached.Base.String()),
			slog.String("recovered_quote", w.Quote.String()),
			slog.String("recovered_base", w.Base.String()),
		)
	}
}

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/rsibot/internal/domain"
	"github.com/alanyoungcy/rsibot/internal/notify"
)

// Notifier is the alert sink used for engine events.
type Notifier interface {
	Notify(ctx context.Context, event string, msg notify.Message) error
}

// Events fans committed engine transitions out to the notifier, the event
// bus and the wallet cache. Every delivery runs in its own goroutine with a
// timeout; failures are logged and never reach the caller.
type Events struct {
	notifier Notifier
	bus      domain.SignalBus
	wallets  domain.WalletCache
	timeout  time.Duration
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewEvents creates an Events. Any sink may be nil.
func NewEvents(notifier Notifier, bus domain.SignalBus, wallets domain.WalletCache, timeout time.Duration, logger *slog.Logger) *Events {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Events{
		notifier: notifier,
		bus:      bus,
		wallets:  wallets,
		timeout:  timeout,
		logger:   logger.With(slog.String("component", "events")),
	}
}

// TradeEvent is the bus payload for a committed trade.
type TradeEvent struct {
	Type   string             `json:"type"`
	Trade  domain.TradeRecord `json:"trade"`
	Wallet domain.Wallet      `json:"wallet"`
	Tier   string             `json:"tier,omitempty"`
}

// StatusEvent is the bus payload for a loop iteration.
type StatusEvent struct {
	Type    string        `json:"type"`
	Symbol  string        `json:"symbol"`
	Paused  bool          `json:"paused"`
	Last    Observation   `json:"last"`
	Status  string        `json:"status"`
	Wallet  domain.Wallet `json:"wallet"`
	Updated time.Time     `json:"updated"`
}

func (e *Events) async(name string, fn func(ctx context.Context) error) {
	if e == nil {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			e.logger.WarnContext(ctx, "event delivery failed",
				slog.String("sink", name),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Wait blocks until in-flight deliveries finish.
func (e *Events) Wait() {
	if e != nil {
		e.wg.Wait()
	}
}

// TradeExecuted announces a committed trade.
func (e *Events) TradeExecuted(rec domain.TradeRecord, wallet domain.Wallet, tier string) {
	if e == nil {
		return
	}
	if e.notifier != nil {
		event := notify.EventTradeExecuted
		if rec.Reason == domain.ReasonStopLoss || rec.Reason == domain.ReasonTakeProfit {
			event = notify.EventRiskExit
		}
		msg := tradeMessage(rec, wallet, tier)
		e.async("notifier", func(ctx context.Context) error {
			return e.notifier.Notify(ctx, event, msg)
		})
	}
	if e.bus != nil {
		payload, err := json.Marshal(TradeEvent{Type: "trade", Trade: rec, Wallet: wallet, Tier: tier})
		if err == nil {
			e.async("bus", func(ctx context.Context) error {
				if err := e.bus.StreamAppend(ctx, domain.StreamTrades, payload); err != nil {
					return err
				}
				return e.bus.Publish(ctx, domain.ChannelTrade, payload)
			})
		}
	}
	if e.wallets != nil {
		e.async("wallet_cache", func(ctx context.Context) error {
			return e.wallets.SetWallet(ctx, rec.Symbol, wallet)
		})
	}
}

// Status publishes an iteration snapshot to the bus.
func (e *Events) Status(ev StatusEvent) {
	if e == nil || e.bus == nil {
		return
	}
	ev.Type = "status"
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	e.async("bus", func(ctx context.Context) error {
		return e.bus.Publish(ctx, domain.ChannelStatus, payload)
	})
}

// Alert sends a free-form notification.
func (e *Events) Alert(event string, msg notify.Message) {
	if e == nil || e.notifier == nil {
		return
	}
	e.async("notifier", func(ctx context.Context) error {
		return e.notifier.Notify(ctx, event, msg)
	})
}

func tradeMessage(rec domain.TradeRecord, wallet domain.Wallet, tier string) notify.Message {
	color := notify.ColorBuy
	title := fmt.Sprintf("BUY %s", rec.Symbol)
	if rec.Side == domain.SideSell {
		color = notify.ColorSell
		title = fmt.Sprintf("SELL %s", rec.Symbol)
	}
	body := fmt.Sprintf("Trade executed (%s)", rec.Reason)
	switch rec.Reason {
	case domain.ReasonStopLoss:
		body = "Stop Loss triggered"
	case domain.ReasonTakeProfit:
		body = "Take Profit triggered"
	}

	fields := []notify.Field{
		{Name: "Symbol", Value: rec.Symbol, Inline: true},
		{Name: "Price", Value: rec.Price.StringFixed(2), Inline: true},
		{Name: "Trade Size", Value: rec.Amount.String(), Inline: true},
		{Name: "Base Held", Value: wallet.Base.String(), Inline: true},
		{Name: "Wallet Value", Value: wallet.Equity(rec.Price).StringFixed(2), Inline: true},
	}
	if tier != "" {
		fields = append(fields, notify.Field{Name: "Tier", Value: tier, Inline: true})
	}
	if rec.Profit != nil {
		fields = append(fields, notify.Field{Name: "Profit", Value: rec.Profit.StringFixed(2), Inline: true})
	}
	return notify.Message{Title: title, Body: body, Color: color, Fields: fields}
}

func equityROI(wallet domain.Wallet, price, initial decimal.Decimal) (decimal.Decimal, float64) {
	equity := wallet.Equity(price)
	if !initial.IsPositive() {
		return equity, 0
	}
	roi, _ := equity.Sub(initial).Div(initial).Mul(decimal.NewFromInt(100)).Float64()
	return equity, roi
}

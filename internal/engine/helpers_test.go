package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/rsibot/internal/domain"
	"github.com/alanyoungcy/rsibot/internal/sizing"
	"github.com/alanyoungcy/rsibot/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeFeed serves a single candle whose close is the current price.
type fakeFeed struct {
	mu    sync.Mutex
	price float64
	err   error
}

func (f *fakeFeed) set(price float64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.price = price
	f.err = err
}

func (f *fakeFeed) Candles(_ context.Context, _, _ string, _ int) ([]domain.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Candle{{Open: f.price, High: f.price, Low: f.price, Close: f.price}}, nil
}

func (f *fakeFeed) Ticker(_ context.Context, _ string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return decimal.NewFromFloat(f.price), nil
}

// fakeStrategy returns a settable indicator value.
type fakeStrategy struct {
	mu    sync.Mutex
	value float64
	err   error
}

func (s *fakeStrategy) set(v float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	s.err = err
}

func (s *fakeStrategy) Name() string { return "fake" }
func (s *fakeStrategy) Warmup() int { return 1 }
func (s *fakeStrategy) Bounds() (float64, float64) { return 0, 100 }

func (s *fakeStrategy) Defaults() domain.StrategyParams {
	return domain.StrategyParams{BuyThreshold: 25, SellThreshold: 65, StopLoss: 0.1, TakeProfit: 0.04}
}

func (s *fakeStrategy) Evaluate(_ []domain.Candle) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.err
}

type fixedSizer struct {
	amount decimal.Decimal
}

func (z fixedSizer) Size(_ context.Context, _, _ decimal.Decimal) sizing.Result {
	return sizing.Result{Amount: z.amount, Tier: sizing.TierNormal}
}

// flakyStore fails Append while fail is set.
type flakyStore struct {
	*memory.TradeStore
	mu   sync.Mutex
	fail bool
}

func (s *flakyStore) setFail(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = v
}

func (s *flakyStore) Append(ctx context.Context, rec domain.TradeRecord) (domain.TradeRecord, error) {
	s.mu.Lock()
	fail := s.fail
	s.mu.Unlock()
	if fail {
		return domain.TradeRecord{}, errors.New("disk full")
	}
	return s.TradeStore.Append(ctx, rec)
}

type harness struct {
	engine *Engine
	feed   *fakeFeed
	strat  *fakeStrategy
	trades *flakyStore
	audit  *memory.AuditStore
	cfgs   *memory.StrategyConfigStore
}

func newHarness(t *testing.T, amount string, seed ...domain.TradeRecord) *harness {
	t.Helper()
	h := &harness{
		feed:   &fakeFeed{price: 50000},
		strat:  &fakeStrategy{value: 50},
		trades: &flakyStore{TradeStore: memory.NewTradeStore()},
		audit:  memory.NewAuditStore(),
		cfgs:   memory.NewStrategyConfigStore(),
	}
	for _, rec := range seed {
		if _, err := h.trades.Append(context.Background(), rec); err != nil {
			t.Fatalf("seed append: %v", err)
		}
	}
	eng, err := Start(context.Background(), Config{
		Symbol:         "BTC/USDT",
		PollInterval:   time.Millisecond,
		InitialCapital: decimal.NewFromInt(10000),
	}, Deps{
		Feed:     h.feed,
		Strategy: h.strat,
		Trades:   h.trades,
		Sizer:    fixedSizer{amount: decimal.RequireFromString(amount)},
		Configs:  h.cfgs,
		Audit:    h.audit,
		Logger:   testLogger(),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.engine = eng
	return h
}

func (h *harness) step(t *testing.T, price, value float64) Result {
	t.Helper()
	h.feed.set(price, nil)
	h.strat.set(value, nil)
	return h.engine.Loop.Step(context.Background())
}

func (h *harness) snapshot() Snapshot {
	return h.engine.Loop.state.Snapshot()
}

func checkInvariants(t *testing.T, snap Snapshot) {
	t.Helper()
	open := snap.Position.Status == domain.StatusInPosition
	if open != snap.Position.Size.IsPositive() {
		t.Fatalf("status %s with size %s", snap.Position.Status, snap.Position.Size)
	}
	if snap.Wallet.Quote.IsNegative() || snap.Wallet.Base.IsNegative() {
		t.Fatalf("negative wallet %+v", snap.Wallet)
	}
	if open && !snap.Wallet.Base.Equal(snap.Position.Size) {
		t.Fatalf("base %s != position size %s", snap.Wallet.Base, snap.Position.Size)
	}
}

func mustDec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func samePosition(a, b domain.Position) bool {
	return a.Symbol == b.Symbol && a.Status == b.Status &&
		a.EntryPrice.Equal(b.EntryPrice) && a.Size.Equal(b.Size)
}

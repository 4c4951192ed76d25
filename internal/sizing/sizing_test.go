package sizing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/rsibot/internal/domain"
)

type fakeStats struct {
	stats domain.PnLStats
	err   error
}

func (f fakeStats) AggregatePnL(context.Context) (domain.PnLStats, error) {
	return f.stats, f.err
}

func newSizer(stats StatsSource) *Sizer {
	return New(Config{
		MinNotional: decimal.NewFromInt(10),
		LotStep:     decimal.RequireFromString("0.00001"),
	}, stats, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSize(t *testing.T) {
	tests := []struct {
		name      string
		stats     domain.PnLStats
		balance   string
		price     string
		wantAmt   string
		wantLabel string
	}{
		{"hot hand", domain.PnLStats{Wins: 2, Closed: 2}, "10000", "50000", "0.004", "Tier 1 (Hot Hand)"},
		{"no history", domain.PnLStats{}, "10000", "50000", "0.002", "Tier 2 (Normal)"},
		{"cold streak", domain.PnLStats{Wins: 1, Losses: 3, Closed: 4}, "10000", "50000", "0.001", "Tier 3 (Cold Streak)"},
		{"exact half is normal", domain.PnLStats{Wins: 2, Losses: 2, Closed: 4}, "10000", "50000", "0.002", "Tier 2 (Normal)"},
		{"min notional floor", domain.PnLStats{}, "100", "50000", "0.0002", "Tier 2 (Normal)"},
		{"rounds down to lot", domain.PnLStats{}, "10000", "30000", "0.00333", "Tier 2 (Normal)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newSizer(fakeStats{stats: tt.stats}).Size(context.Background(), dec(tt.balance), dec(tt.price))
			if !res.Amount.Equal(dec(tt.wantAmt)) {
				t.Errorf("amount = %s, want %s", res.Amount, tt.wantAmt)
			}
			if res.TierLabel() != tt.wantLabel {
				t.Errorf("tier = %q, want %q", res.TierLabel(), tt.wantLabel)
			}
			if res.Fallback {
				t.Error("unexpected fallback")
			}
		})
	}
}

func TestSizeFallsBackOnStatsError(t *testing.T) {
	res := newSizer(fakeStats{err: errors.New("db down")}).Size(context.Background(), dec("10000"), dec("50000"))
	if !res.Fallback {
		t.Fatal("expected fallback")
	}
	if res.Tier != TierNormal {
		t.Fatalf("tier = %v, want Normal", res.Tier.Label())
	}
	if !res.Amount.Equal(dec("0.0002")) {
		t.Fatalf("amount = %s, want 0.0002", res.Amount)
	}
}

func TestSizeFallsBackOnBadPrice(t *testing.T) {
	res := newSizer(nil).Size(context.Background(), dec("10000"), decimal.Zero)
	if !res.Fallback || !res.Amount.IsZero() {
		t.Fatalf("res = %+v, want zero fallback", res)
	}
}

type slowStats struct{}

func (slowStats) AggregatePnL(ctx context.Context) (domain.PnLStats, error) {
	<-ctx.Done()
	return domain.PnLStats{}, ctx.Err()
}

func TestSizeStatsQueryIsBounded(t *testing.T) {
	s := New(Config{
		MinNotional:  decimal.NewFromInt(10),
		LotStep:      dec("0.00001"),
		StatsTimeout: 20 * time.Millisecond,
	}, slowStats{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	done := make(chan Result, 1)
	go func() { done <- s.Size(context.Background(), dec("10000"), dec("50000")) }()
	select {
	case res := <-done:
		if !res.Fallback {
			t.Fatal("expected fallback after timeout")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Size blocked past the stats timeout")
	}
}

func TestWinRate(t *testing.T) {
	if got := WinRate(0, 0); got != 0.5 {
		t.Fatalf("WinRate(0,0) = %v", got)
	}
	if got := WinRate(3, 1); got != 0.75 {
		t.Fatalf("WinRate(3,1) = %v", got)
	}
}

package memory

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/rsibot/internal/domain"
)

func profit(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestAggregatePnLIgnoresInsertionOrder(t *testing.T) {
	recs := []domain.TradeRecord{
		{Symbol: "BTCUSDT", Side: domain.SideBuy},
		{Symbol: "BTCUSDT", Side: domain.SideSell, Profit: profit("12.5")},
		{Symbol: "ETHUSDT", Side: domain.SideSell, Profit: profit("-3.25")},
		{Symbol: "BTCUSDT", Side: domain.SideSell, Profit: profit("0")},
		{Symbol: "BTCUSDT", Side: domain.SideSell, Profit: profit("7")},
	}
	want := decimal.RequireFromString("16.25")

	rng := rand.New(rand.NewSource(1))
	for round := 0; round < 10; round++ {
		rng.Shuffle(len(recs), func(i, j int) { recs[i], recs[j] = recs[j], recs[i] })
		s := NewTradeStore()
		for _, r := range recs {
			if _, err := s.Append(context.Background(), r); err != nil {
				t.Fatalf("Append: %v", err)
			}
		}
		stats, err := s.AggregatePnL(context.Background())
		if err != nil {
			t.Fatalf("AggregatePnL: %v", err)
		}
		if !stats.TotalProfit.Equal(want) {
			t.Fatalf("total = %s, want %s", stats.TotalProfit, want)
		}
		if stats.Wins != 2 || stats.Losses != 2 || stats.Closed != 4 {
			t.Fatalf("stats = %+v", stats)
		}
	}
}

func TestAppendIsIdempotentOnClientID(t *testing.T) {
	s := NewTradeStore()
	rec := domain.TradeRecord{ClientID: "abc", Symbol: "BTCUSDT", Side: domain.SideBuy}
	first, _ := s.Append(context.Background(), rec)
	second, _ := s.Append(context.Background(), rec)
	if first.ID != second.ID || s.Len() != 1 {
		t.Fatalf("duplicate append stored twice: %d/%d len=%d", first.ID, second.ID, s.Len())
	}
}

func TestLatestHistoryList(t *testing.T) {
	s := NewTradeStore()
	ctx := context.Background()
	if _, err := s.Latest(ctx, "BTCUSDT"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("empty Latest err = %v", err)
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, side := range []domain.Side{domain.SideBuy, domain.SideSell, domain.SideBuy} {
		_, _ = s.Append(ctx, domain.TradeRecord{Symbol: "BTCUSDT", Side: side, Timestamp: base.Add(time.Duration(i) * time.Hour)})
	}
	_, _ = s.Append(ctx, domain.TradeRecord{Symbol: "ETHUSDT", Side: domain.SideSell, Timestamp: base.Add(5 * time.Hour)})

	latest, err := s.Latest(ctx, "BTCUSDT")
	if err != nil || latest.Side != domain.SideBuy || latest.ID != 3 {
		t.Fatalf("Latest = %+v, %v", latest, err)
	}
	hist, _ := s.History(ctx, "BTCUSDT")
	if len(hist) != 3 || hist[0].ID != 1 {
		t.Fatalf("History = %+v", hist)
	}
	list, _ := s.List(ctx, "", domain.ListOpts{Limit: 2})
	if len(list) != 2 || list[0].Symbol != "ETHUSDT" {
		t.Fatalf("List = %+v", list)
	}
	old, _ := s.ListBefore(ctx, base.Add(90*time.Minute))
	if len(old) != 2 {
		t.Fatalf("ListBefore = %d records, want 2", len(old))
	}
}

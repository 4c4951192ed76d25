package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/rsibot/internal/domain"
)

func TestRecover(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	profit := func(s string) *decimal.Decimal { d := mustDec(s); return &d }
	capital := decimal.NewFromInt(10000)

	tests := []struct {
		name      string
		records   []domain.TradeRecord
		status    domain.PositionStatus
		entry     string
		size      string
		quote     string
		base      string
		lastActed domain.Signal
	}{
		{
			name:   "empty log",
			status: domain.StatusNeutral,
			size:   "0",
			quote:  "10000",
			base:   "0",
		},
		{
			name: "unmatched buy",
			records: []domain.TradeRecord{
				{ID: 1, Side: domain.SideBuy, Price: mustDec("50000"), Amount: mustDec("0.1"), Timestamp: t0},
			},
			status:    domain.StatusInPosition,
			entry:     "50000",
			size:      "0.1",
			quote:     "5000",
			base:      "0.1",
			lastActed: domain.SignalBuy,
		},
		{
			name: "closed round trip",
			records: []domain.TradeRecord{
				{ID: 1, Side: domain.SideBuy, Price: mustDec("50000"), Amount: mustDec("0.1"), Timestamp: t0},
				{ID: 2, Side: domain.SideSell, Price: mustDec("52000"), Amount: mustDec("0.1"), Profit: profit("200"), Timestamp: t0.Add(time.Hour)},
			},
			status:    domain.StatusNeutral,
			size:      "0",
			quote:     "10200",
			base:      "0",
			lastActed: domain.SignalSell,
		},
		{
			name: "reopened after loss",
			records: []domain.TradeRecord{
				{ID: 1, Side: domain.SideBuy, Price: mustDec("50000"), Amount: mustDec("0.1"), Timestamp: t0},
				{ID: 2, Side: domain.SideSell, Price: mustDec("45000"), Amount: mustDec("0.1"), Profit: profit("-500"), Timestamp: t0.Add(time.Hour)},
				{ID: 3, Side: domain.SideBuy, Price: mustDec("40000"), Amount: mustDec("0.05"), Timestamp: t0.Add(2 * time.Hour)},
			},
			status:    domain.StatusInPosition,
			entry:     "40000",
			size:      "0.05",
			quote:     "7500",
			base:      "0.05",
			lastActed: domain.SignalBuy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Recover("BTC/USDT", tt.records, capital)
			if err != nil {
				t.Fatalf("Recover: %v", err)
			}
			if got.Position.Status != tt.status {
				t.Errorf("status = %s, want %s", got.Position.Status, tt.status)
			}
			if tt.entry != "" && !got.Position.EntryPrice.Equal(mustDec(tt.entry)) {
				t.Errorf("entry = %s, want %s", got.Position.EntryPrice, tt.entry)
			}
			if !got.Position.Size.Equal(mustDec(tt.size)) {
				t.Errorf("size = %s, want %s", got.Position.Size, tt.size)
			}
			if !got.Wallet.Quote.Equal(mustDec(tt.quote)) {
				t.Errorf("quote = %s, want %s", got.Wallet.Quote, tt.quote)
			}
			if !got.Wallet.Base.Equal(mustDec(tt.base)) {
				t.Errorf("base = %s, want %s", got.Wallet.Base, tt.base)
			}
			if got.LastActed != tt.lastActed {
				t.Errorf("last acted = %q, want %q", got.LastActed, tt.lastActed)
			}

			again, err := Recover("BTC/USDT", tt.records, capital)
			if err != nil {
				t.Fatalf("second Recover: %v", err)
			}
			if !samePosition(again.Position, got.Position) || !again.Wallet.Equal(got.Wallet) || again.LastActed != got.LastActed {
				t.Errorf("recovery not idempotent: %+v vs %+v", again, got)
			}
		})
	}
}

func TestRecoverRejectsCorruptLog(t *testing.T) {
	tests := []struct {
		name    string
		records []domain.TradeRecord
		want    string
	}{
		{
			name:    "zero amount lot",
			records: []domain.TradeRecord{{ID: 7, Side: domain.SideBuy, Price: mustDec("50000"), Amount: decimal.Zero}},
			want:    "open lot 7",
		},
		{
			name:    "lot larger than capital",
			records: []domain.TradeRecord{{ID: 1, Side: domain.SideBuy, Price: mustDec("50000"), Amount: mustDec("1")}},
			want:    "negative quote",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Recover("BTC/USDT", tt.records, decimal.NewFromInt(10000))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

package risk

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/rsibot/internal/domain"
)

func openAt(entry string) domain.Position {
	return domain.Position{
		Symbol:     "BTCUSDT",
		Status:     domain.StatusInPosition,
		EntryPrice: decimal.RequireFromString(entry),
		Size:       decimal.RequireFromString("0.2"),
	}
}

func TestCheck(t *testing.T) {
	params := domain.StrategyParams{StopLoss: 0.10, TakeProfit: 0.04}
	tests := []struct {
		name   string
		pos    domain.Position
		price  string
		want   bool
		reason domain.TradeReason
		label  string
	}{
		{"stop loss", openAt("50000"), "44000", true, domain.ReasonStopLoss, "Stop Loss"},
		{"stop loss at boundary", openAt("50000"), "45000", true, domain.ReasonStopLoss, "Stop Loss"},
		{"just above stop", openAt("50000"), "45000.01", false, "", ""},
		{"take profit at boundary", openAt("50000"), "52000", true, domain.ReasonTakeProfit, "Take Profit"},
		{"take profit", openAt("50000"), "60000", true, domain.ReasonTakeProfit, "Take Profit"},
		{"inside band", openAt("50000"), "51999.99", false, "", ""},
		{"neutral never triggers", domain.NeutralPosition("BTCUSDT"), "1", false, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exit := Check(tt.pos, decimal.RequireFromString(tt.price), params)
			if exit.Triggered != tt.want {
				t.Fatalf("triggered = %v, want %v (change %s)", exit.Triggered, tt.want, exit.Change)
			}
			if exit.Reason != tt.reason {
				t.Fatalf("reason = %q, want %q", exit.Reason, tt.reason)
			}
			if exit.Label() != tt.label {
				t.Fatalf("label = %q, want %q", exit.Label(), tt.label)
			}
		})
	}
}

func TestCheckChange(t *testing.T) {
	exit := Check(openAt("50000"), decimal.RequireFromString("51000"), domain.StrategyParams{StopLoss: 0.02, TakeProfit: 0.04})
	if !exit.Change.Equal(decimal.RequireFromString("0.02")) {
		t.Fatalf("change = %s, want 0.02", exit.Change)
	}
}

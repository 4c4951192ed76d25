// Package strategy maps indicator readings to BUY/SELL/HOLD signals.
package strategy

import (
	"errors"
	"fmt"
	"math"

	"github.com/alanyoungcy/rsibot/internal/domain"
)

// Strategy reduces a candle window to the single indicator value that the
// signal thresholds are compared against.
type Strategy interface {
	Name() string
	// Warmup is the minimum number of candles Evaluate needs.
	Warmup() int
	// Bounds is the range thresholds must lie in.
	Bounds() (lo, hi float64)
	// Defaults are the thresholds used when nothing is configured.
	Defaults() domain.StrategyParams
	Evaluate(candles []domain.Candle) (float64, error)
}

// Decide applies the mean-reversion rule: below buy is BUY, above sell is
// SELL, anything else (including NaN) is HOLD.
func Decide(value float64, p domain.StrategyParams) domain.Signal {
	switch {
	case math.IsNaN(value) || math.IsInf(value, 0):
		return domain.SignalHold
	case value < p.BuyThreshold:
		return domain.SignalBuy
	case value > p.SellThreshold:
		return domain.SignalSell
	default:
		return domain.SignalHold
	}
}

// ValidateParams checks p against s. Every problem is reported and wrapped
// with domain.ErrInvalidParams.
func ValidateParams(s Strategy, p domain.StrategyParams) error {
	lo, hi := s.Bounds()
	var errs []error
	if p.BuyThreshold < lo || p.BuyThreshold > hi {
		errs = append(errs, fmt.Errorf("buy_threshold %v outside [%v, %v]", p.BuyThreshold, lo, hi))
	}
	if p.SellThreshold < lo || p.SellThreshold > hi {
		errs = append(errs, fmt.Errorf("sell_threshold %v outside [%v, %v]", p.SellThreshold, lo, hi))
	}
	if p.BuyThreshold >= p.SellThreshold {
		errs = append(errs, fmt.Errorf("buy_threshold %v must be below sell_threshold %v", p.BuyThreshold, p.SellThreshold))
	}
	if !(p.StopLoss > 0 && p.StopLoss < 1) {
		errs = append(errs, fmt.Errorf("stop_loss %v must be in (0, 1)", p.StopLoss))
	}
	if !(p.TakeProfit > 0) {
		errs = append(errs, fmt.Errorf("take_profit %v must be > 0", p.TakeProfit))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrInvalidParams, errors.Join(errs...))
}

func needCandles(name string, candles []domain.Candle, n int) error {
	if len(candles) < n {
		return fmt.Errorf("%s: %w: have %d candles, need %d", name, domain.ErrNoData, len(candles), n)
	}
	return nil
}

package strategy

import (
	"fmt"

	"github.com/alanyoungcy/rsibot/internal/domain"
	"github.com/alanyoungcy/rsibot/internal/indicator"
)

// KAMAReversionName is the registry name of the adaptive-average strategy.
const KAMAReversionName = "kama_reversion"

// KAMAReversion measures how far the close sits from its adaptive moving
// average, in percent. Thresholds are percentages: a close 2% under the
// average reads -2.
type KAMAReversion struct {
	erPeriod, fast, slow int
}

// NewKAMAReversion creates the strategy with the classic 10/2/30 settings.
func NewKAMAReversion() *KAMAReversion {
	return &KAMAReversion{erPeriod: 10, fast: 2, slow: 30}
}

func (s *KAMAReversion) Name() string { return KAMAReversionName }
func (s *KAMAReversion) Warmup() int { return s.erPeriod + 1 }
func (s *KAMAReversion) Bounds() (float64, float64) { return -100, 100 }

func (s *KAMAReversion) Defaults() domain.StrategyParams {
	return domain.StrategyParams{BuyThreshold: -2, SellThreshold: 2, StopLoss: 0.02, TakeProfit: 0.04}
}

// Evaluate returns 100 × (close - KAMA) / KAMA for the newest candle.
func (s *KAMAReversion) Evaluate(candles []domain.Candle) (float64, error) {
	if err := needCandles(s.Name(), candles, s.Warmup()); err != nil {
		return 0, err
	}
	closes := domain.Closes(candles)
	k, err := indicator.Last(indicator.KAMA(closes, s.erPeriod, s.fast, s.slow))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", s.Name(), err)
	}
	if k == 0 {
		return 0, fmt.Errorf("%s: %w", s.Name(), indicator.ErrUndefined)
	}
	return 100 * (closes[len(closes)-1] - k) / k, nil
}

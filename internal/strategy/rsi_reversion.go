package strategy

import (
	"fmt"

	"github.com/alanyoungcy/rsibot/internal/domain"
	"github.com/alanyoungcy/rsibot/internal/indicator"
)

// RSIReversionName is the registry name of the RSI strategy.
const RSIReversionName = "rsi_reversion"

// RSIReversion buys oversold and sells overbought RSI readings.
type RSIReversion struct {
	period int
}

// NewRSIReversion creates the strategy with the given RSI period (14 when
// period <= 0).
func NewRSIReversion(period int) *RSIReversion {
	if period <= 0 {
		period = 14
	}
	return &RSIReversion{period: period}
}

func (s *RSIReversion) Name() string { return RSIReversionName }
func (s *RSIReversion) Warmup() int { return s.period + 1 }
func (s *RSIReversion) Bounds() (float64, float64) { return 0, 100 }

func (s *RSIReversion) Defaults() domain.StrategyParams {
	return domain.StrategyParams{BuyThreshold: 25, SellThreshold: 65, StopLoss: 0.02, TakeProfit: 0.04}
}

// Evaluate returns the latest RSI of the candle closes.
func (s *RSIReversion) Evaluate(candles []domain.Candle) (float64, error) {
	if err := needCandles(s.Name(), candles, s.Warmup()); err != nil {
		return 0, err
	}
	v, err := indicator.Last(indicator.RSI(domain.Closes(candles), s.period))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", s.Name(), err)
	}
	return v, nil
}

package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceFeed supplies candles and last prices for a symbol.
type PriceFeed interface {
	Candles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
	Ticker(ctx context.Context, symbol string) (decimal.Decimal, error)
}

package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/rsibot/internal/domain"
)

// WalletCache implements domain.WalletCache using Redis hashes. Each
// symbol's wallet is stored at "wallet:{symbol}" with fields "quote",
// "base" and "ts" (Unix nanoseconds).
type WalletCache struct {
	rdb *redis.Client
}

// NewWalletCache creates a WalletCache backed by the given Client.
func NewWalletCache(c *Client) *WalletCache {
	return &WalletCache{rdb: c.Underlying()}
}

func walletKey(symbol string) string {
	return "wallet:" + symbol
}

// SetWallet stores the wallet snapshot for symbol.
func (wc *WalletCache) SetWallet(ctx context.Context, symbol string, w domain.Wallet) error {
	fields := map[string]any{
		"quote": w.Quote.String(),
		"base":  w.Base.String(),
		"ts":    strconv.FormatInt(time.Now().UnixNano(), 10),
	}
	if err := wc.rdb.HSet(ctx, walletKey(symbol), fields).Err(); err != nil {
		return fmt.Errorf("redis: set wallet %s: %w", symbol, err)
	}
	return nil
}

// GetWallet returns the cached wallet for symbol, or domain.ErrNotFound.
func (wc *WalletCache) GetWallet(ctx context.Context, symbol string) (domain.Wallet, error) {
	vals, err := wc.rdb.HGetAll(ctx, walletKey(symbol)).Result()
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("redis: get wallet %s: %w", symbol, err)
	}
	quoteStr, okQ := vals["quote"]
	baseStr, okB := vals["base"]
	if !okQ || !okB {
		return domain.Wallet{}, domain.ErrNotFound
	}

	quote, err := decimal.NewFromString(quoteStr)
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("redis: parse wallet quote %s: %w", symbol, err)
	}
	base, err := decimal.NewFromString(baseStr)
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("redis: parse wallet base %s: %w", symbol, err)
	}
	return domain.Wallet{Quote: quote, Base: base}, nil
}

// Compile-time interface check.
var _ domain.WalletCache = (*WalletCache)(nil)

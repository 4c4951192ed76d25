package domain

import (
	"context"
	"time"
)

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Lease is a held distributed lock.
type Lease interface {
	// Refresh extends the lease TTL. It returns ErrLockHeld when the lease
	// has been lost to another holder.
	Refresh(ctx context.Context, ttl time.Duration) error
	Release()
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams for engine events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRevRange(ctx context.Context, stream string, count int) ([]StreamMessage, error)
}

// WalletCache keeps the last committed wallet snapshot outside the process.
type WalletCache interface {
	SetWallet(ctx context.Context, symbol string, w Wallet) error
	GetWallet(ctx context.Context, symbol string) (Wallet, error)
}

// Bus channels and streams used for engine events.
const (
	ChannelTrade  = "ch:trade"
	ChannelStatus = "ch:status"
	StreamTrades  = "stream:trades"
)

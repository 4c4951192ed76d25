package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// TradeStore is the append-only trade log. Append must be durable before it
// returns nil.
type TradeStore interface {
	Append(ctx context.Context, rec TradeRecord) (TradeRecord, error)
	// Latest returns the most recent record for symbol, or ErrNotFound.
	Latest(ctx context.Context, symbol string) (TradeRecord, error)
	// History returns every record for symbol in insertion order.
	History(ctx context.Context, symbol string) ([]TradeRecord, error)
	AggregatePnL(ctx context.Context) (PnLStats, error)
	List(ctx context.Context, symbol string, opts ListOpts) ([]TradeRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]TradeRecord, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log of operator actions.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// StrategyConfig is the persisted parameter snapshot for one strategy.
type StrategyConfig struct {
	Name      string         `json:"name"`
	Params    StrategyParams `json:"params"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// StrategyConfigStore persists operator parameter changes across restarts.
type StrategyConfigStore interface {
	Get(ctx context.Context, name string) (StrategyConfig, error)
	Upsert(ctx context.Context, cfg StrategyConfig) error
}

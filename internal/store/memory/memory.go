// Package memory implements the domain stores in process memory. It backs
// the dry run mode and tests; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/rsibot/internal/domain"
)

// TradeStore implements domain.TradeStore.
type TradeStore struct {
	mu      sync.RWMutex
	records []domain.TradeRecord
	byID    map[string]int
	nextID  int64
}

// NewTradeStore returns an empty trade log.
func NewTradeStore() *TradeStore {
	return &TradeStore{byID: make(map[string]int), nextID: 1}
}

// Append stores rec. A record whose ClientID is already present is not
// stored twice; the existing row is returned.
func (s *TradeStore) Append(ctx context.Context, rec domain.TradeRecord) (domain.TradeRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.TradeRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ClientID != "" {
		if i, ok := s.byID[rec.ClientID]; ok {
			return s.records[i], nil
		}
	}
	rec.ID = s.nextID
	s.nextID++
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	s.records = append(s.records, rec)
	if rec.ClientID != "" {
		s.byID[rec.ClientID] = len(s.records) - 1
	}
	return rec, nil
}

// Latest returns the newest record for symbol.
func (s *TradeStore) Latest(_ context.Context, symbol string) (domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].Symbol == symbol {
			return s.records[i], nil
		}
	}
	return domain.TradeRecord{}, domain.ErrNotFound
}

// History returns all records for symbol oldest first.
func (s *TradeStore) History(_ context.Context, symbol string) ([]domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.TradeRecord
	for _, r := range s.records {
		if r.Symbol == symbol {
			out = append(out, r)
		}
	}
	return out, nil
}

// AggregatePnL sums realized profit over every closed record.
func (s *TradeStore) AggregatePnL(ctx context.Context) (domain.PnLStats, error) {
	if err := ctx.Err(); err != nil {
		return domain.PnLStats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := domain.PnLStats{TotalProfit: decimal.Zero}
	for _, r := range s.records {
		if r.Profit == nil {
			continue
		}
		stats.TotalProfit = stats.TotalProfit.Add(*r.Profit)
		stats.Closed++
		if r.Profit.IsPositive() {
			stats.Wins++
		} else {
			stats.Losses++
		}
	}
	return stats, nil
}

// List returns records for symbol newest first. An empty symbol matches all.
func (s *TradeStore) List(_ context.Context, symbol string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.TradeRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		r := s.records[i]
		if symbol != "" && r.Symbol != symbol {
			continue
		}
		if opts.Since != nil && r.Timestamp.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && r.Timestamp.After(*opts.Until) {
			continue
		}
		out = append(out, r)
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// ListBefore returns records strictly older than before, oldest first.
func (s *TradeStore) ListBefore(_ context.Context, before time.Time) ([]domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.TradeRecord
	for _, r := range s.records {
		if r.Timestamp.Before(before) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Len returns the number of stored records.
func (s *TradeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// AuditStore implements domain.AuditStore.
type AuditStore struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

// NewAuditStore returns an empty audit log.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

// Log appends an entry.
func (s *AuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, domain.AuditEntry{
		ID:        int64(len(s.entries) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// List returns entries newest first.
func (s *AuditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AuditEntry, len(s.entries))
	copy(out, s.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// StrategyConfigStore implements domain.StrategyConfigStore.
type StrategyConfigStore struct {
	mu      sync.RWMutex
	configs map[string]domain.StrategyConfig
}

// NewStrategyConfigStore returns an empty parameter store.
func NewStrategyConfigStore() *StrategyConfigStore {
	return &StrategyConfigStore{configs: make(map[string]domain.StrategyConfig)}
}

// Get returns the config for name, or domain.ErrNotFound.
func (s *StrategyConfigStore) Get(_ context.Context, name string) (domain.StrategyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[name]
	if !ok {
		return domain.StrategyConfig{}, domain.ErrNotFound
	}
	return cfg, nil
}

// Upsert replaces the config stored under cfg.Name.
func (s *StrategyConfigStore) Upsert(_ context.Context, cfg domain.StrategyConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.UpdatedAt = time.Now().UTC()
	s.configs[cfg.Name] = cfg
	return nil
}

var (
	_ domain.TradeStore          = (*TradeStore)(nil)
	_ domain.AuditStore          = (*AuditStore)(nil)
	_ domain.StrategyConfigStore = (*StrategyConfigStore)(nil)
)

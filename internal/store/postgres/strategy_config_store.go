package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/rsibot/internal/domain"
)

// StrategyConfigStore persists the live strategy parameters so operator
// changes survive a restart.
type StrategyConfigStore struct {
	pool *pgxpool.Pool
}

// NewStrategyConfigStore creates a new StrategyConfigStore backed by the given connection pool.
func NewStrategyConfigStore(pool *pgxpool.Pool) *StrategyConfigStore {
	return &StrategyConfigStore{pool: pool}
}

// Get retrieves the parameters saved for the named strategy.
func (s *StrategyConfigStore) Get(ctx context.Context, name string) (domain.StrategyConfig, error) {
	var (
		cfg        domain.StrategyConfig
		paramsJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT name, params, updated_at FROM strategy_configs WHERE name = $1`, name,
	).Scan(&cfg.Name, &paramsJSON, &cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StrategyConfig{}, domain.ErrNotFound
		}
		return domain.StrategyConfig{}, fmt.Errorf("postgres: get strategy config %s: %w", name, err)
	}

	if err := json.Unmarshal(paramsJSON, &cfg.Params); err != nil {
		return domain.StrategyConfig{}, fmt.Errorf("postgres: unmarshal strategy params %s: %w", name, err)
	}
	return cfg, nil
}

// Upsert inserts or replaces the parameters for cfg.Name.
func (s *StrategyConfigStore) Upsert(ctx context.Context, cfg domain.StrategyConfig) error {
	paramsJSON, err := json.Marshal(cfg.Params)
	if err != nil {
		return fmt.Errorf("postgres: marshal strategy params %s: %w", cfg.Name, err)
	}

	const query = `
		INSERT INTO strategy_configs (name, params, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET
			params     = EXCLUDED.params,
			updated_at = NOW()`

	if _, err := s.pool.Exec(ctx, query, cfg.Name, paramsJSON); err != nil {
		return fmt.Errorf("postgres: upsert strategy config %s: %w", cfg.Name, err)
	}
	return nil
}

var _ domain.StrategyConfigStore = (*StrategyConfigStore)(nil)

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/rsibot/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, client_id::text, symbol, side, price, amount,
	strategy, reason, profit, created_at`

func scanTrade(row pgx.Row) (domain.TradeRecord, error) {
	var (
		t      domain.TradeRecord
		side   string
		reason string
		profit decimal.NullDecimal
	)
	if err := row.Scan(
		&t.ID, &t.ClientID, &t.Symbol, &side, &t.Price, &t.Amount,
		&t.Strategy, &reason, &profit, &t.Timestamp,
	); err != nil {
		return domain.TradeRecord{}, err
	}
	t.Side = domain.Side(side)
	t.Reason = domain.TradeReason(reason)
	if profit.Valid {
		p := profit.Decimal
		t.Profit = &p
	}
	return t, nil
}

func scanTradeRows(rows pgx.Rows) ([]domain.TradeRecord, error) {
	var trades []domain.TradeRecord
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Append inserts rec and returns the stored row. The insert is keyed on
// client_id, so retrying the same record returns the existing row instead
// of writing a second one.
func (s *TradeStore) Append(ctx context.Context, rec domain.TradeRecord) (domain.TradeRecord, error) {
	if rec.ClientID == "" {
		return domain.TradeRecord{}, errors.New("postgres: append trade: client id is required")
	}
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	var profit decimal.NullDecimal
	if rec.Profit != nil {
		profit = decimal.NewNullDecimal(*rec.Profit)
	}

	const query = `
		INSERT INTO trades (
			client_id, symbol, side, price, amount,
			strategy, reason, profit, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (client_id) DO NOTHING
		RETURNING ` + tradeSelectCols

	saved, err := scanTrade(s.pool.QueryRow(ctx, query,
		rec.ClientID, rec.Symbol, string(rec.Side), rec.Price, rec.Amount,
		rec.Strategy, string(rec.Reason), profit, ts,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		saved, err = scanTrade(s.pool.QueryRow(ctx,
			`SELECT `+tradeSelectCols+` FROM trades WHERE client_id = $1`, rec.ClientID))
	}
	if err != nil {
		return domain.TradeRecord{}, fmt.Errorf("postgres: append trade: %w", err)
	}
	return saved, nil
}

// Latest returns the newest record for symbol.
func (s *TradeStore) Latest(ctx context.Context, symbol string) (domain.TradeRecord, error) {
	t, err := scanTrade(s.pool.QueryRow(ctx,
		`SELECT `+tradeSelectCols+` FROM trades WHERE symbol = $1 ORDER BY id DESC LIMIT 1`, symbol))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TradeRecord{}, domain.ErrNotFound
		}
		return domain.TradeRecord{}, fmt.Errorf("postgres: latest trade %s: %w", symbol, err)
	}
	return t, nil
}

// History returns every record for symbol in insertion order.
func (s *TradeStore) History(ctx context.Context, symbol string) ([]domain.TradeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trades WHERE symbol = $1 ORDER BY id ASC`, symbol)
	if err != nil {
		return nil, fmt.Errorf("postgres: trade history %s: %w", symbol, err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trade history: %w", err)
	}
	return trades, nil
}

// AggregatePnL sums realized profit over every closed trade. The sum is
// independent of row order.
func (s *TradeStore) AggregatePnL(ctx context.Context) (domain.PnLStats, error) {
	const query = `
		SELECT
			COALESCE(SUM(profit), 0),
			COUNT(*) FILTER (WHERE profit > 0),
			COUNT(*) FILTER (WHERE profit <= 0),
			COUNT(*)
		FROM trades
		WHERE profit IS NOT NULL`

	var st domain.PnLStats
	if err := s.pool.QueryRow(ctx, query).Scan(&st.TotalProfit, &st.Wins, &st.Losses, &st.Closed); err != nil {
		return domain.PnLStats{}, fmt.Errorf("postgres: aggregate pnl: %w", err)
	}
	return st, nil
}

// List returns records newest first with pagination and optional time
// filtering. An empty symbol matches every symbol.
func (s *TradeStore) List(ctx context.Context, symbol string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE 1=1`
	args := []any{}
	argIdx := 1

	if symbol != "" {
		query += fmt.Sprintf(" AND symbol = $%d", argIdx)
		args = append(args, symbol)
		argIdx++
	}
	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY id DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return trades, nil
}

// ListBefore returns every record created before the cutoff, oldest first.
// It feeds the archiver.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.TradeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trades WHERE created_at < $1 ORDER BY id ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades before: %w", err)
	}
	return trades, nil
}

var _ domain.TradeStore = (*TradeStore)(nil)

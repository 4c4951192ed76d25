// Package sizing picks the base-asset quantity for a new position from the
// wallet balance and the realized win rate.
package sizing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/rsibot/internal/domain"
)

// Tier is a risk bracket selected by historical win rate.
type Tier struct {
	Level int             `json:"level"`
	Name  string          `json:"name"`
	Risk  decimal.Decimal `json:"risk"`
}

// Label renders the tier for operators, e.g. "Tier 1 (Hot Hand)".
func (t Tier) Label() string {
	return fmt.Sprintf("Tier %d (%s)", t.Level, t.Name)
}

var (
	TierHotHand    = Tier{Level: 1, Name: "Hot Hand", Risk: decimal.RequireFromString("0.02")}
	TierNormal     = Tier{Level: 2, Name: "Normal", Risk: decimal.RequireFromString("0.01")}
	TierColdStreak = Tier{Level: 3, Name: "Cold Streak", Risk: decimal.RequireFromString("0.005")}
)

// defaultWinRate is assumed before any trade has closed.
const defaultWinRate = 0.5

// TierFor returns the tier for a win rate in [0,1].
func TierFor(winRate float64) Tier {
	switch {
	case winRate >= 0.60:
		return TierHotHand
	case winRate >= 0.50:
		return TierNormal
	default:
		return TierColdStreak
	}
}

// WinRate returns wins/(wins+losses), or 0.5 when nothing has closed.
func WinRate(wins, losses int64) float64 {
	if wins+losses <= 0 {
		return defaultWinRate
	}
	return float64(wins) / float64(wins+losses)
}

// StatsSource provides realized win/loss counts.
type StatsSource interface {
	AggregatePnL(ctx context.Context) (domain.PnLStats, error)
}

// Config holds exchange limits for sizing.
type Config struct {
	// MinNotional is the exchange-imposed smallest order value in quote units.
	MinNotional decimal.Decimal
	// MaxFraction caps the notional at this fraction of the balance.
	MaxFraction decimal.Decimal
	// LotStep is the smallest tradable base-asset increment.
	LotStep decimal.Decimal
	// StatsTimeout bounds the win/loss query.
	StatsTimeout time.Duration
}

// Result is a sizing decision.
type Result struct {
	Amount   decimal.Decimal `json:"amount"`
	Notional decimal.Decimal `json:"notional"`
	Tier     Tier            `json:"tier"`
	WinRate  float64         `json:"win_rate"`
	Fallback bool            `json:"fallback"`
}

// TierLabel returns the human-readable tier name.
func (r Result) TierLabel() string { return r.Tier.Label() }

// Sizer computes position sizes. It never fails: any error falls back to the
// minimum notional at Tier 2.
type Sizer struct {
	cfg    Config
	stats  StatsSource
	logger *slog.Logger
}

// New creates a Sizer. stats may be nil, in which case the default win rate
// is always used.
func New(cfg Config, stats StatsSource, logger *slog.Logger) *Sizer {
	if cfg.MaxFraction.IsZero() {
		cfg.MaxFraction = decimal.RequireFromString("0.05")
	}
	if cfg.StatsTimeout <= 0 {
		cfg.StatsTimeout = 2 * time.Second
	}
	return &Sizer{
		cfg:    cfg,
		stats:  stats,
		logger: logger.With(slog.String("component", "sizing")),
	}
}

// Size returns the quantity to buy with balance at price.
func (s *Sizer) Size(ctx context.Context, balance, price decimal.Decimal) Result {
	res, err := s.size(ctx, balance, price)
	if err != nil {
		s.logger.WarnContext(ctx, "sizing failed, using minimum notional",
			slog.String("error", err.Error()),
		)
		return s.fallback(price)
	}
	return res
}

func (s *Sizer) size(ctx context.Context, balance, price decimal.Decimal) (Result, error) {
	if !price.IsPositive() {
		return Result{}, fmt.Errorf("sizing: non-positive price %s", price)
	}
	if balance.IsNegative() {
		return Result{}, fmt.Errorf("sizing: negative balance %s", balance)
	}

	winRate := defaultWinRate
	if s.stats != nil {
		qctx, cancel := context.WithTimeout(ctx, s.cfg.StatsTimeout)
		stats, err := s.stats.AggregatePnL(qctx)
		cancel()
		if err != nil {
			return Result{}, fmt.Errorf("sizing: aggregate pnl: %w", err)
		}
		winRate = WinRate(stats.Wins, stats.Losses)
	}

	tier := TierFor(winRate)
	notional := balance.Mul(tier.Risk)
	if ceiling := balance.Mul(s.cfg.MaxFraction); notional.GreaterThan(ceiling) {
		notional = ceiling
	}
	if notional.LessThan(s.cfg.MinNotional) {
		notional = s.cfg.MinNotional
	}

	amount := s.roundLot(notional.Div(price))
	if !amount.IsPositive() {
		return Result{}, errors.Join(domain.ErrSizeTooSmall, fmt.Errorf("sizing: notional %s at price %s", notional, price))
	}

	return Result{
		Amount:   amount,
		Notional: amount.Mul(price),
		Tier:     tier,
		WinRate:  winRate,
	}, nil
}

func (s *Sizer) fallback(price decimal.Decimal) Result {
	res := Result{Tier: TierNormal, WinRate: defaultWinRate, Fallback: true}
	if price.IsPositive() {
		res.Amount = s.roundLot(s.cfg.MinNotional.Div(price))
		res.Notional = res.Amount.Mul(price)
	}
	return res
}

// roundLot floors q to a whole number of lot steps.
func (s *Sizer) roundLot(q decimal.Decimal) decimal.Decimal {
	if !s.cfg.LotStep.IsPositive() {
		return q
	}
	return q.Div(s.cfg.LotStep).Floor().Mul(s.cfg.LotStep)
}

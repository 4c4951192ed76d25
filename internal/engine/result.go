package engine

import (
	"github.com/alanyoungcy/rsibot/internal/domain"
)

// Outcome classifies what one decision step did.
type Outcome string

const (
	// OutcomeTraded means a trade was persisted and applied.
	OutcomeTraded Outcome = "traded"
	// OutcomeHeld means the signal was HOLD.
	OutcomeHeld Outcome = "held"
	// OutcomeSkipped means a non-HOLD signal needed no action: paused,
	// repeated, or not applicable to the current position.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeRejected means a guard or the trade log refused the trade.
	// Position and wallet are unchanged.
	OutcomeRejected Outcome = "rejected"
	// OutcomeDegraded means data was unavailable and the step acted as HOLD.
	OutcomeDegraded Outcome = "degraded"
)

// Result is returned by every decision step.
type Result struct {
	Outcome Outcome             `json:"outcome"`
	Signal  domain.Signal       `json:"signal,omitempty"`
	Reason  domain.TradeReason  `json:"reason,omitempty"`
	Trade   *domain.TradeRecord `json:"trade,omitempty"`
	Tier    string              `json:"tier,omitempty"`
	Detail  string              `json:"detail,omitempty"`
	Err     error               `json:"-"`
}

// Error returns the error message, if any.
func (r Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

func degraded(err error) Result {
	return Result{Outcome: OutcomeDegraded, Signal: domain.SignalHold, Err: err}
}

package engine

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/rsibot/internal/domain"
)

// Observation is what the loop saw on its latest iteration.
type Observation struct {
	Price     decimal.Decimal `json:"price"`
	Indicator *float64        `json:"indicator"`
	Signal    domain.Signal   `json:"signal"`
	Outcome   Outcome         `json:"outcome"`
	Error     string          `json:"error,omitempty"`
	At        time.Time       `json:"at"`
}

// State is the engine's shared mutable state. Every field is guarded by mu;
// the loop and the control surface both go through it.
type State struct {
	mu         sync.Mutex
	position   domain.Position
	wallet     domain.Wallet
	params     domain.StrategyParams
	paused     bool
	lastActed  domain.Signal
	obs        Observation
	iterations int64
}

// NewState seeds the shared state from a recovery result.
func NewState(rec Recovered, params domain.StrategyParams, paused bool) *State {
	return &State{
		position:  rec.Position,
		wallet:    rec.Wallet,
		params:    params,
		paused:    paused,
		lastActed: rec.LastActed,
	}
}

// Snapshot is a consistent copy of State.
type Snapshot struct {
	Position   domain.Position       `json:"position"`
	Wallet     domain.Wallet         `json:"wallet"`
	Params     domain.StrategyParams `json:"params"`
	Paused     bool                  `json:"paused"`
	LastActed  domain.Signal         `json:"last_acted,omitempty"`
	Last       Observation           `json:"last"`
	Iterations int64                 `json:"iterations"`
}

// Snapshot copies the state under the lock.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Position:   s.position,
		Wallet:     s.wallet,
		Params:     s.params,
		Paused:     s.paused,
		LastActed:  s.lastActed,
		Last:       s.obs,
		Iterations: s.iterations,
	}
}

// Params returns the current parameter snapshot.
func (s *State) Params() domain.StrategyParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Paused reports the run-control flag.
func (s *State) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// SetPaused sets the run-control flag and returns the previous value.
func (s *State) SetPaused(paused bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.paused
	s.paused = paused
	return prev
}

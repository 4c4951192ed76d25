package domain

// Signal is the engine's decision for one iteration.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Side maps BUY and SELL signals to a trade side. HOLD has no side.
func (s Signal) Side() (Side, bool) {
	switch s {
	case SignalBuy:
		return SideBuy, true
	case SignalSell:
		return SideSell, true
	default:
		return "", false
	}
}

// SignalFor returns the signal that produces side.
func SignalFor(side Side) Signal {
	if side == SideBuy {
		return SignalBuy
	}
	return SignalSell
}

// StrategyParams are the live thresholds and exit fractions read by every
// loop iteration. StopLoss and TakeProfit are fractions (0.02 = 2%).
type StrategyParams struct {
	BuyThreshold  float64 `json:"buy_threshold"`
	SellThreshold float64 `json:"sell_threshold"`
	StopLoss      float64 `json:"stop_loss"`
	TakeProfit    float64 `json:"take_profit"`
}

// ParamsUpdate is a partial change to StrategyParams. Nil fields keep their
// current value.
type ParamsUpdate struct {
	BuyThreshold  *float64 `json:"buy_threshold,omitempty"`
	SellThreshold *float64 `json:"sell_threshold,omitempty"`
	StopLoss      *float64 `json:"stop_loss,omitempty"`
	TakeProfit    *float64 `json:"take_profit,omitempty"`
}

// Apply returns p with the non-nil fields of u applied.
func (u ParamsUpdate) Apply(p StrategyParams) StrategyParams {
	if u.BuyThreshold != nil {
		p.BuyThreshold = *u.BuyThreshold
	}
	if u.SellThreshold != nil {
		p.SellThreshold = *u.SellThreshold
	}
	if u.StopLoss != nil {
		p.StopLoss = *u.StopLoss
	}
	if u.TakeProfit != nil {
		p.TakeProfit = *u.TakeProfit
	}
	return p
}

// Empty reports whether the update changes nothing.
func (u ParamsUpdate) Empty() bool {
	return u.BuyThreshold == nil && u.SellThreshold == nil && u.StopLoss == nil && u.TakeProfit == nil
}

// Package indicator computes technical indicator series from close prices.
//
// Every function returns a slice the same length as its input. Entries
// without enough history are NaN; no function ever produces ±Inf.
package indicator

import (
	"errors"
	"math"
)

// ErrUndefined is returned by Last when the newest value is still in warmup.
var ErrUndefined = errors.New("indicator: value undefined")

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Last returns the final value of series, or ErrUndefined when it is NaN or
// the series is empty.
func Last(series []float64) (float64, error) {
	if len(series) == 0 {
		return 0, ErrUndefined
	}
	v := series[len(series)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrUndefined
	}
	return v, nil
}

// SMA is the simple moving average over window values. Warmup is window-1.
func SMA(values []float64, window int) []float64 {
	out := nanSeries(len(values))
	if window <= 0 || len(values) < window {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// EMA is the exponential moving average with alpha = 2/(period+1), seeded
// with the SMA of the first period values.
func EMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	alpha := 2.0 / float64(period+1)
	var seed float64
	for _, v := range values[:period] {
		seed += v
	}
	prev := seed / float64(period)
	out[period-1] = prev
	for i := period; i < len(values); i++ {
		prev = alpha*values[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

// RSI is the relative strength index using Wilder smoothing
// (alpha = 1/period) of gains and losses, seeded from the first price change.
// The first period entries are NaN. A window with no losses reads 100, and a
// perfectly flat window reads 50.
func RSI(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) <= period {
		return out
	}
	alpha := 1.0 / float64(period)
	var avgGain, avgLoss float64
	for i := 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		if i == 1 {
			avgGain, avgLoss = gain, loss
		} else {
			avgGain = alpha*gain + (1-alpha)*avgGain
			avgLoss = alpha*loss + (1-alpha)*avgLoss
		}
		if i < period {
			continue
		}
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	switch {
	case avgLoss == 0 && avgGain == 0:
		return 50
	case avgLoss == 0:
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// KAMA is Kaufman's adaptive moving average. The efficiency ratio over
// erPeriod changes scales the smoothing constant between the fast and slow
// EMA constants. A window with zero volatility has an efficiency ratio of 0.
// The first erPeriod-1 entries are NaN and the series is seeded with the
// close at erPeriod-1.
func KAMA(values []float64, erPeriod, fast, slow int) []float64 {
	out := nanSeries(len(values))
	if erPeriod <= 0 || fast <= 0 || slow <= 0 || len(values) < erPeriod {
		return out
	}
	fastSC := 2.0 / float64(fast+1)
	slowSC := 2.0 / float64(slow+1)

	prev := values[erPeriod-1]
	out[erPeriod-1] = prev
	for i := erPeriod; i < len(values); i++ {
		change := math.Abs(values[i] - values[i-erPeriod])
		var volatility float64
		for j := i - erPeriod + 1; j <= i; j++ {
			volatility += math.Abs(values[j] - values[j-1])
		}
		er := 0.0
		if volatility > 0 {
			er = change / volatility
		}
		sc := math.Pow(er*(fastSC-slowSC)+slowSC, 2)
		prev += sc * (values[i] - prev)
		out[i] = prev
	}
	return out
}

// MACDResult holds the three MACD series.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes the fast/slow EMA difference, its signal EMA and histogram.
func MACD(values []float64, fast, slow, signal int) MACDResult {
	n := len(values)
	res := MACDResult{MACD: nanSeries(n), Signal: nanSeries(n), Histogram: nanSeries(n)}
	if fast <= 0 || slow <= fast || signal <= 0 {
		return res
	}
	fastEMA := EMA(values, fast)
	slowEMA := EMA(values, slow)
	start := slow - 1
	if n <= start {
		return res
	}
	for i := start; i < n; i++ {
		res.MACD[i] = fastEMA[i] - slowEMA[i]
	}
	sig := EMA(res.MACD[start:], signal)
	for i, v := range sig {
		res.Signal[start+i] = v
		if !math.IsNaN(v) {
			res.Histogram[start+i] = res.MACD[start+i] - v
		}
	}
	return res
}

// BollingerResult holds the middle, upper and lower bands.
type BollingerResult struct {
	Middle []float64
	Upper  []float64
	Lower  []float64
}

// Bollinger computes SMA(window) ± k population standard deviations.
func Bollinger(values []float64, window int, k float64) BollingerResult {
	n := len(values)
	res := BollingerResult{Middle: SMA(values, window), Upper: nanSeries(n), Lower: nanSeries(n)}
	for i := range values {
		mid := res.Middle[i]
		if math.IsNaN(mid) {
			continue
		}
		var ss float64
		for _, v := range values[i-window+1 : i+1] {
			d := v - mid
			ss += d * d
		}
		sd := math.Sqrt(ss / float64(window))
		res.Upper[i] = mid + k*sd
		res.Lower[i] = mid - k*sd
	}
	return res
}

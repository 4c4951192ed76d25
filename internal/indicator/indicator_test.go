package indicator

import (
	"errors"
	"math"
	"testing"
)

const eps = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func assertSeries(t *testing.T, name string, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: len = %d, want %d", name, len(got), len(want))
	}
	for i := range want {
		if math.IsNaN(want[i]) {
			if !math.IsNaN(got[i]) {
				t.Errorf("%s[%d] = %v, want NaN", name, i, got[i])
			}
			continue
		}
		if !approx(got[i], want[i]) {
			t.Errorf("%s[%d] = %v, want %v", name, i, got[i], want[i])
		}
	}
}

func TestSMA(t *testing.T) {
	nan := math.NaN()
	assertSeries(t, "sma", SMA([]float64{1, 2, 3, 4, 5}, 3), []float64{nan, nan, 2, 3, 4})
	assertSeries(t, "short", SMA([]float64{1, 2}, 3), []float64{nan, nan})
}

func TestEMA(t *testing.T) {
	nan := math.NaN()
	assertSeries(t, "ema", EMA([]float64{1, 2, 3, 4, 5}, 3), []float64{nan, nan, 2, 3, 4})
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		period int
		want   float64
	}{
		{"only gains", []float64{1, 2, 3, 4, 5, 6}, 3, 100},
		{"only losses", []float64{6, 5, 4, 3, 2, 1}, 3, 0},
		{"flat", []float64{5, 5, 5, 5, 5}, 3, 50},
		{"balanced", []float64{1, 2, 1}, 2, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Last(RSI(tt.values, tt.period))
			if err != nil {
				t.Fatalf("Last: %v", err)
			}
			if !approx(got, tt.want) {
				t.Fatalf("rsi = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRSIWarmupAndBounds(t *testing.T) {
	values := []float64{44, 44.3, 44.1, 43.6, 44.3, 44.8, 45.1, 45.4, 45.8, 46.1, 45.9, 46.2, 45.6, 46.3, 46.3, 46, 46.4, 46.2}
	series := RSI(values, 14)
	for i := 0; i < 14; i++ {
		if !math.IsNaN(series[i]) {
			t.Fatalf("series[%d] = %v, want NaN during warmup", i, series[i])
		}
	}
	for i := 14; i < len(series); i++ {
		if math.IsNaN(series[i]) || series[i] < 0 || series[i] > 100 {
			t.Fatalf("series[%d] = %v, want value in [0,100]", i, series[i])
		}
	}
}

func TestKAMA(t *testing.T) {
	nan := math.NaN()
	assertSeries(t, "trend", KAMA([]float64{1, 2, 3}, 2, 2, 30), []float64{nan, 2, 2 + 4.0/9.0})
	assertSeries(t, "flat", KAMA([]float64{7, 7, 7, 7}, 2, 2, 30), []float64{nan, 7, 7, 7})
}

func TestMACDHasNoInfinities(t *testing.T) {
	values := make([]float64, 60)
	for i := range values {
		values[i] = 100 + math.Sin(float64(i)/3)*5
	}
	res := MACD(values, 12, 26, 9)
	if len(res.MACD) != len(values) || len(res.Signal) != len(values) || len(res.Histogram) != len(values) {
		t.Fatal("macd series length mismatch")
	}
	for i, v := range res.Histogram {
		if math.IsInf(v, 0) {
			t.Fatalf("histogram[%d] is infinite", i)
		}
	}
	if _, err := Last(res.Histogram); err != nil {
		t.Fatalf("Last histogram: %v", err)
	}
	if !math.IsNaN(res.MACD[24]) || math.IsNaN(res.MACD[25]) {
		t.Fatal("macd warmup should end at slow-1")
	}
}

func TestBollingerFlat(t *testing.T) {
	res := Bollinger([]float64{3, 3, 3, 3}, 2, 2)
	if !approx(res.Upper[3], 3) || !approx(res.Lower[3], 3) || !approx(res.Middle[3], 3) {
		t.Fatalf("flat bands = %v/%v/%v, want 3", res.Lower[3], res.Middle[3], res.Upper[3])
	}
	if !math.IsNaN(res.Upper[0]) {
		t.Fatal("upper[0] should be NaN")
	}
}

func TestLastUndefined(t *testing.T) {
	if _, err := Last(nil); !errors.Is(err, ErrUndefined) {
		t.Fatalf("Last(nil) err = %v", err)
	}
	if _, err := Last([]float64{1, math.NaN()}); !errors.Is(err, ErrUndefined) {
		t.Fatalf("Last(NaN) err = %v", err)
	}
}

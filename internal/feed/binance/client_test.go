package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alanyoungcy/rsibot/internal/domain"
)

func TestCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("symbol") != "BTCUSDT" || q.Get("interval") != "1h" || q.Get("limit") != "2" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		w.Write([]byte(`[
			[1700000000000,"50000.00","50500.00","49800.00","50100.50","12.5",1700003599999,"0",10,"0","0","0"],
			[1700003600000,"50100.50","50200.00","50000.00","50050.00","3.25",1700007199999,"0",4,"0","0","0"]
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	candles, err := c.Candles(context.Background(), "BTC/USDT", "1h", 2)
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("got %d candles", len(candles))
	}
	first := candles[0]
	if first.Close != 50100.5 || first.Volume != 12.5 || first.High != 50500 {
		t.Errorf("first = %+v", first)
	}
	if !first.OpenTime.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("open time = %v", first.OpenTime)
	}
	if got := domain.Closes(candles); got[1] != 50050 {
		t.Errorf("closes = %v", got)
	}
}

func TestCandlesMalformedRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[1700000000000,"abc","1","1","1","1",1700003599999]]`))
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).Candles(context.Background(), "BTCUSDT", "1h", 1); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/price" || r.URL.Query().Get("symbol") != "ETHUSDT" {
			t.Errorf("unexpected request %s", r.URL)
		}
		w.Write([]byte(`{"symbol":"ETHUSDT","price":"3021.45000000"}`))
	}))
	defer srv.Close()

	price, err := NewClient(srv.URL).Ticker(context.Background(), "eth/usdt")
	if err != nil {
		t.Fatalf("Ticker: %v", err)
	}
	if price.String() != "3021.45" {
		t.Fatalf("price = %s", price)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		rateLimited bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"banned", http.StatusTeapot, true},
		{"bad symbol", http.StatusBadRequest, false},
		{"server error", http.StatusBadGateway, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).Ticker(context.Background(), "BTCUSDT")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, domain.ErrRateLimited); got != tt.rateLimited {
				t.Fatalf("rate limited = %v, err = %v", got, err)
			}
		})
	}
}

type denyLimiter struct{ calls int }

func (d *denyLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	d.calls++
	return false, nil
}

func TestRateLimiterShortCircuits(t *testing.T) {
	hit := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	defer srv.Close()

	lim := &denyLimiter{}
	_, err := NewClient(srv.URL, WithRateLimiter(lim)).Candles(context.Background(), "BTCUSDT", "1m", 5)
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("err = %v", err)
	}
	if hit || lim.calls != 1 {
		t.Fatalf("hit = %v, limiter calls = %d", hit, lim.calls)
	}
}

func TestMarketSymbol(t *testing.T) {
	for in, want := range map[string]string{"BTC/USDT": "BTCUSDT", "eth-usdt": "ETHUSDT", "SOLUSDT": "SOLUSDT"} {
		if got := MarketSymbol(in); got != want {
			t.Errorf("MarketSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}

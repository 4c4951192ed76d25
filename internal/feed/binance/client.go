// Package binance implements domain.PriceFeed over the Binance spot REST API.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/rsibot/internal/domain"
)

const (
	// TestnetURL is the spot testnet REST root.
	TestnetURL = "https://testnet.binance.vision"
	// MainnetURL is the production spot REST root.
	MainnetURL = "https://api.binance.com"

	// requestWeightPerMinute is Binance's default IP request weight budget.
	requestWeightPerMinute = 1200
)

// Client is the REST client for Binance market data. Only public endpoints
// are used, so no credentials are needed.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    domain.RateLimiter
	limitKey   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimiter throttles requests through a shared limiter so several
// processes stay within one IP weight budget.
func WithRateLimiter(l domain.RateLimiter) Option {
	return func(c *Client) { c.limiter = l }
}

// NewClient creates a Binance client. An empty baseURL selects the testnet.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = TestnetURL
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		limitKey: "ratelimit:binance:rest",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the REST endpoint the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Candles returns up to limit klines for symbol, oldest first. The last
// element may be the still-forming candle.
func (c *Client) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	params := url.Values{}
	params.Set("symbol", MarketSymbol(symbol))
	params.Set("interval", timeframe)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.doRequest(ctx, "/api/v3/klines?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("binance: get klines %s: %w", symbol, err)
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("binance: decode klines: %w", err)
	}

	candles := make([]domain.Candle, 0, len(rows))
	for i, row := range rows {
		cd, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("binance: kline %d: %w", i, err)
		}
		candles = append(candles, cd)
	}
	return candles, nil
}

// Ticker returns the last traded price for symbol.
func (c *Client) Ticker(ctx context.Context, symbol string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("symbol", MarketSymbol(symbol))

	body, err := c.doRequest(ctx, "/api/v3/ticker/price?"+params.Encode())
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance: get ticker %s: %w", symbol, err)
	}

	var resp struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("binance: decode ticker: %w", err)
	}
	price, err := decimal.NewFromString(resp.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance: parse ticker price %q: %w", resp.Price, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("binance: ticker %s: %w", symbol, domain.ErrNoData)
	}
	return price, nil
}

// MarketSymbol converts "BTC/USDT" to the exchange form "BTCUSDT".
func MarketSymbol(symbol string) string {
	return strings.ToUpper(strings.NewReplacer("/", "", "-", "", "_", "").Replace(symbol))
}

// parseKline decodes one kline row:
// [openTime, open, high, low, close, volume, closeTime, ...].
func parseKline(row []json.RawMessage) (domain.Candle, error) {
	if len(row) < 7 {
		return domain.Candle{}, fmt.Errorf("short row (%d fields)", len(row))
	}

	var openMs, closeMs int64
	if err := json.Unmarshal(row[0], &openMs); err != nil {
		return domain.Candle{}, fmt.Errorf("open time: %w", err)
	}
	if err := json.Unmarshal(row[6], &closeMs); err != nil {
		return domain.Candle{}, fmt.Errorf("close time: %w", err)
	}

	var vals [5]float64
	for i := range vals {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return domain.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = f
	}

	return domain.Candle{
		OpenTime:  time.UnixMilli(openMs).UTC(),
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
		CloseTime: time.UnixMilli(closeMs).UTC(),
	}, nil
}

// doRequest performs a GET against path and returns the response body.
func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	if c.limiter != nil {
		ok, err := c.limiter.Allow(ctx, c.limitKey, requestWeightPerMinute, time.Minute)
		if err == nil && !ok {
			return nil, domain.ErrRateLimited
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// apiError is the Binance error envelope.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusTeapot:
		return fmt.Errorf("%w: %s (%d)", domain.ErrRateLimited, apiErr.Msg, apiErr.Code)
	case http.StatusBadRequest:
		return fmt.Errorf("bad request: %s (%d)", apiErr.Msg, apiErr.Code)
	default:
		return fmt.Errorf("HTTP %d: %s (%d)", statusCode, apiErr.Msg, apiErr.Code)
	}
}

var _ domain.PriceFeed = (*Client)(nil)

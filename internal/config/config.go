// Package config defines the top-level configuration for rsibot and provides
// validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by RSIBOT_* environment variables.
type Config struct {
	Exchange ExchangeConfig `toml:"exchange"`
	Engine   EngineConfig   `toml:"engine"`
	Strategy StrategyConfig `toml:"strategy"`
	Sizing   SizingConfig   `toml:"sizing"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ExchangeConfig selects the market data source.
type ExchangeConfig struct {
	BaseURL string `toml:"base_url"`
	// Testnet selects the spot testnet when BaseURL is empty.
	Testnet bool `toml:"testnet"`
	// RequestTimeout bounds every REST call.
	RequestTimeout duration `toml:"request_timeout"`
}

// EngineConfig holds the decision loop settings.
type EngineConfig struct {
	Symbol         string   `toml:"symbol"`
	Timeframe      string   `toml:"timeframe"`
	CandleLimit    int      `toml:"candle_limit"`
	PollInterval   duration `toml:"poll_interval"`
	FeedTimeout    duration `toml:"feed_timeout"`
	StoreTimeout   duration `toml:"store_timeout"`
	PerfLogEvery   int      `toml:"perf_log_every"`
	InitialCapital float64  `toml:"initial_capital"`
	// LockTTL is the instance lock lifetime; it is refreshed at a third of it.
	LockTTL duration `toml:"lock_ttl"`
}

// StrategyConfig selects the signal strategy and its starting thresholds.
// Zero thresholds fall back to the strategy's own defaults.
type StrategyConfig struct {
	Name          string  `toml:"name"`
	RSIPeriod     int     `toml:"rsi_period"`
	BuyThreshold  float64 `toml:"buy_threshold"`
	SellThreshold float64 `toml:"sell_threshold"`
	StopLoss      float64 `toml:"stop_loss"`
	TakeProfit    float64 `toml:"take_profit"`
}

// HasThresholds reports whether any threshold was configured.
func (s StrategyConfig) HasThresholds() bool {
	return s.BuyThreshold != 0 || s.SellThreshold != 0 || s.StopLoss != 0 || s.TakeProfit != 0
}

// SizingConfig holds exchange limits for position sizing.
type SizingConfig struct {
	MinNotional  float64  `toml:"min_notional"`
	MaxFraction  float64  `toml:"max_fraction"`
	LotStep      float64  `toml:"lot_step"`
	StatsTimeout duration `toml:"stats_timeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	URL        string `toml:"url"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	RetentionDays  int    `toml:"retention_days"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP control surface parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey, when set, is required on every mutating request.
	APIKey string `toml:"api_key"`
	// RateLimit is the per-client request budget per minute; 0 disables it.
	RateLimit int `toml:"rate_limit"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Exchange: ExchangeConfig{
			Testnet:        true,
			RequestTimeout: duration{30 * time.Second},
		},
		Engine: EngineConfig{
			Symbol:         "BTC/USDT",
			Timeframe:      "1h",
			CandleLimit:    100,
			PollInterval:   duration{10 * time.Second},
			FeedTimeout:    duration{10 * time.Second},
			StoreTimeout:   duration{5 * time.Second},
			PerfLogEvery:   10,
			InitialCapital: 10000,
			LockTTL:        duration{30 * time.Second},
		},
		Strategy: StrategyConfig{
			Name:      "rsi_reversion",
			RSIPeriod: 14,
		},
		Sizing: SizingConfig{
			MinNotional:  10,
			MaxFraction:  0.05,
			LotStep:      0.00001,
			StatsTimeout: duration{2 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "rsibot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "rsibot-archive",
			ForcePathStyle: true,
			RetentionDays:  90,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
		},
		Notify: NotifyConfig{
			Events: []string{"engine_started", "trade_executed", "risk_exit", "config_updated", "run_control", "error"},
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
	"archive": true,
	"dry":     true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validTimeframes are the kline intervals the exchange accepts.
var validTimeframes = map[string]bool{
	"1m": true, "3m": true, "5m": true, "15m": true, "30m": true,
	"1h": true, "2h": true, "4h": true, "6h": true, "8h": true, "12h": true,
	"1d": true, "3d": true, "1w": true, "1M": true,
}

// NeedsPersistence reports whether the mode uses Postgres and Redis.
func (c *Config) NeedsPersistence() bool {
	return strings.ToLower(c.Mode) != "dry"
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor, archive, dry)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine
	if strings.TrimSpace(c.Engine.Symbol) == "" {
		errs = append(errs, "engine: symbol must not be empty")
	}
	if !validTimeframes[c.Engine.Timeframe] {
		errs = append(errs, fmt.Sprintf("engine: unsupported timeframe %q", c.Engine.Timeframe))
	}
	if c.Engine.CandleLimit < 2 || c.Engine.CandleLimit > 1000 {
		errs = append(errs, fmt.Sprintf("engine: candle_limit must be 2-1000, got %d", c.Engine.CandleLimit))
	}
	if c.Engine.PollInterval.Duration <= 0 {
		errs = append(errs, "engine: poll_interval must be > 0")
	}
	if c.Engine.FeedTimeout.Duration <= 0 || c.Engine.StoreTimeout.Duration <= 0 {
		errs = append(errs, "engine: feed_timeout and store_timeout must be > 0")
	}
	if c.Engine.InitialCapital <= 0 {
		errs = append(errs, "engine: initial_capital must be > 0")
	}
	if c.Engine.LockTTL.Duration < 3*time.Second {
		errs = append(errs, "engine: lock_ttl must be >= 3s")
	}

	// Strategy
	switch c.Strategy.Name {
	case "rsi_reversion", "kama_reversion":
	default:
		errs = append(errs, fmt.Sprintf("strategy: unknown name %q (valid: rsi_reversion, kama_reversion)", c.Strategy.Name))
	}
	if c.Strategy.RSIPeriod < 2 {
		errs = append(errs, "strategy: rsi_period must be >= 2")
	}
	if c.Strategy.RSIPeriod+1 > c.Engine.CandleLimit {
		errs = append(errs, "strategy: candle_limit must cover rsi_period + 1 candles")
	}

	// Sizing
	if c.Sizing.MinNotional < 0 {
		errs = append(errs, "sizing: min_notional must be >= 0")
	}
	if c.Sizing.MaxFraction <= 0 || c.Sizing.MaxFraction > 1 {
		errs = append(errs, "sizing: max_fraction must be in (0, 1]")
	}
	if c.Sizing.LotStep < 0 {
		errs = append(errs, "sizing: lot_step must be >= 0")
	}

	if c.NeedsPersistence() {
		// Postgres
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}

		// Redis
		if c.Redis.Addr == "" && c.Redis.URL == "" {
			errs = append(errs, "redis: addr or url must be set")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3 is only needed to archive.
	if mode == "archive" {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if c.S3.RetentionDays < 1 {
			errs = append(errs, "s3: retention_days must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	// Notify: telegram needs both halves.
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

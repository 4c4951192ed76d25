package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RSIBOT_"

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies RSIBOT_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned
// Config has NOT been validated; the caller should invoke Config.Validate()
// after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known RSIBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Exchange ──
	setStr(&cfg.Exchange.BaseURL, "EXCHANGE_BASE_URL")
	setBool(&cfg.Exchange.Testnet, "EXCHANGE_TESTNET")
	setDuration(&cfg.Exchange.RequestTimeout, "EXCHANGE_REQUEST_TIMEOUT")

	// ── Engine ──
	setStr(&cfg.Engine.Symbol, "ENGINE_SYMBOL")
	setStr(&cfg.Engine.Timeframe, "ENGINE_TIMEFRAME")
	setInt(&cfg.Engine.CandleLimit, "ENGINE_CANDLE_LIMIT")
	setDuration(&cfg.Engine.PollInterval, "ENGINE_POLL_INTERVAL")
	setDuration(&cfg.Engine.FeedTimeout, "ENGINE_FEED_TIMEOUT")
	setDuration(&cfg.Engine.StoreTimeout, "ENGINE_STORE_TIMEOUT")
	setInt(&cfg.Engine.PerfLogEvery, "ENGINE_PERF_LOG_EVERY")
	setFloat64(&cfg.Engine.InitialCapital, "ENGINE_INITIAL_CAPITAL")
	setDuration(&cfg.Engine.LockTTL, "ENGINE_LOCK_TTL")

	// ── Strategy ──
	setStr(&cfg.Strategy.Name, "STRATEGY_NAME")
	setInt(&cfg.Strategy.RSIPeriod, "STRATEGY_RSI_PERIOD")
	setFloat64(&cfg.Strategy.BuyThreshold, "STRATEGY_BUY_THRESHOLD")
	setFloat64(&cfg.Strategy.SellThreshold, "STRATEGY_SELL_THRESHOLD")
	setFloat64(&cfg.Strategy.StopLoss, "STRATEGY_STOP_LOSS")
	setFloat64(&cfg.Strategy.TakeProfit, "STRATEGY_TAKE_PROFIT")

	// ── Sizing ──
	setFloat64(&cfg.Sizing.MinNotional, "SIZING_MIN_NOTIONAL")
	setFloat64(&cfg.Sizing.MaxFraction, "SIZING_MAX_FRACTION")
	setFloat64(&cfg.Sizing.LotStep, "SIZING_LOT_STEP")
	setDuration(&cfg.Sizing.StatsTimeout, "SIZING_STATS_TIMEOUT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.URL, "REDIS_URL")
	setStr(&cfg.Redis.Addr, "REDIS_ADDR")
	setStr(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "S3_ENDPOINT")
	setStr(&cfg.S3.Region, "S3_REGION")
	setStr(&cfg.S3.Bucket, "S3_BUCKET")
	setStr(&cfg.S3.Prefix, "S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "S3_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.DiscordWebhookURL, "DISCORD_WEBHOOK_URL") // compatibility alias
	setStringSlice(&cfg.Notify.Events, "NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "MODE")
	setStr(&cfg.LogLevel, "LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty. Keys are given without EnvPrefix except
// the unprefixed compatibility aliases.
// ---------------------------------------------------------------------------

func lookup(key string) string {
	switch key {
	case "DATABASE_URL", "DISCORD_WEBHOOK_URL":
		return os.Getenv(key)
	}
	return os.Getenv(EnvPrefix + key)
}

func setStr(dst *string, key string) {
	if v := lookup(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := lookup(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := lookup(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := lookup(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := lookup(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := lookup(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.Engine.PollInterval.Duration != 10*time.Second || cfg.Strategy.RSIPeriod != 14 {
		t.Fatalf("unexpected defaults: %+v", cfg.Engine)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "yolo"
	cfg.Engine.Timeframe = "7m"
	cfg.Engine.InitialCapital = 0
	cfg.Strategy.Name = "macd_cross"
	cfg.Notify.TelegramToken = "tok"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"unknown mode", "timeframe", "initial_capital", "strategy: unknown name", "telegram_chat_id"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q:\n%v", want, err)
		}
	}
}

func TestValidateDryModeSkipsPersistence(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "dry"
	cfg.Postgres.Host = ""
	cfg.Redis.Addr = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("dry mode should not need postgres/redis: %v", err)
	}

	cfg.Mode = "trade"
	if err := cfg.Validate(); err == nil {
		t.Fatal("trade mode without postgres/redis should fail")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
mode = "monitor"

[engine]
symbol = "ETH/USDT"
timeframe = "15m"
poll_interval = "30s"

[strategy]
name = "kama_reversion"
buy_threshold = -3.0
sell_threshold = 3.0
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("RSIBOT_ENGINE_CANDLE_LIMIT", "250")
	t.Setenv("RSIBOT_SERVER_CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("RSIBOT_ENGINE_FEED_TIMEOUT", "3s")
	t.Setenv("RSIBOT_SERVER_PORT", "not-a-number")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "monitor" || cfg.Engine.Symbol != "ETH/USDT" || cfg.Engine.Timeframe != "15m" {
		t.Errorf("file values not applied: %+v", cfg.Engine)
	}
	if cfg.Engine.PollInterval.Duration != 30*time.Second || cfg.Engine.FeedTimeout.Duration != 3*time.Second {
		t.Errorf("durations: poll %v feed %v", cfg.Engine.PollInterval, cfg.Engine.FeedTimeout)
	}
	if cfg.Engine.CandleLimit != 250 {
		t.Errorf("candle_limit = %d", cfg.Engine.CandleLimit)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("unparseable port override should be ignored, got %d", cfg.Server.Port)
	}
	if !cfg.Strategy.HasThresholds() || cfg.Strategy.BuyThreshold != -3 {
		t.Errorf("strategy = %+v", cfg.Strategy)
	}
	if cfg.Engine.InitialCapital != 10000 {
		t.Errorf("unset fields should keep defaults, capital = %v", cfg.Engine.InitialCapital)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pg-secret"
	cfg.Server.APIKey = "key"
	cfg.Notify.DiscordWebhookURL = "https://discord.com/api/webhooks/1/abc"

	out := RedactedConfig(&cfg)
	if out.Postgres.Password != "***" || out.Server.APIKey != "***" || out.Notify.DiscordWebhookURL != "***" {
		t.Errorf("secrets not redacted: %+v", out)
	}
	if out.Redis.Password != "" {
		t.Errorf("empty secret should stay empty, got %q", out.Redis.Password)
	}
	if cfg.Postgres.Password != "pg-secret" {
		t.Error("original mutated")
	}

	out.Server.CORSOrigins[0] = "changed"
	if cfg.Server.CORSOrigins[0] == "changed" {
		t.Error("slice shared with original")
	}
}

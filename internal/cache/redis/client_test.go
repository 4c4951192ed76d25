package redis

import (
	"testing"
	"time"
)

func TestOptions(t *testing.T) {
	tests := []struct {
		name     string
		cfg      ClientConfig
		wantAddr string
		wantDB   int
		wantTLS  bool
	}{
		{name: "default addr", cfg: ClientConfig{}, wantAddr: "localhost:6379"},
		{name: "plain addr", cfg: ClientConfig{Addr: "cache:6380", DB: 2}, wantAddr: "cache:6380", wantDB: 2},
		{name: "url", cfg: ClientConfig{URL: "redis://:secret@redis.internal:6379/3"}, wantAddr: "redis.internal:6379", wantDB: 3},
		{name: "tls url", cfg: ClientConfig{URL: "rediss://redis.internal:6380/0"}, wantAddr: "redis.internal:6380", wantTLS: true},
		{name: "tls flag", cfg: ClientConfig{Addr: "r:6379", TLSEnabled: true}, wantAddr: "r:6379", wantTLS: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := options(tt.cfg)
			if err != nil {
				t.Fatalf("options: %v", err)
			}
			if opts.Addr != tt.wantAddr || opts.DB != tt.wantDB {
				t.Errorf("addr %q db %d", opts.Addr, opts.DB)
			}
			if (opts.TLSConfig != nil) != tt.wantTLS {
				t.Errorf("tls = %v", opts.TLSConfig != nil)
			}
		})
	}
}

func TestOptionsOverrideURL(t *testing.T) {
	opts, err := options(ClientConfig{URL: "redis://redis.internal:6379/1", Password: "pw", DialTimeout: 2 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if opts.Password != "pw" || opts.DialTimeout != 2*time.Second || opts.DB != 1 {
		t.Fatalf("opts = %+v", opts)
	}
}

func TestOptionsBadURL(t *testing.T) {
	if _, err := options(ClientConfig{URL: "http://nope"}); err == nil {
		t.Fatal("expected error for non-redis scheme")
	}
}

func TestHasPattern(t *testing.T) {
	if !hasPattern("ch:*") || hasPattern("ch:trade") {
		t.Fatal("hasPattern misclassified")
	}
}

func TestPayloadBytes(t *testing.T) {
	if b, ok := payloadBytes("x"); !ok || string(b) != "x" {
		t.Fatal("string payload")
	}
	if _, ok := payloadBytes(42); ok {
		t.Fatal("int payload accepted")
	}
}

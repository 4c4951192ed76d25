package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/rsibot/internal/domain"
	"github.com/alanyoungcy/rsibot/internal/engine"
)

type fakeBus struct {
	mu      sync.Mutex
	subs    map[string]chan []byte
	ready   chan string
	backlog []domain.StreamMessage
}

func newFakeBus(backlog ...string) *fakeBus {
	b := &fakeBus{subs: make(map[string]chan []byte), ready: make(chan string, 8)}
	// StreamRevRange returns newest first.
	for i := len(backlog) - 1; i >= 0; i-- {
		b.backlog = append(b.backlog, domain.StreamMessage{ID: backlog[i], Payload: []byte(backlog[i])})
	}
	return b
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	ch := b.subs[channel]
	b.mu.Unlock()
	if ch != nil {
		ch <- payload
	}
	return nil
}

func (b *fakeBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 4)
	b.mu.Lock()
	b.subs[channel] = ch
	b.mu.Unlock()
	b.ready <- channel
	return ch, nil
}

func (b *fakeBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *fakeBus) StreamRevRange(_ context.Context, _ string, count int) ([]domain.StreamMessage, error) {
	return b.backlog[:min(count, len(b.backlog))], nil
}

type fixedStatus struct{}

func (fixedStatus) Status(context.Context) engine.Status {
	return engine.Status{Symbol: "BTC/USDT"}
}

func startHub(t *testing.T, bus *fakeBus, cfg Config) (*websocket.Conn, *Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(bus, fixedStatus{}, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	go hub.Run(ctx)
	for range defaultChannels {
		select {
		case <-bus.ready:
		case <-time.After(2 * time.Second):
			t.Fatal("hub did not subscribe")
		}
	}

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, hub
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.TextMessage {
		t.Fatalf("frame type = %d, want text", kind)
	}
	return string(data)
}

func TestHubInitialStatusAndBackfill(t *testing.T) {
	conn, _ := startHub(t, newFakeBus(`{"n":1}`, `{"n":2}`, `{"n":3}`), Config{Backfill: 2})

	var first struct {
		Type    string `json:"type"`
		Payload struct {
			Symbol string `json:"symbol"`
		} `json:"payload"`
	}
	if err := json.Unmarshal([]byte(readText(t, conn)), &first); err != nil {
		t.Fatal(err)
	}
	if first.Type != "bot_status" || first.Payload.Symbol != "BTC/USDT" {
		t.Fatalf("initial = %+v", first)
	}
	if got := readText(t, conn); got != `{"n":2}` {
		t.Fatalf("backfill[0] = %s", got)
	}
	if got := readText(t, conn); got != `{"n":3}` {
		t.Fatalf("backfill[1] = %s", got)
	}
}

func TestHubForwardsBusEvents(t *testing.T) {
	bus := newFakeBus()
	conn, hub := startHub(t, bus, Config{})
	readText(t, conn) // bot_status

	deadline := time.Now().Add(2 * time.Second)
	for hub.clientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	bus.Publish(context.Background(), domain.ChannelTrade, []byte(`{"type":"trade"}`))
	if got := readText(t, conn); got != `{"type":"trade"}` {
		t.Fatalf("got %s", got)
	}
}

func TestIsSubscribed(t *testing.T) {
	c := &client{subs: map[string]bool{"ch:trade": true, "ch:alerts:*": true}}
	cases := map[string]bool{
		"ch:trade":       true,
		"ch:status":      false,
		"ch:alerts:risk": true,
	}
	for channel, want := range cases {
		if got := c.isSubscribed(channel); got != want {
			t.Errorf("isSubscribed(%q) = %v, want %v", channel, got, want)
		}
	}
	c.handleSubscription(subscribeMsg{Action: "unsubscribe", Channels: []string{"ch:trade"}})
	if c.isSubscribed("ch:trade") {
		t.Error("unsubscribe had no effect")
	}
}

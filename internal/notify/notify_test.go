package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tradeMessage() Message {
	return Message{
		Title: "BUY BTCUSDT",
		Body:  "Tier 2 (Normal)",
		Color: ColorBuy,
		Fields: []Field{
			{Name: "Price", Value: "50000", Inline: true},
			{Name: "Trade Size", Value: "0.002", Inline: true},
		},
	}
}

func TestDiscordSendsEmbed(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewDiscordSender(srv.URL).Send(context.Background(), tradeMessage()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(got.Embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(got.Embeds))
	}
	e := got.Embeds[0]
	if e.Title != "BUY BTCUSDT" || e.Color != ColorBuy || len(e.Fields) != 2 || e.Fields[1].Name != "Trade Size" {
		t.Fatalf("embed = %+v", e)
	}
}

func TestDiscordErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad webhook", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), tradeMessage())
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("err = %v, want status 400", err)
	}
}

func TestTelegramRendersFields(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.apiBase = srv.URL
	if err := s.Send(context.Background(), tradeMessage()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	want := "*BUY BTCUSDT*\nTier 2 (Normal)\nPrice: 50000\nTrade Size: 0.002"
	if got["text"] != want || got["chat_id"] != "42" {
		t.Fatalf("payload = %v", got)
	}
}

type recordingSender struct {
	name string
	err  error
	msgs []Message
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	r.msgs = append(r.msgs, msg)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func TestNotifierFilterAndFanOut(t *testing.T) {
	ok := &recordingSender{name: "ok"}
	bad := &recordingSender{name: "bad", err: errors.New("boom")}
	n := NewNotifier([]Sender{bad, ok}, []string{EventTradeExecuted}, discardLogger())

	if err := n.Notify(context.Background(), EventConfigUpdated, tradeMessage()); err != nil {
		t.Fatalf("filtered Notify: %v", err)
	}
	if len(ok.msgs) != 0 {
		t.Fatal("filtered event was delivered")
	}

	err := n.Notify(context.Background(), EventTradeExecuted, tradeMessage())
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Fatalf("err = %v, want failure from bad sender", err)
	}
	if len(ok.msgs) != 1 {
		t.Fatal("healthy sender did not receive message after sibling failure")
	}

	if err := NewNotifier(nil, nil, discardLogger()).NotifyAll(context.Background(), tradeMessage()); err != nil {
		t.Fatalf("no senders: %v", err)
	}
}

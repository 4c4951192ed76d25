package engine

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/rsibot/internal/domain"
	"github.com/alanyoungcy/rsibot/internal/notify"
)

type recordingBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	streamed  map[string][][]byte
}

func newRecordingBus() *recordingBus {
	return &recordingBus{published: map[string][][]byte{}, streamed: map[string][][]byte{}}
}

func (b *recordingBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *recordingBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, nil
}

func (b *recordingBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamed[stream] = append(b.streamed[stream], payload)
	return nil
}

func (b *recordingBus) StreamRevRange(context.Context, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
	msgs   []notify.Message
}

func (n *recordingNotifier) Notify(_ context.Context, event string, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	n.msgs = append(n.msgs, msg)
	return nil
}

type blockingNotifier struct{}

func (blockingNotifier) Notify(ctx context.Context, _ string, _ notify.Message) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestEventsTradeExecuted(t *testing.T) {
	bus := newRecordingBus()
	n := &recordingNotifier{}
	ev := NewEvents(n, bus, nil, time.Second, testLogger())

	profit := mustDec("-500")
	rec := domain.TradeRecord{
		ID:     2,
		Symbol: "BTC/USDT",
		Side:   domain.SideSell,
		Price:  mustDec("45000"),
		Amount: mustDec("0.1"),
		Reason: domain.ReasonStopLoss,
		Profit: &profit,
	}
	ev.TradeExecuted(rec, domain.Wallet{Quote: mustDec("9500")}, "")
	ev.Wait()

	if len(n.events) != 1 || n.events[0] != notify.EventRiskExit {
		t.Fatalf("events = %v", n.events)
	}
	if n.msgs[0].Body != "Stop Loss triggered" {
		t.Fatalf("body = %q", n.msgs[0].Body)
	}
	fields := map[string]string{}
	for _, f := range n.msgs[0].Fields {
		fields[f.Name] = f.Value
	}
	if fields["Wallet Value"] != "9500.00" || fields["Profit"] != "-500.00" {
		t.Fatalf("fields = %v", fields)
	}

	if len(bus.published[domain.ChannelTrade]) != 1 || len(bus.streamed[domain.StreamTrades]) != 1 {
		t.Fatalf("bus published %v streamed %v", bus.published, bus.streamed)
	}
	var payload TradeEvent
	if err := json.Unmarshal(bus.published[domain.ChannelTrade][0], &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Type != "trade" || payload.Trade.ID != 2 {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestEventsDoNotBlockCaller(t *testing.T) {
	ev := NewEvents(blockingNotifier{}, nil, nil, 50*time.Millisecond, testLogger())

	start := time.Now()
	ev.Alert(notify.EventError, notify.Message{Title: "x"})
	if time.Since(start) > 20*time.Millisecond {
		t.Fatal("Alert blocked the caller")
	}
	ev.Wait()
}

func TestNilEventsIsNoop(t *testing.T) {
	var ev *Events
	ev.TradeExecuted(domain.TradeRecord{}, domain.Wallet{}, "")
	ev.Status(StatusEvent{})
	ev.Alert(notify.EventError, notify.Message{})
	ev.Wait()
}

package realtime

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
	"github.com/kekelo17/Swift-Meds-sub000/internal/infrastructure/redis"
)

// loopBroker echoes published messages back to pattern subscribers
type loopBroker struct {
	mu   sync.Mutex
	fail bool
	subs []chan redis.Message
}

func (b *loopBroker) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("broker down")
	}
	for _, ch := range b.subs {
		ch <- redis.Message{Channel: channel, Payload: string(payload)}
	}
	return nil
}

func (b *loopBroker) PSubscribe(_ context.Context, pattern string) (<-chan redis.Message, func() error, error) {
	if !strings.HasSuffix(pattern, "*") {
		return nil, nil, errors.New("pattern expected")
	}
	ch := make(chan redis.Message, 8)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch, func() error { return nil }, nil
}

func (b *loopBroker) subscribed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs) > 0
}

func TestBridgeRoundTrip(t *testing.T) {
	hub := NewHub(4, nil)
	broker := &loopBroker{}
	bridge := NewBridge(hub, broker, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- bridge.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for !broker.subscribed() {
		if time.Now().After(deadline) {
			t.Fatal("bridge never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	sub := hub.Subscribe(domain.TopicInventory)
	defer sub.Close()

	bridge.Publish(ctx, event(domain.TopicInventory, 3))

	select {
	case ev := <-sub.Events():
		if ev.Topic != domain.TopicInventory || ev.EventType != domain.EventInsert {
			t.Fatalf("unexpected event %+v", ev)
		}
		if string(ev.New) != `{"id":3}` {
			t.Fatalf("unexpected payload %s", ev.New)
		}
	case <-time.After(time.Second):
		t.Fatal("event did not come back through the broker")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestBridgeFallsBackToLocalHub(t *testing.T) {
	hub := NewHub(4, nil)
	broker := &loopBroker{fail: true}
	bridge := NewBridge(hub, broker, nil)

	sub := hub.Subscribe(domain.TopicReservations)
	defer sub.Close()

	bridge.Publish(context.Background(), event(domain.TopicReservations, 1))

	select {
	case ev := <-sub.Events():
		if ev.Topic != domain.TopicReservations {
			t.Fatalf("unexpected topic %s", ev.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("expected local delivery while broker is down")
	}
}

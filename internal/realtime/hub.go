// Package realtime fans committed change events out to in-process
// subscribers and, through Bridge, to other API instances.
package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
	"github.com/kekelo17/Swift-Meds-sub000/internal/observability/metrics"
)

// DefaultBuffer is the queue length of a subscription when none is configured
const DefaultBuffer = 64

// Subscription is one consumer of a topic. Events are delivered at most once
// and dropped when the queue is full.
type Subscription struct {
	ID     string
	Topic  string
	events chan domain.ChangeEvent
	hub    *Hub
	once   sync.Once
}

// Events returns the delivery channel. It is closed by Close.
func (s *Subscription) Events() <-chan domain.ChangeEvent {
	return s.events
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

// Hub tracks subscriptions per topic. All operations are safe for concurrent use.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	count  int
	buffer int
	logger *slog.Logger
}

// NewHub creates a hub whose subscriptions queue up to buffer events
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		topics: make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a new consumer of topic
func (h *Hub) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		ID:     uuid.NewString(),
		Topic:  topic,
		events: make(chan domain.ChangeEvent, h.buffer),
		hub:    h,
	}

	h.mu.Lock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Subscription]struct{})
	}
	h.topics[topic][sub] = struct{}{}
	h.count++
	count := h.count
	h.mu.Unlock()

	metrics.SetRelaySubscribers(count)
	h.logger.Debug("relay subscription opened", slog.String("topic", topic), slog.String("subscription_id", sub.ID))
	return sub
}

// SubscribeFunc calls fn for every event on topic until ctx ends or the
// returned subscription is closed. fn runs on a single goroutine.
func (h *Hub) SubscribeFunc(ctx context.Context, topic string, fn func(domain.ChangeEvent)) *Subscription {
	sub := h.Subscribe(topic)
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.events:
				if !ok {
					return
				}
				fn(ev)
			}
		}
	}()
	return sub
}

// Unsubscribe is equivalent to sub.Close()
func (h *Hub) Unsubscribe(sub *Subscription) {
	sub.Close()
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	subs, ok := h.topics[sub.Topic]
	if ok {
		if _, member := subs[sub]; member {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.topics, sub.Topic)
			}
			h.count--
			close(sub.events)
		}
	}
	count := h.count
	h.mu.Unlock()

	metrics.SetRelaySubscribers(count)
}

// Publish delivers ev to every subscriber of ev.Topic without blocking.
// Subscribers whose queue is full miss the event.
func (h *Hub) Publish(_ context.Context, ev domain.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.topics[ev.Topic] {
		select {
		case sub.events <- ev:
			metrics.ObserveRelayDelivered(ev.Topic)
		default:
			metrics.ObserveRelayDropped(ev.Topic)
			h.logger.Warn("relay queue full, event dropped",
				slog.String("topic", ev.Topic),
				slog.String("subscription_id", sub.ID),
			)
		}
	}
}

// Subscribers returns the number of open subscriptions on topic
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

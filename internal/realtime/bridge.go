package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
	"github.com/kekelo17/Swift-Meds-sub000/internal/infrastructure/redis"
	"github.com/kekelo17/Swift-Meds-sub000/internal/reliability/circuitbreaker"
)

// ChannelPrefix namespaces relay channels on the broker
const ChannelPrefix = "swiftmeds:events:"

// Broker is the pub/sub transport between API instances
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	PSubscribe(ctx context.Context, pattern string) (<-chan redis.Message, func() error, error)
}

// Bridge publishes events through a broker so that every instance's hub sees
// them. While the broker fails, the circuit breaker opens and events are
// delivered to the local hub only.
type Bridge struct {
	hub     *Hub
	broker  Broker
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewBridge creates a bridge between hub and broker
func NewBridge(hub *Hub, broker Broker, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	cb := circuitbreaker.NewCircuitBreaker(3, 1, 10*time.Second)
	cb.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		logger.Warn("relay broker circuit changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	return &Bridge{hub: hub, broker: broker, breaker: cb, logger: logger}
}

// Publish implements domain.EventPublisher
func (b *Bridge) Publish(ctx context.Context, ev domain.ChangeEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error("failed to encode change event", slog.String("error", err.Error()))
		return
	}

	err = b.breaker.Execute(func() error {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		return b.broker.Publish(pubCtx, ChannelPrefix+ev.Topic, payload)
	})
	if err != nil {
		b.logger.Warn("broker publish failed, delivering locally",
			slog.String("topic", ev.Topic),
			slog.String("error", err.Error()),
		)
		b.hub.Publish(ctx, ev)
	}
}

// Run forwards broker messages into the hub until ctx ends
func (b *Bridge) Run(ctx context.Context) error {
	msgs, closeFn, err := b.broker.PSubscribe(ctx, ChannelPrefix+"*")
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	b.logger.Info("relay bridge subscribed", slog.String("pattern", ChannelPrefix+"*"))
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var ev domain.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Warn("dropping malformed relay message",
					slog.String("channel", msg.Channel),
					slog.String("error", err.Error()),
				)
				continue
			}
			if ev.Topic == "" {
				ev.Topic = strings.TrimPrefix(msg.Channel, ChannelPrefix)
			}
			b.hub.Publish(ctx, ev)
		}
	}
}

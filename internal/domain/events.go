package domain

import (
	"context"
	"encoding/json"
	"time"
)

// Topics carried by the change relay
const (
	TopicReservations  = "reservations"
	TopicPharmacies    = "pharmacies"
	TopicInventory     = "inventory"
	TopicNotifications = "notifications"
)

// KnownTopic reports whether topic is one the relay serves
func KnownTopic(topic string) bool {
	switch topic {
	case TopicReservations, TopicPharmacies, TopicInventory, TopicNotifications:
		return true
	}
	return false
}

// EventType is the kind of row change
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ChangeEvent describes one committed row change. Old is empty for inserts
// and New is empty for deletes.
type ChangeEvent struct {
	Topic     string          `json:"topic"`
	EventType EventType       `json:"eventType"`
	Old       json.RawMessage `json:"old,omitempty"`
	New       json.RawMessage `json:"new,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewChangeEvent marshals the old and new row images. Nil images are left empty.
func NewChangeEvent(topic string, eventType EventType, before, after any, at time.Time) ChangeEvent {
	ev := ChangeEvent{Topic: topic, EventType: eventType, Timestamp: at}
	if before != nil {
		ev.Old, _ = json.Marshal(before)
	}
	if after != nil {
		ev.New, _ = json.Marshal(after)
	}
	return ev
}

// EventPublisher delivers change events to subscribers. Delivery is
// best-effort; Publish never blocks on slow consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event ChangeEvent)
}

// NopPublisher discards every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ChangeEvent) {}

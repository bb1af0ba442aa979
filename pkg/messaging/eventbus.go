// Package messaging defines the event bus port used to propagate committed
// events beyond the process: to other services, projection workers or audit
// consumers. The bus is strictly downstream of the event store; it is never
// the source of truth.
package messaging

import (
	"context"
	"time"
)

// PublishedEvent is the wire form of a committed event envelope. The
// payload is already serialized by the publisher's codec, so subscribers
// in other processes can decode it with their own registry.
type PublishedEvent struct {
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	Sequence      uint64            `json:"sequence"`
	EventType     string            `json:"event_type"`
	EventVersion  string            `json:"event_version"`
	Payload       []byte            `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// Filter selects which events a subscription receives. Empty slices match
// everything.
type Filter struct {
	AggregateTypes []string
	EventTypes     []string
}

// Handler processes one published event. Returning an error indicates the
// event was not handled; redelivery semantics are bus-specific.
type Handler func(ctx context.Context, event *PublishedEvent) error

// Subscription is an active event subscription.
type Subscription interface {
	// Unsubscribe stops delivery and releases resources.
	Unsubscribe() error
}

// EventBus publishes committed events and delivers them to subscribers.
type EventBus interface {
	// Publish publishes events in order.
	Publish(ctx context.Context, events []*PublishedEvent) error

	// Subscribe registers a handler for events matching the filter.
	Subscribe(filter Filter, handler Handler) (Subscription, error)

	// Close releases bus resources.
	Close() error
}

// Package nats is a NATS JetStream implementation of the messaging
// EventBus port.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nigeleke/cqrs/pkg/messaging"
)

// EventBus publishes committed events to a JetStream stream and delivers
// them to subscribers with at-least-once semantics.
type EventBus struct {
	nc         *nats.Conn
	js         nats.JetStreamContext
	streamName string

	mu   sync.Mutex
	subs []*nats.Subscription
}

// Config holds configuration for the NATS event bus.
type Config struct {
	// URL is the NATS server URL.
	URL string

	// StreamName is the JetStream stream name for events.
	StreamName string

	// StreamSubjects are the subjects the stream captures.
	StreamSubjects []string

	// MaxAge is how long to retain events in the stream.
	MaxAge time.Duration

	// MaxBytes is the maximum bytes the stream can store.
	MaxBytes int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:            nats.DefaultURL,
		StreamName:     "EVENTS",
		StreamSubjects: []string{"events.>"},
		MaxAge:         7 * 24 * time.Hour,
		MaxBytes:       1024 * 1024 * 1024, // 1 GB
	}
}

// NewEventBus connects to NATS and ensures the event stream exists.
func NewEventBus(config Config) (*EventBus, error) {
	nc, err := nats.Connect(config.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	bus := &EventBus{nc: nc, js: js, streamName: config.StreamName}
	if err := bus.ensureStream(config); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return bus, nil
}

func (b *EventBus) ensureStream(config Config) error {
	streamConfig := &nats.StreamConfig{
		Name:      config.StreamName,
		Subjects:  config.StreamSubjects,
		Retention: nats.LimitsPolicy,
		MaxAge:    config.MaxAge,
		MaxBytes:  config.MaxBytes,
		Storage:   nats.FileStorage,
		Replicas:  1,
	}

	if _, err := b.js.StreamInfo(config.StreamName); err != nil {
		if _, err := b.js.AddStream(streamConfig); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		return nil
	}

	if _, err := b.js.UpdateStream(streamConfig); err != nil {
		return fmt.Errorf("update stream: %w", err)
	}
	return nil
}

// Publish publishes events in order. The message id
// <aggregate_id>:<sequence> gives JetStream a deduplication key, so
// re-driving an abandoned dispatch cannot duplicate events on the stream.
func (b *EventBus) Publish(ctx context.Context, events []*messaging.PublishedEvent) error {
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("serialize event %s/%d: %w", event.AggregateID, event.Sequence, err)
		}

		msgID := fmt.Sprintf("%s:%d", event.AggregateID, event.Sequence)
		if _, err := b.js.Publish(Subject(event.AggregateType, event.EventType), data,
			nats.MsgId(msgID), nats.Context(ctx)); err != nil {
			return fmt.Errorf("publish event %s: %w", msgID, err)
		}
	}
	return nil
}

// Subscribe delivers matching events to handler. Handler errors nack the
// message for redelivery.
func (b *EventBus) Subscribe(filter messaging.Filter, handler messaging.Handler) (messaging.Subscription, error) {
	sub, err := b.js.Subscribe(subjectFilter(filter), func(msg *nats.Msg) {
		var event messaging.PublishedEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			msg.Term()
			return
		}
		if !matches(filter, &event) {
			msg.Ack()
			return
		}
		if err := handler(context.Background(), &event); err != nil {
			msg.Nak()
			return
		}
		msg.Ack()
	}, nats.ManualAck())
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return &subscription{sub: sub}, nil
}

// Close drains subscriptions and closes the connection.
func (b *EventBus) Close() error {
	b.mu.Lock()
	for _, sub := range b.subs {
		sub.Unsubscribe()
	}
	b.subs = nil
	b.mu.Unlock()

	b.nc.Close()
	return nil
}

type subscription struct {
	sub *nats.Subscription
}

func (s *subscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}

// Subject returns the publish subject for one event:
// events.<aggregate_type>.<event_type>, with token separators sanitized.
func Subject(aggregateType, eventType string) string {
	return fmt.Sprintf("events.%s.%s", sanitize(aggregateType), sanitize(eventType))
}

func subjectFilter(filter messaging.Filter) string {
	if len(filter.AggregateTypes) == 1 {
		return fmt.Sprintf("events.%s.>", sanitize(filter.AggregateTypes[0]))
	}
	return "events.>"
}

func matches(filter messaging.Filter, event *messaging.PublishedEvent) bool {
	return contains(filter.AggregateTypes, event.AggregateType) &&
		contains(filter.EventTypes, event.EventType)
}

func contains(set []string, value string) bool {
	if len(set) == 0 {
		return true
	}
	for _, v := range set {
		if v == value {
			return true
		}
	}
	return false
}

func sanitize(token string) string {
	return strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(token)
}

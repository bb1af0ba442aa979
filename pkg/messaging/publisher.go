package messaging

import (
	"context"
	"fmt"

	"github.com/nigeleke/cqrs/pkg/cqrs"
)

// PublisherQuery is a cqrs.Query that forwards committed events to an
// EventBus. Register it alongside view queries to fan events out to other
// processes; like any query, a publish failure is surfaced to the Execute
// caller as a warning and never disturbs the committed events.
type PublisherQuery[E cqrs.DomainEvent] struct {
	bus   EventBus
	codec cqrs.EventCodec[E]
}

// NewPublisherQuery creates a publisher using codec to serialize payloads.
func NewPublisherQuery[E cqrs.DomainEvent](bus EventBus, codec cqrs.EventCodec[E]) *PublisherQuery[E] {
	return &PublisherQuery[E]{bus: bus, codec: codec}
}

// Dispatch publishes the committed events in commit order.
func (p *PublisherQuery[E]) Dispatch(ctx context.Context, aggregateID string, events []cqrs.EventEnvelope[E]) error {
	if len(events) == 0 {
		return nil
	}

	published := make([]*PublishedEvent, 0, len(events))
	for _, env := range events {
		payload, err := p.codec.Marshal(env.Payload)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", env.Payload.EventType(), err)
		}
		published = append(published, &PublishedEvent{
			AggregateID:   env.AggregateID,
			AggregateType: env.AggregateType,
			Sequence:      env.Sequence,
			EventType:     env.Payload.EventType(),
			EventVersion:  env.Payload.EventVersion(),
			Payload:       payload,
			Metadata:      env.Metadata,
			Timestamp:     env.Timestamp,
		})
	}

	return p.bus.Publish(ctx, published)
}

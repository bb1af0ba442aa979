package cqrs

import "time"

// EventEnvelope is a DomainEvent as persisted: the payload plus the
// identity and ordering metadata assigned by the event store at commit
// time. Envelopes are immutable once persisted.
//
// Sequence numbers for one aggregate id start at 1 and are gapless and
// duplicate-free; this is the core invariant the EventStore enforces.
type EventEnvelope[E DomainEvent] struct {
	// AggregateID identifies the event stream this envelope belongs to.
	AggregateID string

	// AggregateType is the type name of the owning aggregate.
	AggregateType string

	// Sequence is the 1-based position of the event within its stream.
	Sequence uint64

	// Payload is the domain event itself.
	Payload E

	// Metadata carries caller-supplied context such as causation and
	// correlation ids.
	Metadata map[string]string

	// Timestamp is when the event was committed.
	Timestamp time.Time
}

// Common metadata keys used by the framework and the example domains.
const (
	MetaCausationID   = "causation_id"
	MetaCorrelationID = "correlation_id"
	MetaPrincipalID   = "principal_id"
)

// CopyMetadata returns a copy of a metadata map, so stored envelopes do not
// alias caller maps. A nil map copies to nil.
func CopyMetadata(metadata map[string]string) map[string]string {
	if metadata == nil {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}

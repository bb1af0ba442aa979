package cqrs

import "context"

// EventStore is the persistence port for an aggregate's event history.
//
// Implementations must make Commit atomic per aggregate id: the version
// check and the append happen inside one critical section (or one backend
// compare-and-append), scoped to that id so unrelated aggregates never
// contend. This is the single guarantee preventing lost updates between
// concurrent Execute calls.
type EventStore[E DomainEvent] interface {
	// Load returns the full ordered event history for an aggregate id.
	// An unknown id yields an empty slice, not an error: it denotes a new
	// aggregate.
	Load(ctx context.Context, aggregateID string) ([]EventEnvelope[E], error)

	// Commit atomically verifies that the stream's current version still
	// equals expectedVersion, assigns sequence numbers
	// expectedVersion+1 .. expectedVersion+len(events), and makes the
	// envelopes durable. On version mismatch it fails with ErrConflict and
	// persists nothing: no renumbering, no partial append, no overwrite.
	Commit(ctx context.Context, aggregateID string, expectedVersion uint64, events []E, metadata map[string]string) ([]EventEnvelope[E], error)
}

// EventStreamer is an optional EventStore extension for stores that can
// serve a tail of a stream. The framework uses it for snapshot recovery;
// stores that do not implement it fall back to a full replay.
type EventStreamer[E DomainEvent] interface {
	// LoadFrom returns the events of a stream with Sequence >= fromSequence,
	// in ascending order.
	LoadFrom(ctx context.Context, aggregateID string, fromSequence uint64) ([]EventEnvelope[E], error)
}

// ViewRepository is the persistence port for materialized view state.
//
// Views are derived, idempotently recomputable state, so no conditional
// write is required: last-writer-wins is acceptable as long as events are
// applied in sequence order, which the dispatching query enforces.
type ViewRepository[V any, E DomainEvent] interface {
	// Load returns the view stored under viewID. The second result is false
	// when no view exists yet.
	Load(ctx context.Context, viewID string) (V, bool, error)

	// Save stores the view under viewID, replacing any previous state.
	Save(ctx context.Context, viewID string, view V) error
}

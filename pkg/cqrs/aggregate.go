package cqrs

import "context"

// DomainEvent is an immutable, named, versioned fact produced by an
// aggregate. The version tag identifies the payload schema, not the
// position in the stream; ordering lives on the EventEnvelope.
type DomainEvent interface {
	// EventType returns the type name of the event (e.g., "AccountOpened").
	EventType() string

	// EventVersion returns the schema version of the event payload (e.g., "1.0").
	EventVersion() string
}

// Aggregate is the state machine at the heart of one consistency boundary.
// Implementations are pointer types; a fresh zero-value instance is the
// aggregate's default state.
//
// Handle must be side-effect-free with respect to persistence: it only
// decides which events would occur. It never mutates the aggregate itself;
// the framework derives post-command state by folding the returned events
// through Apply, so state and event history cannot diverge.
//
// Apply is total. An event handed to Apply already passed validation when
// it was produced, so there is no error path.
type Aggregate[C any, E DomainEvent, S any] interface {
	// AggregateType returns the type name of the aggregate (e.g., "Account").
	AggregateType() string

	// Handle validates the command against current state and returns the
	// events that record its effects, or an error rejecting it.
	Handle(ctx context.Context, command C, services S) ([]E, error)

	// Apply transitions the aggregate's state with a single event.
	Apply(event E)
}

// AggregateContext pairs an aggregate's folded state with the last sequence
// number observed while folding. The version is the conditional-append
// token handed to EventStore.Commit; the context itself is never persisted.
type AggregateContext[A any] struct {
	Aggregate A
	Version   uint64
}

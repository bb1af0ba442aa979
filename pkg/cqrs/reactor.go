package cqrs

import "context"

// Reactor coordinates multi-step business processes by reacting to the
// events an aggregate just committed and producing follow-up events for the
// same aggregate, advancing a saga or issuing compensating actions.
//
// Follow-up events are committed by the framework at the post-commit
// version and dispatched to queries like any other events. Because the
// primary commit is already durable when reactors run, a reactor failure is
// reported to the Execute caller as a warning, not an error.
type Reactor[E DomainEvent, S any] interface {
	// React inspects a batch of freshly committed events and returns any
	// follow-up events that should be appended to the same stream.
	React(ctx context.Context, aggregateID string, services S, events []EventEnvelope[E]) ([]E, error)
}

// ReactorFunc adapts a function to the Reactor interface.
type ReactorFunc[E DomainEvent, S any] func(ctx context.Context, aggregateID string, services S, events []EventEnvelope[E]) ([]E, error)

func (f ReactorFunc[E, S]) React(ctx context.Context, aggregateID string, services S, events []EventEnvelope[E]) ([]E, error) {
	return f(ctx, aggregateID, services, events)
}

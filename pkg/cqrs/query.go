package cqrs

import "context"

// Query receives committed events immediately after they are persisted.
//
// Typical queries update materialized views, publish events to a messaging
// service, or trigger follow-up work elsewhere. A query error is reported
// to the Execute caller as a warning; it never rolls back the committed
// events, because the event log is the source of truth and views can be
// rebuilt from it at any time.
type Query[E DomainEvent] interface {
	// Dispatch is called with the committed events of one Execute call, in
	// commit order.
	Dispatch(ctx context.Context, aggregateID string, events []EventEnvelope[E]) error
}

// QueryFunc adapts a function to the Query interface.
type QueryFunc[E DomainEvent] func(ctx context.Context, aggregateID string, events []EventEnvelope[E]) error

func (f QueryFunc[E]) Dispatch(ctx context.Context, aggregateID string, events []EventEnvelope[E]) error {
	return f(ctx, aggregateID, events)
}

// View is a materialized read model updated by a query. Implementations
// are pointer types; a fresh instance from the view factory is the default
// state. Update is total: it folds one committed event into the view.
type View[E DomainEvent] interface {
	Update(env EventEnvelope[E])
}

// GenericQuery maintains one view type in a ViewRepository. For every
// committed event it loads the view (or synthesizes a fresh one), folds the
// event in, and saves the result. Events are applied strictly in sequence
// order per view id, since Update is not commutative in general.
type GenericQuery[V View[E], E DomainEvent] struct {
	repo    ViewRepository[V, E]
	newView func() V
	viewID  func(env EventEnvelope[E]) string
}

// GenericQueryOption configures a GenericQuery.
type GenericQueryOption[V View[E], E DomainEvent] func(*GenericQuery[V, E])

// WithViewID redirects events to a view id other than the default (the
// originating aggregate id).
func WithViewID[V View[E], E DomainEvent](fn func(env EventEnvelope[E]) string) GenericQueryOption[V, E] {
	return func(q *GenericQuery[V, E]) {
		q.viewID = fn
	}
}

// NewGenericQuery creates a query that projects events into views produced
// by newView and persisted in repo.
func NewGenericQuery[V View[E], E DomainEvent](repo ViewRepository[V, E], newView func() V, opts ...GenericQueryOption[V, E]) *GenericQuery[V, E] {
	q := &GenericQuery[V, E]{
		repo:    repo,
		newView: newView,
		viewID: func(env EventEnvelope[E]) string {
			return env.AggregateID
		},
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Dispatch folds each event into its view, in order.
func (q *GenericQuery[V, E]) Dispatch(ctx context.Context, aggregateID string, events []EventEnvelope[E]) error {
	for _, env := range events {
		id := q.viewID(env)

		view, found, err := q.repo.Load(ctx, id)
		if err != nil {
			return NewStoreError("view load", err)
		}
		if !found {
			view = q.newView()
		}

		view.Update(env)

		if err := q.repo.Save(ctx, id, view); err != nil {
			return NewStoreError("view save", err)
		}
	}
	return nil
}

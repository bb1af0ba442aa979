// Package cqrstest is a given/when/then framework for testing aggregate
// logic, with optional event store, query and reactor wiring for verifying
// full dispatch behavior.
//
// For needs explicit type arguments, since the command and event types
// appear only in the aggregate's method set. Domains typically wrap it
// once:
//
//	func forAccount() *cqrstest.TestFramework[*Account, Command, Event, Services] {
//		return cqrstest.For[*Account, Command, Event, Services](NewAccount, DefaultServices())
//	}
//
//	forAccount().
//		Given(&AccountOpened{...}).
//		When(Withdraw{Amount: amount}).
//		Then(t, &MoneyWithdrawn{...})
package cqrstest

import (
	"context"

	"github.com/nigeleke/cqrs/pkg/cqrs"
	"github.com/nigeleke/cqrs/pkg/memstore"
)

// DefaultAggregateID is the stream id used by the executor.
const DefaultAggregateID = "test-aggregate"

// TestFramework accumulates the fixture for one aggregate test: the
// aggregate factory and services, and optionally a store, queries and
// reactors. Without a store, When exercises Handle in isolation; with one,
// When drives a full Framework.Execute including commit and dispatch.
type TestFramework[A cqrs.Aggregate[C, E, S], C any, E cqrs.DomainEvent, S any] struct {
	newAggregate func() A
	services     S
	store        cqrs.EventStore[E]
	queries      []cqrs.Query[E]
	reactors     []cqrs.Reactor[E, S]
	aggregateID  string
}

// For creates a test framework for one aggregate type.
func For[A cqrs.Aggregate[C, E, S], C any, E cqrs.DomainEvent, S any](newAggregate func() A, services S) *TestFramework[A, C, E, S] {
	return &TestFramework[A, C, E, S]{
		newAggregate: newAggregate,
		services:     services,
		aggregateID:  DefaultAggregateID,
	}
}

// UsingStore runs the test through a full framework backed by store.
func (f *TestFramework[A, C, E, S]) UsingStore(store cqrs.EventStore[E]) *TestFramework[A, C, E, S] {
	f.store = store
	return f
}

// UsingMemStore runs the test through a full framework backed by a fresh
// in-memory store.
func (f *TestFramework[A, C, E, S]) UsingMemStore() *TestFramework[A, C, E, S] {
	return f.UsingStore(memstore.NewEventStore[E](f.newAggregate().AggregateType()))
}

// OnAggregate overrides the aggregate id used by the executor.
func (f *TestFramework[A, C, E, S]) OnAggregate(id string) *TestFramework[A, C, E, S] {
	f.aggregateID = id
	return f
}

// AndQuery registers a query; requires a store.
func (f *TestFramework[A, C, E, S]) AndQuery(query cqrs.Query[E]) *TestFramework[A, C, E, S] {
	f.queries = append(f.queries, query)
	return f
}

// AndReactor registers a reactor; requires a store.
func (f *TestFramework[A, C, E, S]) AndReactor(reactor cqrs.Reactor[E, S]) *TestFramework[A, C, E, S] {
	f.reactors = append(f.reactors, reactor)
	return f
}

// GivenNoPriorEvents starts the scenario with an empty history.
func (f *TestFramework[A, C, E, S]) GivenNoPriorEvents() *Executor[A, C, E, S] {
	return f.Given()
}

// Given starts the scenario with the provided prior events.
func (f *TestFramework[A, C, E, S]) Given(events ...E) *Executor[A, C, E, S] {
	return &Executor[A, C, E, S]{framework: f, given: events}
}

// Executor holds the preconditions of one scenario.
type Executor[A cqrs.Aggregate[C, E, S], C any, E cqrs.DomainEvent, S any] struct {
	framework *TestFramework[A, C, E, S]
	given     []E
}

// When runs the command and captures the outcome for validation.
func (e *Executor[A, C, E, S]) When(command C) *Validation[E] {
	f := e.framework
	ctx := context.Background()

	if f.store == nil {
		aggregate := f.newAggregate()
		for _, event := range e.given {
			aggregate.Apply(event)
		}
		events, err := aggregate.Handle(ctx, command, f.services)
		return &Validation[E]{events: events, err: err}
	}

	if len(e.given) > 0 {
		if _, err := f.store.Commit(ctx, f.aggregateID, 0, e.given, nil); err != nil {
			return &Validation[E]{err: err}
		}
	}

	opts := make([]cqrs.Option[A, C, E, S], 0, len(f.queries)+len(f.reactors))
	for _, q := range f.queries {
		opts = append(opts, cqrs.WithQuery[A, C, E, S](q))
	}
	for _, r := range f.reactors {
		opts = append(opts, cqrs.WithReactor[A, C, E, S](r))
	}

	framework := cqrs.New(f.store, f.newAggregate, f.services, opts...)
	result, err := framework.Execute(ctx, f.aggregateID, command)
	if err != nil {
		return &Validation[E]{err: err}
	}

	events := make([]E, 0, len(result.Events))
	for _, env := range result.Events {
		events = append(events, env.Payload)
	}
	return &Validation[E]{events: events, result: result, err: nil}
}

package cqrs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CommandResult is the outcome of a successful Execute call: the events
// committed for the command (and any reactor follow-ups), plus warnings
// from the projection and reactor stage. Warnings never indicate a failed
// commit; the events are durable.
type CommandResult[E DomainEvent] struct {
	Events   []EventEnvelope[E]
	Warnings []error
}

// Executor is the public entry point contract of the framework. It exists
// so cross-cutting wrappers (instrumentation, logging) can decorate a
// framework without knowing its aggregate type parameters.
type Executor[C any, E DomainEvent] interface {
	Execute(ctx context.Context, aggregateID string, command C) (*CommandResult[E], error)
	ExecuteWithMetadata(ctx context.Context, aggregateID string, command C, metadata map[string]string) (*CommandResult[E], error)
}

// Framework sequences one command through load, replay, handle, commit and
// query dispatch. It owns no aggregate cache: state is rebuilt from the
// event store on every call, so a load always reflects all events committed
// before the call began.
//
// Execute calls for different aggregate ids may run concurrently with no
// coordination; the only mutual exclusion in the system is the
// version-check-and-append step inside the event store.
type Framework[A Aggregate[C, E, S], C any, E DomainEvent, S any] struct {
	store         EventStore[E]
	newAggregate  func() A
	services      S
	queries       []Query[E]
	reactors      []Reactor[E, S]
	snapshots     SnapshotStore
	snapshotEvery uint64
	aggregateType string
}

// Option configures a Framework.
type Option[A Aggregate[C, E, S], C any, E DomainEvent, S any] func(*Framework[A, C, E, S])

// WithQuery registers a query. Committed events are dispatched to queries
// in registration order.
func WithQuery[A Aggregate[C, E, S], C any, E DomainEvent, S any](query Query[E]) Option[A, C, E, S] {
	return func(f *Framework[A, C, E, S]) {
		f.queries = append(f.queries, query)
	}
}

// WithReactor registers a reactor that may produce follow-up events after
// a commit.
func WithReactor[A Aggregate[C, E, S], C any, E DomainEvent, S any](reactor Reactor[E, S]) Option[A, C, E, S] {
	return func(f *Framework[A, C, E, S]) {
		f.reactors = append(f.reactors, reactor)
	}
}

// WithSnapshots enables periodic state snapshots as a cache in front of
// Load. A snapshot is taken whenever the stream version crosses a multiple
// of every. The commit contract is unaffected.
func WithSnapshots[A Aggregate[C, E, S], C any, E DomainEvent, S any](store SnapshotStore, every uint64) Option[A, C, E, S] {
	return func(f *Framework[A, C, E, S]) {
		if every == 0 {
			every = 1
		}
		f.snapshots = store
		f.snapshotEvery = every
	}
}

// New creates a framework for one aggregate type. newAggregate must return
// a fresh instance in its default state; services is the opaque capability
// bundle handed through to Aggregate.Handle, never interpreted here.
func New[A Aggregate[C, E, S], C any, E DomainEvent, S any](store EventStore[E], newAggregate func() A, services S, opts ...Option[A, C, E, S]) *Framework[A, C, E, S] {
	f := &Framework[A, C, E, S]{
		store:         store,
		newAggregate:  newAggregate,
		services:      services,
		aggregateType: newAggregate().AggregateType(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Execute processes a command against the aggregate instance identified by
// aggregateID. See ExecuteWithMetadata.
func (f *Framework[A, C, E, S]) Execute(ctx context.Context, aggregateID string, command C) (*CommandResult[E], error) {
	return f.ExecuteWithMetadata(ctx, aggregateID, command, nil)
}

// ExecuteWithMetadata replays the aggregate's history, lets it handle the
// command, commits the produced events conditioned on the version observed
// at load time, and dispatches the committed events to every registered
// query.
//
// Error taxonomy: an *AggregateError means the command was rejected and
// nothing changed; an error matching ErrConflict means another commit won
// the race and the caller may retry against fresh state; a *StoreError
// means the event log backend failed. Query and reactor failures after the
// commit are returned as CommandResult.Warnings on a nil error.
func (f *Framework[A, C, E, S]) ExecuteWithMetadata(ctx context.Context, aggregateID string, command C, metadata map[string]string) (*CommandResult[E], error) {
	aggregate, version, err := f.loadContext(ctx, aggregateID)
	if err != nil {
		return nil, err
	}

	newEvents, err := aggregate.Handle(ctx, command, f.services)
	if err != nil {
		return nil, &AggregateError{Err: err}
	}

	// No-op commands are allowed and cheap: nothing touches the store.
	if len(newEvents) == 0 {
		return &CommandResult[E]{}, nil
	}

	committed, err := f.store.Commit(ctx, aggregateID, version, newEvents, metadata)
	if err != nil {
		if isConflict(err) {
			return nil, err
		}
		return nil, NewStoreError("commit", err)
	}

	result := &CommandResult[E]{Events: committed}
	lastVersion := f.foldCommitted(aggregate, committed, version)

	// Reactors see the primary batch only; their output is committed at the
	// post-commit version and dispatched with the rest, but is not fed back
	// into other reactors.
	for _, reactor := range f.reactors {
		followUps, err := reactor.React(ctx, aggregateID, f.services, committed)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Errorf("reactor: %w", err))
			continue
		}
		if len(followUps) == 0 {
			continue
		}
		extra, err := f.store.Commit(ctx, aggregateID, lastVersion, followUps, metadata)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Errorf("reactor commit: %w", err))
			continue
		}
		result.Events = append(result.Events, extra...)
		lastVersion = f.foldCommitted(aggregate, extra, lastVersion)
	}

	for _, query := range f.queries {
		if err := query.Dispatch(ctx, aggregateID, result.Events); err != nil {
			result.Warnings = append(result.Warnings, fmt.Errorf("query dispatch: %w", err))
		}
	}

	if f.snapshots != nil && lastVersion/f.snapshotEvery != version/f.snapshotEvery {
		if err := f.saveSnapshot(aggregateID, aggregate, lastVersion); err != nil {
			result.Warnings = append(result.Warnings, fmt.Errorf("snapshot: %w", err))
		}
	}

	return result, nil
}

// loadContext rebuilds current state and version for one aggregate id.
// Starting from the default state (or the latest snapshot, when enabled),
// it folds every stored event in strictly increasing sequence order; the
// version after replay is the last sequence folded, 0 for a new aggregate.
func (f *Framework[A, C, E, S]) loadContext(ctx context.Context, aggregateID string) (A, uint64, error) {
	aggregate := f.newAggregate()
	var version uint64

	if f.snapshots != nil {
		// A failed or stale snapshot only costs a longer replay, so every
		// error path here degrades to folding the full stream.
		if snap, err := f.snapshots.Load(f.aggregateType, aggregateID); err == nil && snap != nil {
			if json.Unmarshal(snap.State, aggregate) == nil {
				version = snap.Version
			} else {
				// Unmarshal may have written some fields before failing.
				// Replay must fold onto untouched default state.
				aggregate = f.newAggregate()
			}
		}
	}

	var history []EventEnvelope[E]
	var err error
	if version > 0 {
		if streamer, ok := f.store.(EventStreamer[E]); ok {
			history, err = streamer.LoadFrom(ctx, aggregateID, version+1)
		} else {
			history, err = f.store.Load(ctx, aggregateID)
		}
	} else {
		history, err = f.store.Load(ctx, aggregateID)
	}
	if err != nil {
		var zero A
		return zero, 0, NewStoreError("load", err)
	}

	for _, env := range history {
		if env.Sequence <= version {
			continue
		}
		aggregate.Apply(env.Payload)
		version = env.Sequence
	}

	return aggregate, version, nil
}

// foldCommitted applies freshly committed envelopes to the aggregate so
// post-command state is derived from the events themselves, and returns the
// new version.
func (f *Framework[A, C, E, S]) foldCommitted(aggregate A, committed []EventEnvelope[E], version uint64) uint64 {
	for _, env := range committed {
		aggregate.Apply(env.Payload)
		version = env.Sequence
	}
	return version
}

func (f *Framework[A, C, E, S]) saveSnapshot(aggregateID string, aggregate A, version uint64) error {
	state, err := json.Marshal(aggregate)
	if err != nil {
		return err
	}
	return f.snapshots.Save(&Snapshot{
		AggregateID:   aggregateID,
		AggregateType: f.aggregateType,
		Version:       version,
		State:         state,
		TakenAt:       time.Now(),
	})
}

func isConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

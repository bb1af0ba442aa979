// Package memstore provides in-memory reference implementations of the
// cqrs persistence ports. They are the fixture of choice for tests and the
// reference behavior for the conflict-detection contract durable backends
// must match.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nigeleke/cqrs/pkg/cqrs"
)

// EventStore keeps one append-only envelope slice per aggregate id.
//
// Each stream has its own lock, held only for the duration of the
// version-check-and-append step, so commits to unrelated aggregate ids
// never contend.
type EventStore[E cqrs.DomainEvent] struct {
	aggregateType string

	mu      sync.RWMutex
	streams map[string]*stream[E]
}

type stream[E cqrs.DomainEvent] struct {
	mu   sync.Mutex
	envs []cqrs.EventEnvelope[E]
}

// NewEventStore creates an empty store for one aggregate type.
func NewEventStore[E cqrs.DomainEvent](aggregateType string) *EventStore[E] {
	return &EventStore[E]{
		aggregateType: aggregateType,
		streams:       make(map[string]*stream[E]),
	}
}

// Load returns a copy of the stream for aggregateID, empty for an unknown
// id.
func (s *EventStore[E]) Load(ctx context.Context, aggregateID string) ([]cqrs.EventEnvelope[E], error) {
	return s.LoadFrom(ctx, aggregateID, 1)
}

// LoadFrom returns the events with Sequence >= fromSequence.
func (s *EventStore[E]) LoadFrom(ctx context.Context, aggregateID string, fromSequence uint64) ([]cqrs.EventEnvelope[E], error) {
	s.mu.RLock()
	st, ok := s.streams[aggregateID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]cqrs.EventEnvelope[E], 0, len(st.envs))
	for _, env := range st.envs {
		if env.Sequence >= fromSequence {
			out = append(out, env)
		}
	}
	return out, nil
}

// Commit verifies the stream version and appends the events atomically,
// assigning sequence numbers expectedVersion+1 onward. On a version
// mismatch it fails with cqrs.ErrConflict and persists nothing.
func (s *EventStore[E]) Commit(ctx context.Context, aggregateID string, expectedVersion uint64, events []E, metadata map[string]string) ([]cqrs.EventEnvelope[E], error) {
	if len(events) == 0 {
		return nil, nil
	}

	st := s.stream(aggregateID)

	st.mu.Lock()
	defer st.mu.Unlock()

	current := uint64(len(st.envs))
	if current != expectedVersion {
		return nil, fmt.Errorf("%w: stream %q is at version %d, expected %d",
			cqrs.ErrConflict, aggregateID, current, expectedVersion)
	}

	now := time.Now()
	committed := make([]cqrs.EventEnvelope[E], 0, len(events))
	for i, event := range events {
		committed = append(committed, cqrs.EventEnvelope[E]{
			AggregateID:   aggregateID,
			AggregateType: s.aggregateType,
			Sequence:      expectedVersion + uint64(i) + 1,
			Payload:       event,
			Metadata:      cqrs.CopyMetadata(metadata),
			Timestamp:     now,
		})
	}

	st.envs = append(st.envs, committed...)

	out := make([]cqrs.EventEnvelope[E], len(committed))
	copy(out, committed)
	return out, nil
}

// Version returns the current version of a stream, 0 for an unknown id.
func (s *EventStore[E]) Version(aggregateID string) uint64 {
	s.mu.RLock()
	st, ok := s.streams[aggregateID]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return uint64(len(st.envs))
}

func (s *EventStore[E]) stream(aggregateID string) *stream[E] {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.streams[aggregateID]
	if !ok {
		st = &stream[E]{}
		s.streams[aggregateID] = st
	}
	return st
}

package cqrs

import "time"

// Snapshot is a periodic materialization of aggregate state, used as a
// cache in front of EventStore.Load. It never changes the commit contract:
// version and sequence invariants are exactly those of the raw stream, and
// a stale or missing snapshot only costs a longer replay.
type Snapshot struct {
	AggregateID   string
	AggregateType string

	// Version is the sequence number of the last event folded into State.
	Version uint64

	// State is the serialized aggregate state at Version.
	State []byte

	TakenAt time.Time
}

// SnapshotStore persists aggregate snapshots, keyed by
// (aggregate type, aggregate id).
type SnapshotStore interface {
	// Load returns the latest snapshot for an aggregate, or nil when none
	// exists.
	Load(aggregateType, aggregateID string) (*Snapshot, error)

	// Save stores a snapshot, replacing any previous one for the same key.
	Save(snapshot *Snapshot) error
}

package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/nigeleke/cqrs/pkg/cqrs"
)

// SnapshotStore is a sqlite-backed cqrs.SnapshotStore. One record per
// (aggregate type, aggregate id), replaced on every save.
type SnapshotStore struct {
	db *DB
}

// NewSnapshotStore creates a snapshot store over db.
func NewSnapshotStore(db *DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) Load(aggregateType, aggregateID string) (*cqrs.Snapshot, error) {
	var (
		version uint64
		state   []byte
		takenAt int64
	)
	err := s.db.Handle().QueryRow(`
		SELECT version, state, taken_at FROM snapshots
		WHERE aggregate_type = ? AND aggregate_id = ?
	`, aggregateType, aggregateID).Scan(&version, &state, &takenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}

	return &cqrs.Snapshot{
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       version,
		State:         state,
		TakenAt:       time.Unix(takenAt, 0),
	}, nil
}

func (s *SnapshotStore) Save(snapshot *cqrs.Snapshot) error {
	_, err := s.db.Handle().Exec(`
		INSERT INTO snapshots (aggregate_type, aggregate_id, version, state, taken_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (aggregate_type, aggregate_id) DO UPDATE SET
			version = excluded.version,
			state = excluded.state,
			taken_at = excluded.taken_at
	`, snapshot.AggregateType, snapshot.AggregateID, snapshot.Version, snapshot.State, snapshot.TakenAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

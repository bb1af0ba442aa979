package memstore

import (
	"sync"

	"github.com/nigeleke/cqrs/pkg/cqrs"
)

// SnapshotStore is a map-backed cqrs.SnapshotStore.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]*cqrs.Snapshot
}

// NewSnapshotStore creates an empty snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[string]*cqrs.Snapshot)}
}

func (s *SnapshotStore) Load(aggregateType, aggregateID string) (*cqrs.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshots[aggregateType+"/"+aggregateID], nil
}

func (s *SnapshotStore) Save(snapshot *cqrs.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snapshot.AggregateType+"/"+snapshot.AggregateID] = snapshot
	return nil
}

package memstore

import (
	"context"
	"sync"

	"github.com/nigeleke/cqrs/pkg/cqrs"
)

// ViewRepository is a map-backed cqrs.ViewRepository. Saves are
// last-writer-wins; see the port contract for why that is sufficient.
//
// The stored instance is shared with callers, matching the pointer
// semantics of cqrs.View implementations.
type ViewRepository[V any, E cqrs.DomainEvent] struct {
	mu    sync.RWMutex
	views map[string]V
}

// NewViewRepository creates an empty repository.
func NewViewRepository[V any, E cqrs.DomainEvent]() *ViewRepository[V, E] {
	return &ViewRepository[V, E]{views: make(map[string]V)}
}

func (r *ViewRepository[V, E]) Load(ctx context.Context, viewID string) (V, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	view, ok := r.views[viewID]
	return view, ok, nil
}

func (r *ViewRepository[V, E]) Save(ctx context.Context, viewID string, view V) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[viewID] = view
	return nil
}

// Delete removes a view, typically ahead of a rebuild.
func (r *ViewRepository[V, E]) Delete(viewID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.views, viewID)
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nigeleke/cqrs/pkg/cqrs"
)

// ViewStore is a sqlite-backed cqrs.ViewRepository. One record per
// (view name, view id); state is stored as JSON and upserted,
// last-writer-wins.
type ViewStore[V any, E cqrs.DomainEvent] struct {
	db       *DB
	viewName string
	newView  func() V
}

// NewViewStore creates a repository for one view type. newView produces
// the target for unmarshalling stored state.
func NewViewStore[V any, E cqrs.DomainEvent](db *DB, viewName string, newView func() V) *ViewStore[V, E] {
	return &ViewStore[V, E]{db: db, viewName: viewName, newView: newView}
}

func (s *ViewStore[V, E]) Load(ctx context.Context, viewID string) (V, bool, error) {
	var zero V

	var state string
	err := s.db.Handle().QueryRowContext(ctx, `
		SELECT state FROM views WHERE view_name = ? AND view_id = ?
	`, s.viewName, viewID).Scan(&state)
	if err == sql.ErrNoRows {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("query view: %w", err)
	}

	view := s.newView()
	if err := json.Unmarshal([]byte(state), view); err != nil {
		return zero, false, fmt.Errorf("decode view %s/%s: %w", s.viewName, viewID, err)
	}
	return view, true, nil
}

func (s *ViewStore[V, E]) Save(ctx context.Context, viewID string, view V) error {
	state, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("encode view %s/%s: %w", s.viewName, viewID, err)
	}

	_, err = s.db.Handle().ExecContext(ctx, `
		INSERT INTO views (view_name, view_id, state, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (view_name, view_id) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at
	`, s.viewName, viewID, string(state), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("upsert view: %w", err)
	}
	return nil
}

// Delete removes one view record, typically ahead of a rebuild.
func (s *ViewStore[V, E]) Delete(ctx context.Context, viewID string) error {
	_, err := s.db.Handle().ExecContext(ctx, `
		DELETE FROM views WHERE view_name = ? AND view_id = ?
	`, s.viewName, viewID)
	return err
}

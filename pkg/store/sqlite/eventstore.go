package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nigeleke/cqrs/pkg/cqrs"
)

// EventStore is a sqlite-backed cqrs.EventStore for one aggregate type.
// Event payloads cross the persistence boundary through the configured
// codec.
//
// Commit re-checks the stream's current maximum sequence inside the write
// transaction, so the version check and the append are atomic. Streams are
// keyed by (aggregate_type, aggregate_id), matching Load; the
// (aggregate_type, aggregate_id, sequence) primary key is a second line of
// defense against duplicates.
type EventStore[E cqrs.DomainEvent] struct {
	db            *DB
	aggregateType string
	codec         cqrs.EventCodec[E]

	// sqlite allows a single writer; serializing commits here avoids
	// SQLITE_BUSY churn under contention.
	mu sync.Mutex
}

// NewEventStore creates an event store over db for one aggregate type.
func NewEventStore[E cqrs.DomainEvent](db *DB, aggregateType string, codec cqrs.EventCodec[E]) *EventStore[E] {
	return &EventStore[E]{db: db, aggregateType: aggregateType, codec: codec}
}

// Load returns the full history for aggregateID, empty for an unknown id.
func (s *EventStore[E]) Load(ctx context.Context, aggregateID string) ([]cqrs.EventEnvelope[E], error) {
	return s.LoadFrom(ctx, aggregateID, 1)
}

// LoadFrom returns the events with sequence >= fromSequence in ascending
// order.
func (s *EventStore[E]) LoadFrom(ctx context.Context, aggregateID string, fromSequence uint64) ([]cqrs.EventEnvelope[E], error) {
	rows, err := s.db.Handle().QueryContext(ctx, `
		SELECT sequence, event_type, event_version, payload, metadata, timestamp
		FROM events
		WHERE aggregate_id = ? AND aggregate_type = ? AND sequence >= ?
		ORDER BY sequence ASC
	`, aggregateID, s.aggregateType, fromSequence)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var envelopes []cqrs.EventEnvelope[E]
	for rows.Next() {
		var (
			sequence     uint64
			eventType    string
			eventVersion string
			payload      []byte
			metadataJSON string
			timestamp    int64
		)
		if err := rows.Scan(&sequence, &eventType, &eventVersion, &payload, &metadataJSON, &timestamp); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}

		event, err := s.codec.Unmarshal(eventType, eventVersion, payload)
		if err != nil {
			return nil, fmt.Errorf("decode event at sequence %d: %w", sequence, err)
		}

		var metadata map[string]string
		if metadataJSON != "" && metadataJSON != "{}" {
			if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
				return nil, fmt.Errorf("decode metadata at sequence %d: %w", sequence, err)
			}
		}

		envelopes = append(envelopes, cqrs.EventEnvelope[E]{
			AggregateID:   aggregateID,
			AggregateType: s.aggregateType,
			Sequence:      sequence,
			Payload:       event,
			Metadata:      metadata,
			Timestamp:     time.Unix(timestamp, 0),
		})
	}
	return envelopes, rows.Err()
}

// Commit atomically verifies expectedVersion against the stream's current
// maximum sequence and appends the events. On mismatch it fails with
// cqrs.ErrConflict and persists nothing.
func (s *EventStore[E]) Commit(ctx context.Context, aggregateID string, expectedVersion uint64, events []E, metadata map[string]string) ([]cqrs.EventEnvelope[E], error) {
	if len(events) == 0 {
		return nil, nil
	}

	metadataJSON := "{}"
	if len(metadata) > 0 {
		data, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		metadataJSON = string(data)
	}

	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Handle().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current uint64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sequence), 0) FROM events WHERE aggregate_id = ? AND aggregate_type = ?
	`, aggregateID, s.aggregateType).Scan(&current)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("query current version: %w", err)
	}
	if current != expectedVersion {
		return nil, fmt.Errorf("%w: stream %q is at version %d, expected %d",
			cqrs.ErrConflict, aggregateID, current, expectedVersion)
	}

	committed := make([]cqrs.EventEnvelope[E], 0, len(events))
	for i, event := range events {
		payload, err := s.codec.Marshal(event)
		if err != nil {
			return nil, fmt.Errorf("encode event %s: %w", event.EventType(), err)
		}

		sequence := expectedVersion + uint64(i) + 1
		_, err = tx.ExecContext(ctx, `
			INSERT INTO events (aggregate_type, aggregate_id, sequence, event_type, event_version, payload, metadata, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, s.aggregateType, aggregateID, sequence, event.EventType(), event.EventVersion(), payload, metadataJSON, now.Unix())
		if err != nil {
			return nil, fmt.Errorf("insert event at sequence %d: %w", sequence, err)
		}

		committed = append(committed, cqrs.EventEnvelope[E]{
			AggregateID:   aggregateID,
			AggregateType: s.aggregateType,
			Sequence:      sequence,
			Payload:       event,
			Metadata:      cqrs.CopyMetadata(metadata),
			Timestamp:     time.Unix(now.Unix(), 0),
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return committed, nil
}

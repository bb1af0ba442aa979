package cqrs

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict is returned when the optimistic version check failed:
	// another commit for the same aggregate id landed between load and
	// commit. Recoverable by re-invoking Execute, which re-reads fresh
	// history. Never indicates corruption.
	ErrConflict = errors.New("concurrency conflict: aggregate version mismatch")
)

// AggregateError reports a command rejected by business logic. Nothing was
// persisted; the caller may choose a different command or abort.
type AggregateError struct {
	Err error
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("command rejected: %v", e.Err)
}

func (e *AggregateError) Unwrap() error { return e.Err }

// StoreError reports a backend I/O failure. Op names the port operation
// that failed ("load", "commit", "view load", "view save").
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("event store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError wraps a backend failure for the given port operation.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

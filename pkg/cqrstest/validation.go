package cqrstest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nigeleke/cqrs/pkg/cqrs"
)

// Validation captures the outcome of a When step.
type Validation[E cqrs.DomainEvent] struct {
	events []E
	result *cqrs.CommandResult[E]
	err    error
}

// Then asserts the command succeeded and produced exactly the expected
// events, in order.
func (v *Validation[E]) Then(t *testing.T, expected ...E) {
	t.Helper()
	require.NoError(t, v.err)
	require.Equal(t, expected, v.events)
}

// ThenNoEvents asserts the command succeeded as a no-op.
func (v *Validation[E]) ThenNoEvents(t *testing.T) {
	t.Helper()
	require.NoError(t, v.err)
	require.Empty(t, v.events)
}

// ThenError asserts the command failed with an error matching target.
func (v *Validation[E]) ThenError(t *testing.T, target error) {
	t.Helper()
	require.ErrorIs(t, v.err, target)
}

// Events returns the produced events for custom assertions.
func (v *Validation[E]) Events() []E { return v.events }

// Result returns the full command result when a store was used, nil
// otherwise.
func (v *Validation[E]) Result() *cqrs.CommandResult[E] { return v.result }

// Err returns the raw error.
func (v *Validation[E]) Err() error { return v.err }

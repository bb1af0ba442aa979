package memstore_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nigeleke/cqrs/pkg/cqrs"
	"github.com/nigeleke/cqrs/pkg/memstore"
)

type noteEvent struct {
	Text string `json:"text"`
}

func (*noteEvent) EventType() string    { return "NoteAdded" }
func (*noteEvent) EventVersion() string { return "1.0" }

func note(text string) *noteEvent { return &noteEvent{Text: text} }

func TestCommitAssignsGaplessSequences(t *testing.T) {
	store := memstore.NewEventStore[*noteEvent]("Note")
	ctx := context.Background()

	first, err := store.Commit(ctx, "n-1", 0, []*noteEvent{note("a"), note("b")}, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1), first[0].Sequence)
	require.Equal(t, uint64(2), first[1].Sequence)

	second, err := store.Commit(ctx, "n-1", 2, []*noteEvent{note("c")}, map[string]string{"actor": "tester"})
	require.NoError(t, err)
	require.Equal(t, uint64(3), second[0].Sequence)
	require.Equal(t, "tester", second[0].Metadata["actor"])

	history, err := store.Load(ctx, "n-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, env := range history {
		require.Equal(t, uint64(i+1), env.Sequence)
		require.Equal(t, "Note", env.AggregateType)
	}
}

func TestCommitVersionMismatchPersistsNothing(t *testing.T) {
	store := memstore.NewEventStore[*noteEvent]("Note")
	ctx := context.Background()

	_, err := store.Commit(ctx, "n-1", 0, []*noteEvent{note("a")}, nil)
	require.NoError(t, err)

	cases := []struct {
		name     string
		expected uint64
	}{
		{"stale version", 0},
		{"future version", 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.Commit(ctx, "n-1", tc.expected, []*noteEvent{note("x")}, nil)
			require.ErrorIs(t, err, cqrs.ErrConflict)
		})
	}

	require.Equal(t, uint64(1), store.Version("n-1"))
}

func TestConcurrentCommitsExactlyOneWinsPerRound(t *testing.T) {
	store := memstore.NewEventStore[*noteEvent]("Note")
	ctx := context.Background()

	const writers = 16
	var wg sync.WaitGroup
	results := make([]error, writers)

	// All writers race to append at version 0; the store must admit
	// exactly one.
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = store.Commit(ctx, "n-1", 0, []*noteEvent{note(fmt.Sprintf("w%d", i))}, nil)
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, cqrs.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, writers-1, conflicts)
	require.Equal(t, uint64(1), store.Version("n-1"))
}

func TestStreamsAreIndependent(t *testing.T) {
	store := memstore.NewEventStore[*noteEvent]("Note")
	ctx := context.Background()

	const streams = 8
	var wg sync.WaitGroup
	errs := make([]error, streams)
	for i := 0; i < streams; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("n-%d", i)
			for seq := uint64(0); seq < 10; seq++ {
				if _, err := store.Commit(ctx, id, seq, []*noteEvent{note("x")}, nil); err != nil {
					errs[i] = err
					return
				}
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoErrorf(t, err, "stream %d", i)
	}

	for i := 0; i < streams; i++ {
		require.Equal(t, uint64(10), store.Version(fmt.Sprintf("n-%d", i)))
	}
}

func TestLoadFromSkipsPrefix(t *testing.T) {
	store := memstore.NewEventStore[*noteEvent]("Note")
	ctx := context.Background()

	_, err := store.Commit(ctx, "n-1", 0, []*noteEvent{note("a"), note("b"), note("c"), note("d")}, nil)
	require.NoError(t, err)

	tail, err := store.LoadFrom(ctx, "n-1", 3)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	require.Equal(t, uint64(3), tail[0].Sequence)
	require.Equal(t, uint64(4), tail[1].Sequence)
}

func TestLoadUnknownStreamIsEmpty(t *testing.T) {
	store := memstore.NewEventStore[*noteEvent]("Note")

	history, err := store.Load(context.Background(), "missing")
	require.NoError(t, err)
	require.Empty(t, history)
	require.Equal(t, uint64(0), store.Version("missing"))
}

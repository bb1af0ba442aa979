package idgen_test

import (
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/nigeleke/cqrs/pkg/idgen"
)

func TestSortableIDsAreValidAndOrdered(t *testing.T) {
	ids := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		id := idgen.MustGenerateSortableID()
		_, err := ulid.Parse(id)
		require.NoError(t, err)
		ids = append(ids, id)
		time.Sleep(2 * time.Millisecond)
	}

	require.True(t, sort.StringsAreSorted(ids), "ids generated over time must sort chronologically")
}

func TestSortableIDsAreUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := idgen.MustGenerateSortableID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestCommandIDsAreUUIDs(t *testing.T) {
	a := idgen.NewCommandID()
	b := idgen.NewCommandID()

	_, err := uuid.Parse(a)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

// Package idgen generates identifiers for command and event metadata.
package idgen

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// MustGenerateSortableID returns a ULID: lexicographically sortable by
// creation time, suitable for correlation ids that should order in logs.
func MustGenerateSortableID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	ms := ulid.Timestamp(time.Now())
	id, err := ulid.New(ms, entropy)
	if err != nil {
		panic(err)
	}
	return id.String()
}

// NewCommandID returns a random UUID for command identity.
func NewCommandID() string {
	return uuid.NewString()
}

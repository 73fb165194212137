// Package uuid provides UUID generation and test utilities.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// IDers generate identifiers.
type IDer interface {
	ID() string
}

// UUID is an ID generator utilizing a UUID.
type UUID struct{}

// NewUUID creates a new UUID ID generator.
func NewUUID() *UUID {
	return &UUID{}
}

// ID generates a new UUID ID.
func (u *UUID) ID() string {
	return uuid.NewString()
}

// SequentialIDs is an ID generator that hands out the provided IDs in order.
// Running past the provided IDs panics. Intended for tests that want to
// know exactly how many IDs were generated.
type SequentialIDs struct {
	ids []string
	i   int
}

// NewSequentialIDs creates a new sequential ID generator.
func NewSequentialIDs(ids ...string) *SequentialIDs {
	return &SequentialIDs{ids: ids}
}

// ID returns the next ID.
func (s *SequentialIDs) ID() string {
	if s.i >= len(s.ids) {
		panic(fmt.Sprintf("sequential IDs exhausted after %d", len(s.ids)))
	}
	id := s.ids[s.i]
	s.i++
	return id
}

// Package id provides UUIDv7 generation for all engine entities.
// UUIDv7 is time-ordered, so (date, id) gives a stable insertion order
// for ledger lines and batches received on the same day.
package id

import (
	"bytes"

	"github.com/google/uuid"
)

// ID is a type alias for UUID, used across all entities.
type ID = uuid.UUID

// New generates a new UUIDv7 (time-ordered UUID).
// google/uuid keeps V7 values monotonic within the process.
func New() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to V4 if V7 fails (should never happen)
		return uuid.New()
	}
	return id
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse converts string to ID, panics on error.
// Use only for constants and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// Nil returns zero-value UUID.
func Nil() ID {
	return uuid.Nil
}

// IsNil checks if ID is zero-value.
func IsNil(id ID) bool {
	return id == uuid.Nil
}

// Compare orders IDs bytewise, matching PostgreSQL uuid ordering.
func Compare(a, b ID) int {
	return bytes.Compare(a[:], b[:])
}

// Ptr returns a pointer to a copy of id.
func Ptr(id ID) *ID {
	return &id
}

// Equal compares two optional IDs.
func Equal(a, b *ID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

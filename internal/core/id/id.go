// Package id generates identifiers for ledger records.
// Lots and movements get UUIDv7 so that their natural order follows creation time.
package id

import (
	"github.com/google/uuid"
)

// ID identifies a lot or a movement.
type ID = uuid.UUID

// New returns a UUIDv7, falling back to v4 if the clock source fails.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// IsNil checks if ID is zero-value.
func IsNil(v ID) bool {
	return v == uuid.Nil
}

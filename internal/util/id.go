// Package util provides utility functions for IDRO.
package util

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// NewID generates a new UUIDv7 identifier.
// UUIDv7 provides time-ordered identifiers for better database index locality.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Entropy exhaustion; a random v4 id is still unique.
		return uuid.New().String()
	}
	return id.String()
}

// DeterministicID generates a reproducible ID for the demo dataset.
// Records created through the API use NewID.
func DeterministicID(seed int64) string {
	var id uuid.UUID

	binary.BigEndian.PutUint64(id[0:8], uint64(seed))
	binary.BigEndian.PutUint64(id[8:16], uint64(seed*31))

	// Set version 4 and variant
	id[6] = (id[6] & 0x0F) | 0x40
	id[8] = (id[8] & 0x3F) | 0x80

	return id.String()
}

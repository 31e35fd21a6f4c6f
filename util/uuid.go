package util

import "github.com/google/uuid"

// NewUUID returns a time-ordered v7 id, falling back to a random v4 one
// when v7 generation fails.
func NewUUID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

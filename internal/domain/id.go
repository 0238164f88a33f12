package domain

import (
	"github.com/google/uuid"
)

// NewID generates a UUIDv7 string, used to name data artifacts.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

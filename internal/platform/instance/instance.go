// Package instance identifies the running process among its peers.
package instance

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is generated once at startup and passed to every component that needs
// to recognise its own relay traffic. It is never persisted.
type ID string

// New draws a random (version 4) UUID from crypto/rand.
func New() (ID, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate instance id: %w", err)
	}
	return ID(u.String()), nil
}

func (id ID) String() string { return string(id) }

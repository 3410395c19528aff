// Package uuid generates opaque account identifiers.
package uuid

import "github.com/google/uuid"

// New returns a random UUID string.
func New() string {
	return uuid.NewString()
}

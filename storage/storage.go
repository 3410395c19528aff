// Package storage defines the persistence interface for sync records. Two
// interchangeable backends exist: an embedded single-file store (bbolt) and
// a networked pooled store (postgres), plus an in-memory fake for tests.
package storage

import (
	"context"
	"time"
)

// Record is a server-persisted sync record: one opaque blob per account id,
// owned by the token presented at claim time.
type Record struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Token     string    `json:"token"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the logical storage interface the sync service depends on. All
// mutations are single-record and atomic at the engine level.
type Store interface {
	// Get returns the record for key, or ErrNotFound.
	Get(ctx context.Context, key string) (*Record, error)
	// Upsert inserts or overwrites the record for rec.Key.
	Upsert(ctx context.Context, rec *Record) error
	// Delete removes the record for key, or returns ErrNotFound.
	Delete(ctx context.Context, key string) error
	// HealthCheck performs a trivial round trip and reports liveness. It
	// must not panic or propagate transport errors.
	HealthCheck(ctx context.Context) bool
	// Close releases the backend's resources.
	Close() error
}

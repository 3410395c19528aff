// Package memory provides an in-memory Store used by tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmarlow/keepsync/storage"
)

// Store implements storage.Store with a mutex-guarded map.
type Store struct {
	mu      sync.RWMutex
	records map[string]storage.Record
	healthy bool
}

var _ storage.Store = (*Store)(nil)

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]storage.Record),
		healthy: true,
	}
}

func (s *Store) Get(_ context.Context, key string) (*storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	out := rec
	return &out, nil
}

func (s *Store) Upsert(_ context.Context, rec *storage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.Key] = *rec
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[key]; !ok {
		return fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	delete(s.records, key)
	return nil
}

func (s *Store) HealthCheck(context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthy
}

func (s *Store) Close() error {
	return nil
}

// SetHealthy toggles the health flag, letting tests exercise degraded-mode
// behavior.
func (s *Store) SetHealthy(healthy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = healthy
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

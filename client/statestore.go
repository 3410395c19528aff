package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
)

// StateStore persists local state between runs. Loss of local state is
// recoverable from the server; implementations need durability, not
// transactions.
type StateStore interface {
	Load() (*State, error)
	Replace(*State) error
}

// FileStore is a JSON-file StateStore.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ StateStore = (*FileStore)(nil)

// NewFileStore returns a FileStore persisting at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the persisted state, returning an empty state when none exists.
func (f *FileStore) Load() (*State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading local state: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing local state: %w", err)
	}
	return &s, nil
}

// Replace overwrites the persisted state wholesale.
func (f *FileStore) Replace(s *State) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding local state: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("writing local state: %w", err)
	}
	return nil
}

// MemoryStore is an in-memory StateStore for tests and ephemeral sessions.
type MemoryStore struct {
	mu    sync.Mutex
	state State
}

var _ StateStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone(), nil
}

func (m *MemoryStore) Replace(s *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = *s.clone()
	return nil
}

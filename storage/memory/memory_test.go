package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmarlow/keepsync/storage"
)

func TestCRUD(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if _, err := s.Get(ctx, "abc"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	rec := &storage.Record{Key: "abc", Value: `{"x":1}`, Token: "t1", UpdatedAt: time.Now()}
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := s.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Value != rec.Value || got.Token != rec.Token {
		t.Errorf("got %+v, want %+v", got, rec)
	}

	// Overwrite stays single-record.
	rec.Value = `{"x":2}`
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert overwrite failed: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("expected exactly one record, got %d", s.Len())
	}

	if err := s.Delete(ctx, "abc"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, "abc"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestHealthToggle(t *testing.T) {
	s := NewStore()
	if !s.HealthCheck(context.Background()) {
		t.Error("fresh store should be healthy")
	}
	s.SetHealthy(false)
	if s.HealthCheck(context.Background()) {
		t.Error("store should report unhealthy after toggle")
	}
}

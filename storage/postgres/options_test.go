package postgres

import (
	"testing"
	"time"
)

func TestOptionsDefaults(t *testing.T) {
	var o Options
	o.withDefaults()

	if o.PoolSize != DefaultPoolSize {
		t.Errorf("PoolSize = %d, want %d", o.PoolSize, DefaultPoolSize)
	}
	if o.ConnectTimeout != DefaultConnectTimeout {
		t.Errorf("ConnectTimeout = %v, want %v", o.ConnectTimeout, DefaultConnectTimeout)
	}
	if o.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", o.MaxRetries, DefaultMaxRetries)
	}
	if o.Logger == nil {
		t.Error("Logger should default to slog.Default")
	}
}

func TestOptionsExplicitValuesKept(t *testing.T) {
	o := Options{
		PoolSize:       5,
		ConnectTimeout: 3 * time.Second,
		MaxRetries:     2,
	}
	o.withDefaults()

	if o.PoolSize != 5 {
		t.Errorf("PoolSize = %d, want 5", o.PoolSize)
	}
	if o.ConnectTimeout != 3*time.Second {
		t.Errorf("ConnectTimeout = %v, want 3s", o.ConnectTimeout)
	}
	if o.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", o.MaxRetries)
	}
}

package cmd

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmarlow/keepsync/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenStoreBBolt(t *testing.T) {
	cfg := &config.Config{
		Backend:  config.BackendBBolt,
		DataDir:  t.TempDir(),
		PoolSize: config.DefaultPoolSize,
	}

	store, err := openStore(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer store.Close()

	assert.True(t, store.HealthCheck(context.Background()))
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	cfg := &config.Config{Backend: "etcd"}

	_, err := openStore(context.Background(), cfg, testLogger())
	var cfgErr *config.Error
	require.ErrorAs(t, err, &cfgErr)
}

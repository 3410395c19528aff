package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is the single sync_store table. Each logical operation touches one
// row, so no multi-statement transactions are needed anywhere.
const schema = `
CREATE TABLE IF NOT EXISTS sync_store (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	token      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// EnsureSchema creates the sync_store table if it does not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}

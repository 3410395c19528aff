// Package postgres implements storage.Store backed by PostgreSQL over a
// pgx connection pool.
//
// Connection establishment retries with exponential backoff and is fatal
// once the retry budget is exhausted: the process must not start serving
// traffic without storage. After init, transport failures only flip the
// health flag so liveness probes can observe degradation without a restart
// storm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmarlow/keepsync/storage"
)

const (
	// DefaultPoolSize is the default connection pool size.
	DefaultPoolSize = 20
	// DefaultConnectTimeout bounds a single connection attempt.
	DefaultConnectTimeout = 10 * time.Second
	// DefaultMaxRetries is the default number of connection attempts.
	DefaultMaxRetries = 5
)

// Options configures the pool. Zero values take the defaults above.
type Options struct {
	PoolSize       int
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
	MaxRetries     int
	Logger         *slog.Logger
}

func (o *Options) withDefaults() {
	if o.PoolSize <= 0 {
		o.PoolSize = DefaultPoolSize
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Store implements storage.Store backed by PostgreSQL.
type Store struct {
	pool    *pgxpool.Pool
	healthy atomic.Bool
	logger  *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// NewStore connects to the database with retry, ensures the schema, and
// returns a ready Store.
func NewStore(ctx context.Context, dsn string, opts Options) (*Store, error) {
	opts.withDefaults()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	// pgxpool counts connections in int32.
	cfg.MaxConns = int32(opts.PoolSize)
	cfg.ConnConfig.ConnectTimeout = opts.ConnectTimeout
	if opts.IdleTimeout > 0 {
		cfg.MaxConnIdleTime = opts.IdleTimeout
	}

	var pool *pgxpool.Pool
	connect := func(ctx context.Context) error {
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	}
	if err := connectWithRetry(ctx, opts.MaxRetries, connect, time.Sleep, opts.Logger); err != nil {
		return nil, err
	}

	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	s := &Store{pool: pool, logger: opts.Logger}
	s.healthy.Store(true)
	return s, nil
}

// Pool returns the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) Get(ctx context.Context, key string) (*storage.Record, error) {
	var rec storage.Record
	err := s.pool.QueryRow(ctx,
		`SELECT key, value, token, updated_at FROM sync_store WHERE key = $1`,
		key).Scan(&rec.Key, &rec.Value, &rec.Token, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, s.transportError("get", err)
	}
	s.healthy.Store(true)
	return &rec, nil
}

func (s *Store) Upsert(ctx context.Context, rec *storage.Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_store (key, value, token, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key)
		 DO UPDATE SET value = $2, token = $3, updated_at = $4`,
		rec.Key, rec.Value, rec.Token, rec.UpdatedAt)
	if err != nil {
		return s.transportError("upsert", err)
	}
	s.healthy.Store(true)
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sync_store WHERE key = $1`, key)
	if err != nil {
		return s.transportError("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	s.healthy.Store(true)
	return nil
}

// HealthCheck executes a trivial round-trip query. Failure flips the health
// flag and is reported as false, never propagated.
func (s *Store) HealthCheck(ctx context.Context) bool {
	var one int
	if err := s.pool.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		s.healthy.Store(false)
		s.logger.Warn("postgres health check failed", "error", err)
		return false
	}
	s.healthy.Store(true)
	return true
}

// Healthy reports the last observed health state without a round trip.
func (s *Store) Healthy() bool {
	return s.healthy.Load()
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// transportError records degradation and wraps the underlying error.
func (s *Store) transportError(op string, err error) error {
	s.healthy.Store(false)
	s.logger.Warn("postgres operation failed", "op", op, "error", err)
	return fmt.Errorf("%s: %w", op, err)
}

// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend selects the persistence layer for the sync service.
type Backend string

const (
	BackendBBolt    Backend = "bbolt"
	BackendPostgres Backend = "postgres"
)

// Defaults for everything the environment leaves unset.
const (
	DefaultAddr           = ":8080"
	DefaultDataDir        = "./data"
	DefaultPoolSize       = 20
	DefaultConnectTimeout = 10 * time.Second
	DefaultIdleTimeout    = 5 * time.Minute
	DefaultMaxConnRetries = 5
	DefaultBodyLimit      = 1 << 20
)

// Error is a configuration error. The server refuses to start on one.
type Error struct {
	Key    string
	Reason string
}

func (e *Error) Error() string {
	if e.Key == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

// Config is the full configuration surface of the sync service.
type Config struct {
	Addr           string
	Backend        Backend
	DataDir        string
	DatabaseURL    string
	PoolSize       int
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
	MaxConnRetries int
	BodyLimit      int64

	// ServerSecrets holds the at-rest encryption secrets, newest first.
	// When empty the server generates and persists one under DataDir.
	ServerSecrets []string
}

// FromEnv reads KEEPSYNC_* variables and applies defaults. The result is
// validated; a non-nil error is always a *Error.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Addr:           envString("KEEPSYNC_ADDR", DefaultAddr),
		Backend:        Backend(envString("KEEPSYNC_BACKEND", string(BackendBBolt))),
		DataDir:        envString("KEEPSYNC_DATA_DIR", DefaultDataDir),
		DatabaseURL:    os.Getenv("KEEPSYNC_DATABASE_URL"),
		MaxConnRetries: DefaultMaxConnRetries,
		BodyLimit:      DefaultBodyLimit,
	}

	var err error
	if cfg.PoolSize, err = envInt("KEEPSYNC_POOL_SIZE", DefaultPoolSize); err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout, err = envDuration("KEEPSYNC_CONNECT_TIMEOUT", DefaultConnectTimeout); err != nil {
		return nil, err
	}
	if cfg.IdleTimeout, err = envDuration("KEEPSYNC_IDLE_TIMEOUT", DefaultIdleTimeout); err != nil {
		return nil, err
	}
	if cfg.MaxConnRetries, err = envInt("KEEPSYNC_MAX_CONN_RETRIES", DefaultMaxConnRetries); err != nil {
		return nil, err
	}
	limit, err := envInt("KEEPSYNC_BODY_LIMIT", DefaultBodyLimit)
	if err != nil {
		return nil, err
	}
	cfg.BodyLimit = int64(limit)

	// Comma-separated, newest first. Decryption tries each in order, so
	// operators rotate by prepending the new secret.
	if raw := os.Getenv("KEEPSYNC_SERVER_SECRET"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.ServerSecrets = append(cfg.ServerSecrets, s)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for contradictions. Running the
// postgres backend without a database URL is fatal, not a silent fallback.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendBBolt:
		if c.DataDir == "" {
			return &Error{Key: "KEEPSYNC_DATA_DIR", Reason: "required for the bbolt backend"}
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return &Error{Key: "KEEPSYNC_DATABASE_URL", Reason: "required for the postgres backend"}
		}
	default:
		return &Error{Key: "KEEPSYNC_BACKEND", Reason: fmt.Sprintf("unknown backend %q", c.Backend)}
	}
	if c.PoolSize < 1 {
		return &Error{Key: "KEEPSYNC_POOL_SIZE", Reason: "must be at least 1"}
	}
	if c.MaxConnRetries < 1 {
		return &Error{Key: "KEEPSYNC_MAX_CONN_RETRIES", Reason: "must be at least 1"}
	}
	if c.BodyLimit < 1 {
		return &Error{Key: "KEEPSYNC_BODY_LIMIT", Reason: "must be at least 1"}
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &Error{Key: key, Reason: "not an integer: " + v}
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, &Error{Key: key, Reason: "not a duration: " + v}
	}
	return d, nil
}

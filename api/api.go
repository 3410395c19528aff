// Package api implements the sync service HTTP surface: an ownership-checked
// key/value store for opaque client-encrypted blobs. The X-Sync-Password
// header carries the sync token, itself a one-way hash of the password,
// which is compared in constant time against the record's owner credential.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmarlow/keepsync/crypto"
	"github.com/jmarlow/keepsync/storage"
)

// DefaultBodyLimit caps request bodies at 1 MiB.
const DefaultBodyLimit = 1 << 20

//go:embed openapi.yaml
var openapiSpec []byte

// API holds the dependencies needed by the sync handlers.
type API struct {
	store     storage.Store
	chain     *crypto.Chain
	audit     *auditLogger
	limiter   *tokenRateLimiter
	bodyLimit int64
	alertFn   AlertFunc
}

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// WithBodyLimit overrides the request body size limit in bytes.
func WithBodyLimit(limit int64) Option {
	return func(a *API) {
		if limit > 0 {
			a.bodyLimit = limit
		}
	}
}

// WithAlertFunc sets the callback fired on detected anomalies, such as an
// auth-failure spike.
func WithAlertFunc(fn AlertFunc) Option {
	return func(a *API) {
		a.alertFn = fn
	}
}

// New creates a new API instance. The secret chain protects record tokens
// at rest; tokens written before at-rest encryption was introduced pass
// through the chain's legacy path untouched.
func New(store storage.Store, chain *crypto.Chain, opts ...Option) *API {
	a := &API{
		store:     store,
		chain:     chain,
		limiter:   newTokenRateLimiter(),
		bodyLimit: DefaultBodyLimit,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	a.audit.metrics = newMetricsCollector(a.alertFn)
	return a
}

// Router returns a chi.Router with all sync routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/openapi.yaml",
		Path:    "docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/openapi.yaml",
		Path:    "redoc",
	}, nil))

	r.Get("/api/health", a.Health)

	r.Route("/api/sync/{id}", func(r chi.Router) {
		r.Get("/", a.GetRecord)
		r.Post("/", a.PutRecord)
		r.Delete("/", a.DeleteRecord)
	})

	return r
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jmarlow/keepsync/internal/util"
	"github.com/jmarlow/keepsync/storage"
)

// SyncPasswordHeader carries the client's sync token.
const SyncPasswordHeader = "X-Sync-Password"

// requestAuth extracts and validates the id and token of a sync request.
// Both are required; their absence is a 400, not a 401, since the request
// shape is malformed before authorization is even a question.
func requestAuth(w http.ResponseWriter, r *http.Request) (id, token string, ok bool) {
	id = chi.URLParam(r, "id")
	token = r.Header.Get(SyncPasswordHeader)
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return "", "", false
	}
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing "+SyncPasswordHeader+" header")
		return "", "", false
	}
	return id, token, true
}

// checkLimiter enforces the per-account lockout. Returns false when the
// request has been rejected.
func (a *API) checkLimiter(w http.ResponseWriter, r *http.Request, id string) bool {
	blocked, retryAfter := a.limiter.check(id)
	if !blocked {
		return true
	}
	a.audit.log(AuditRateLimited, r, slog.String("id", id))
	w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
	writeError(w, http.StatusTooManyRequests, "too many failed attempts")
	return false
}

// authorize compares the presented token against the record's owner
// credential. The stored token is decrypted through the secret chain first;
// records written before at-rest token encryption hold plaintext tokens and
// take the chain's pass-through path.
func (a *API) authorize(r *http.Request, rec *storage.Record, presented string) error {
	stored, err := a.chain.Decrypt(rec.Token)
	if err != nil {
		a.audit.log(AuditUnrecoverable, r, slog.String("id", rec.Key))
		return fmt.Errorf("stored token for %s: %w", rec.Key, err)
	}
	if !util.ConstantTimeEquals(presented, stored) {
		return errTokenMismatch
	}
	return nil
}

func (a *API) handleAuthError(w http.ResponseWriter, r *http.Request, id string, err error) {
	if errors.Is(err, errTokenMismatch) {
		a.limiter.recordFailure(id)
		a.audit.log(AuditAuthFailure, r, slog.String("id", id))
		writeError(w, http.StatusUnauthorized, errTokenMismatch.Error())
		return
	}
	// All candidate secrets exhausted: data may be corrupted or key lost.
	// Surfaced as a server error, never as empty data.
	writeError(w, http.StatusInternalServerError, "stored credential unrecoverable")
}

// GetRecord returns the stored opaque value for an owned record.
func (a *API) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, token, ok := requestAuth(w, r)
	if !ok {
		return
	}
	if !a.checkLimiter(w, r, id) {
		return
	}

	rec, err := a.store.Get(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	if err := a.authorize(r, rec, token); err != nil {
		a.handleAuthError(w, r, id, err)
		return
	}
	a.limiter.recordSuccess(id)

	value := rec.Value
	if value == "" {
		value = "{}"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, value)
}

// PutRecord claims the record when absent, binding the presented token as
// the permanent owner credential; otherwise it requires a token match and
// overwrites the value. Last write wins at whole-blob granularity.
func (a *API) PutRecord(w http.ResponseWriter, r *http.Request) {
	id, token, ok := requestAuth(w, r)
	if !ok {
		return
	}
	if !a.checkLimiter(w, r, id) {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.bodyLimit))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading request body: "+err.Error())
		return
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "request body is not valid JSON")
		return
	}

	event := AuditUpdate
	rec, err := a.store.Get(r.Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		event = AuditClaim
	case err != nil:
		mapError(w, err)
		return
	default:
		if err := a.authorize(r, rec, token); err != nil {
			a.handleAuthError(w, r, id, err)
			return
		}
	}
	a.limiter.recordSuccess(id)

	// The token is stored encrypted under the current server secret; every
	// authorized write re-encrypts, migrating legacy plaintext tokens and
	// records sealed under rotated-out secrets.
	sealedToken, err := a.chain.Encrypt(token)
	if err != nil {
		mapError(w, err)
		return
	}

	if err := a.store.Upsert(r.Context(), &storage.Record{
		Key:       id,
		Value:     string(body),
		Token:     sealedToken,
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		mapError(w, err)
		return
	}

	a.audit.log(event, r, slog.String("id", id), slog.Int("bytes", len(body)))
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// DeleteRecord removes an owned record.
func (a *API) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, token, ok := requestAuth(w, r)
	if !ok {
		return
	}
	if !a.checkLimiter(w, r, id) {
		return
	}

	rec, err := a.store.Get(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	if err := a.authorize(r, rec, token); err != nil {
		a.handleAuthError(w, r, id, err)
		return
	}
	a.limiter.recordSuccess(id)

	if err := a.store.Delete(r.Context(), id); err != nil {
		mapError(w, err)
		return
	}

	a.audit.log(AuditDelete, r, slog.String("id", id))
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// Health reports storage reachability for liveness/readiness probes.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	if !a.store.HealthCheck(r.Context()) {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

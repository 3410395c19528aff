// Package client implements the sync orchestrator: it owns the local vault,
// encrypts the full local state with the password-derived key, and drives
// claim/login/push/pull/force operations against the sync service. The
// server never sees the password or the vault key, only the one-way sync
// token and the opaque encrypted blob.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jmarlow/keepsync/api"
	"github.com/jmarlow/keepsync/internal/util"
	"github.com/jmarlow/keepsync/internal/uuid"
	"github.com/jmarlow/keepsync/pending"
	"github.com/jmarlow/keepsync/vault"
)

// payload is the wire form of the state blob. Salt and iteration count are
// non-secret KDF inputs carried alongside the ciphertext so any device
// holding the password can re-derive the vault key.
type payload struct {
	Version    int    `json:"v"`
	Salt       string `json:"salt"`
	Iterations int    `json:"iterations"`
	Cipher     string `json:"cipher"`
}

const payloadVersion = 1

// VisibilityFunc reports whether the application surface is currently
// visible. Periodic auto-sync is skipped entirely while hidden.
type VisibilityFunc func() bool

// Client is the sync orchestrator for a single account.
type Client struct {
	baseURL string
	http    *http.Client
	vault   *vault.Vault
	store   StateStore
	guard   *pending.Guard
	logger  *slog.Logger
	visible VisibilityFunc
	params  vault.Params

	// group coalesces concurrent push (or pull) triggers into one in-flight
	// request; late callers share its result.
	group singleflight.Group

	mu         sync.Mutex
	token      string
	lastSynced time.Time
	stopAuto   chan struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithGuard attaches a pending-removal guard consulted on every pull.
func WithGuard(g *pending.Guard) Option {
	return func(c *Client) { c.guard = g }
}

// WithVisibility sets the visibility probe gating auto-sync.
func WithVisibility(fn VisibilityFunc) Option {
	return func(c *Client) { c.visible = fn }
}

// WithParams overrides the KDF parameters for new registrations.
func WithParams(p vault.Params) Option {
	return func(c *Client) { c.params = p }
}

// New returns a Client for the sync service at baseURL.
func New(baseURL string, v *vault.Vault, store StateStore, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		vault:   v,
		store:   store,
		logger:  slog.Default(),
		params:  vault.DefaultParams(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register creates a new account: local vault material first, then a remote
// claim carrying the current (possibly empty) local state. When the claim
// fails the vault still exists and the returned *RegistrationError signals
// that the account can be claimed later with a push.
func (c *Client) Register(ctx context.Context, password string) (string, error) {
	accountID := uuid.New()

	if err := c.vault.Initialize(accountID, password, c.params); err != nil {
		return "", fmt.Errorf("initializing vault: %w", err)
	}
	c.setToken(vault.DeriveSyncToken(password))

	if err := c.push(ctx); err != nil {
		c.logger.Warn("remote claim failed, account registered locally only",
			"account_id", accountID, "error", err)
		return accountID, &RegistrationError{AccountID: accountID, Err: err}
	}
	return accountID, nil
}

// Login fetches the record for accountID with the password-derived token,
// decrypts it, establishes the local vault with the remote KDF inputs, and
// replaces local state. silent suppresses user-facing log surfacing for
// opportunistic restore attempts.
func (c *Client) Login(ctx context.Context, accountID, password string, silent bool) error {
	token := vault.DeriveSyncToken(password)

	body, err := c.fetch(ctx, accountID, token)
	if err != nil {
		level := slog.LevelWarn
		if silent {
			level = slog.LevelDebug
		}
		c.logger.Log(ctx, level, "login failed", "account_id", accountID, "error", err)
		return err
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return fmt.Errorf("parsing remote payload: %w", err)
	}

	state, salt, params, err := openPayload(&p, password)
	if err != nil {
		return err
	}

	if err := c.vault.Restore(accountID, password, salt, params); err != nil {
		return fmt.Errorf("restoring vault: %w", err)
	}
	c.setToken(token)

	if err := c.store.Replace(state); err != nil {
		return fmt.Errorf("replacing local state: %w", err)
	}
	c.markSynced()
	return nil
}

// Unlock verifies the password against the local vault and, on success,
// refreshes from the cloud so a device coming back online converges with
// writes made elsewhere. The refresh is best-effort: its failure is logged,
// not returned.
func (c *Client) Unlock(ctx context.Context, password string) (bool, error) {
	ok, err := c.vault.Unlock(password)
	if err != nil || !ok {
		return ok, err
	}
	c.setToken(vault.DeriveSyncToken(password))

	if err := c.SyncFromRemote(ctx); err != nil {
		c.logger.Warn("refresh after unlock failed", "error", err)
	}
	return true, nil
}

// SyncToRemote encrypts the current local state and pushes it. When auto is
// set and the surface is hidden, the call is skipped entirely. Concurrent
// triggers coalesce into a single in-flight request.
func (c *Client) SyncToRemote(ctx context.Context, auto bool) error {
	if auto && c.visible != nil && !c.visible() {
		c.logger.Debug("auto-sync skipped, surface not visible")
		return nil
	}

	// The push must outlive the triggering context: its result still
	// updates the last-synced bookkeeping even if the trigger went away.
	detached := context.WithoutCancel(ctx)
	_, err, _ := c.group.Do("push", func() (any, error) {
		return nil, c.push(detached)
	})
	return err
}

// SyncFromRemote pulls the remote blob, decrypts it, filters addons pending
// local removal, and replaces local state. Concurrent triggers coalesce.
func (c *Client) SyncFromRemote(ctx context.Context) error {
	detached := context.WithoutCancel(ctx)
	_, err, _ := c.group.Do("pull", func() (any, error) {
		return nil, c.pull(detached, true)
	})
	return err
}

// ForcePushState unconditionally overwrites the remote record with local
// state. Destructive: the confirmation belongs at the caller's boundary,
// not here.
func (c *Client) ForcePushState(ctx context.Context) error {
	return c.push(ctx)
}

// ForceMirrorState unconditionally overwrites local state with the remote
// record, discarding unsynced local changes, pending removals included.
func (c *Client) ForceMirrorState(ctx context.Context) error {
	return c.pull(ctx, false)
}

// DeleteRemoteAccount deletes the remote record and clears all local vault
// material. The local teardown happens even when the remote call fails;
// the inconsistency is logged.
func (c *Client) DeleteRemoteAccount(ctx context.Context) error {
	accountID, token, err := c.credentials()
	if err != nil {
		return err
	}

	remoteErr := c.deleteRemote(ctx, accountID, token)
	if remoteErr != nil {
		c.logger.Warn("remote delete failed, local vault cleared anyway; remote record may linger",
			"account_id", accountID, "error", remoteErr)
	}

	if c.guard != nil {
		c.guard.ClearAccount(accountID)
	}
	if err := c.store.Replace(&State{}); err != nil {
		return fmt.Errorf("clearing local state: %w", err)
	}
	if err := c.vault.Destroy(); err != nil {
		return fmt.Errorf("destroying vault: %w", err)
	}
	c.setToken("")
	return nil
}

// LastSynced returns the time of the last successful push or pull.
func (c *Client) LastSynced() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSynced
}

// ---------------------------------------------------------------------------
// internals
// ---------------------------------------------------------------------------

func (c *Client) push(ctx context.Context) error {
	accountID, token, err := c.credentials()
	if err != nil {
		return err
	}

	state, err := c.store.Load()
	if err != nil {
		return fmt.Errorf("loading local state: %w", err)
	}

	key, err := c.vault.Key()
	if err != nil {
		return err
	}
	defer util.WipeBytes(key)

	p, err := sealPayload(state, key, c.vault.Profile())
	if err != nil {
		return err
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.recordURL(accountID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.SyncPasswordHeader, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	if err := statusError(resp.StatusCode); err != nil {
		return err
	}

	c.markSynced()
	return nil
}

func (c *Client) pull(ctx context.Context, filterPending bool) error {
	accountID, token, err := c.credentials()
	if err != nil {
		return err
	}

	body, err := c.fetch(ctx, accountID, token)
	if err != nil {
		return err
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return fmt.Errorf("parsing remote payload: %w", err)
	}

	key, err := c.vault.Key()
	if err != nil {
		return err
	}
	defer util.WipeBytes(key)

	state, err := decryptState(&p, key)
	if err != nil {
		return err
	}

	if filterPending {
		filterPendingRemovals(state, c.guard, accountID)
	}
	if err := c.store.Replace(state); err != nil {
		return fmt.Errorf("replacing local state: %w", err)
	}

	c.markSynced()
	return nil
}

func (c *Client) fetch(ctx context.Context, accountID, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.recordURL(accountID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(api.SyncPasswordHeader, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	if err := statusError(resp.StatusCode); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) deleteRemote(ctx context.Context, accountID, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.recordURL(accountID), nil)
	if err != nil {
		return err
	}
	req.Header.Set(api.SyncPasswordHeader, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	return statusError(resp.StatusCode)
}

func (c *Client) recordURL(accountID string) string {
	return c.baseURL + "/api/sync/" + accountID
}

// credentials returns the account id and sync token for remote calls.
func (c *Client) credentials() (accountID, token string, err error) {
	profile := c.vault.Profile()
	if profile == nil {
		return "", "", vault.ErrNotInitialized
	}
	c.mu.Lock()
	token = c.token
	c.mu.Unlock()
	if token == "" {
		return "", "", vault.ErrLocked
	}
	return profile.AccountID, token, nil
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) markSynced() {
	c.mu.Lock()
	c.lastSynced = time.Now()
	c.mu.Unlock()
}

// statusError maps response statuses to the client error taxonomy.
func statusError(code int) error {
	switch code {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrAccountNotFound
	case http.StatusUnauthorized:
		return ErrInvalidPassword
	default:
		return fmt.Errorf("sync service returned status %d", code)
	}
}

// sealPayload encrypts state under the vault key, attaching the non-secret
// KDF inputs other devices need to re-derive it.
func sealPayload(state *State, key []byte, profile *vault.Profile) (*payload, error) {
	plain, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encoding state: %w", err)
	}
	sealed, err := util.EncryptAESGCM(plain, key)
	if err != nil {
		return nil, fmt.Errorf("encrypting state: %w", err)
	}
	return &payload{
		Version:    payloadVersion,
		Salt:       base64.StdEncoding.EncodeToString(profile.Salt),
		Iterations: profile.KDF.Iterations,
		Cipher:     base64.StdEncoding.EncodeToString(sealed),
	}, nil
}

// decryptState opens a payload with an already-derived vault key.
func decryptState(p *payload, key []byte) (*State, error) {
	if p.Cipher == "" {
		return &State{}, nil
	}
	sealed, err := base64.StdEncoding.DecodeString(p.Cipher)
	if err != nil {
		return nil, fmt.Errorf("decoding cipher: %w", err)
	}
	plain, err := util.DecryptAESGCM(sealed, key)
	if err != nil {
		return nil, fmt.Errorf("decrypting state: %w", err)
	}
	var s State
	if err := json.Unmarshal(plain, &s); err != nil {
		return nil, fmt.Errorf("parsing state: %w", err)
	}
	return &s, nil
}

// openPayload derives the vault key from the password and the payload's KDF
// inputs, then decrypts. Used at login, before any local vault exists.
func openPayload(p *payload, password string) (*State, []byte, vault.Params, error) {
	salt, err := base64.StdEncoding.DecodeString(p.Salt)
	if err != nil {
		return nil, nil, vault.Params{}, fmt.Errorf("decoding salt: %w", err)
	}
	params := vault.Params{Iterations: p.Iterations}

	key, err := vault.DeriveKey(password, salt, params)
	if err != nil {
		return nil, nil, vault.Params{}, err
	}
	defer util.WipeBytes(key)

	state, err := decryptState(p, key)
	if err != nil {
		return nil, nil, vault.Params{}, err
	}
	return state, salt, params, nil
}

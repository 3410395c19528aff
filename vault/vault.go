// Package vault manages the client-side local vault: password-derived key
// material, the unlock verifier, and the ephemeral session-key cache. The
// master password itself is never persisted and never transmitted; the
// server only ever sees the one-way sync token.
package vault

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/awnumar/memguard"

	"github.com/jmarlow/keepsync/internal/util"
)

// Profile is the persisted, non-secret-equivalent vault state. Salt and
// verifier are created once at registration and immutable thereafter.
type Profile struct {
	AccountID string    `json:"account_id"`
	Salt      []byte    `json:"salt"`
	Verifier  []byte    `json:"verifier"`
	KDF       Params    `json:"kdf"`
	CreatedAt time.Time `json:"created_at"`
}

// Vault holds the local vault profile and the session-key cache. The cached
// key lives in a memguard Enclave so it is encrypted at rest in memory.
type Vault struct {
	path string

	mu      sync.Mutex
	profile *Profile
	session *memguard.Enclave
}

// New returns a Vault persisted at the given profile path. Call Load to read
// an existing profile, or Initialize to create one.
func New(path string) *Vault {
	return &Vault{path: path}
}

// Load reads the persisted profile. Returns ErrNotInitialized when none
// exists.
func (v *Vault) Load() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := os.ReadFile(v.path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotInitialized
	}
	if err != nil {
		return fmt.Errorf("reading vault profile: %w", err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parsing vault profile: %w", err)
	}
	v.profile = &p
	return nil
}

// Initialized reports whether a profile is loaded.
func (v *Vault) Initialized() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.profile != nil
}

// Initialize creates a new vault profile: fresh random salt, unlock
// verifier, and KDF parameters, persisted with restrictive permissions. The
// derived vault key is cached for the session.
func (v *Vault) Initialize(accountID, password string, params Params) error {
	if err := params.Validate(); err != nil {
		return err
	}

	salt, err := util.RandomBytes(SaltSize)
	if err != nil {
		return fmt.Errorf("generating salt: %w", err)
	}
	verifier, err := HashVerifier(password, salt, params)
	if err != nil {
		return err
	}
	key, err := DeriveKey(password, salt, params)
	if err != nil {
		return err
	}

	p := &Profile{
		AccountID: accountID,
		Salt:      salt,
		Verifier:  verifier,
		KDF:       params,
		CreatedAt: time.Now().UTC(),
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.persistLocked(p); err != nil {
		return err
	}
	v.profile = p
	v.session = memguard.NewEnclave(key) // wipes key
	return nil
}

// Restore creates a vault profile from KDF inputs recovered from another
// device's payload, so the derived key matches the one that sealed the
// remote blob. Salt and params come from the wire; only the password is
// local.
func (v *Vault) Restore(accountID, password string, salt []byte, params Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if len(salt) == 0 {
		return fmt.Errorf("restore requires a salt")
	}

	verifier, err := HashVerifier(password, salt, params)
	if err != nil {
		return err
	}
	key, err := DeriveKey(password, salt, params)
	if err != nil {
		return err
	}

	p := &Profile{
		AccountID: accountID,
		Salt:      util.CopyBytes(salt),
		Verifier:  verifier,
		KDF:       params,
		CreatedAt: time.Now().UTC(),
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.persistLocked(p); err != nil {
		return err
	}
	v.profile = p
	v.session = memguard.NewEnclave(key)
	return nil
}

// Unlock verifies the password against the stored verifier. A wrong password
// returns (false, nil); ErrNotInitialized is returned only when no profile
// exists, so callers can tell "bad password" from "no data present". On
// success the vault key is derived and cached for the session.
func (v *Vault) Unlock(password string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.profile == nil {
		return false, ErrNotInitialized
	}

	verifier, err := HashVerifier(password, v.profile.Salt, v.profile.KDF)
	if err != nil {
		return false, err
	}
	if subtle.ConstantTimeCompare(verifier, v.profile.Verifier) != 1 {
		return false, nil
	}

	key, err := DeriveKey(password, v.profile.Salt, v.profile.KDF)
	if err != nil {
		return false, err
	}
	v.session = memguard.NewEnclave(key)
	return true, nil
}

// Key returns a copy of the cached session key. ErrLocked when no session
// key is cached.
func (v *Vault) Key() ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.session == nil {
		return nil, ErrLocked
	}
	buf, err := v.session.Open()
	if err != nil {
		return nil, fmt.Errorf("opening session enclave: %w", err)
	}
	defer buf.Destroy()
	return util.CopyBytes(buf.Bytes()), nil
}

// ExportSessionKey returns the raw session-key bytes for session-scoped
// storage, so the key need not be re-derived on every start. Losing the
// exported key never corrupts the vault; it only forces re-derivation.
func (v *Vault) ExportSessionKey() ([]byte, error) {
	return v.Key()
}

// ImportSessionKey restores a previously exported session key.
func (v *Vault) ImportSessionKey(raw []byte) error {
	if len(raw) != KeySize {
		return fmt.Errorf("invalid session key length: got %d, want %d", len(raw), KeySize)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.session = memguard.NewEnclave(util.CopyBytes(raw))
	return nil
}

// Lock drops the cached session key.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.session = nil
}

// Profile returns a copy of the loaded profile, or nil.
func (v *Vault) Profile() *Profile {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.profile == nil {
		return nil
	}
	p := *v.profile
	p.Salt = util.CopyBytes(v.profile.Salt)
	p.Verifier = util.CopyBytes(v.profile.Verifier)
	return &p
}

// Destroy removes the persisted profile and drops all cached key material.
// Used when the account is deleted.
func (v *Vault) Destroy() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.profile = nil
	v.session = nil
	if err := os.Remove(v.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing vault profile: %w", err)
	}
	return nil
}

func (v *Vault) persistLocked(p *Profile) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding vault profile: %w", err)
	}
	if err := os.WriteFile(v.path, data, 0o600); err != nil {
		return fmt.Errorf("writing vault profile: %w", err)
	}
	return nil
}

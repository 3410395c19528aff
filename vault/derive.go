package vault

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/jmarlow/keepsync/internal/util"
)

const (
	// DefaultIterations is the PBKDF2 iteration count for new vaults.
	DefaultIterations = 600_000
	// MinIterations is the lowest acceptable iteration count.
	MinIterations = 100_000

	// SaltSize is the length of the random per-vault salt.
	SaltSize = 16

	// KeySize is the derived vault key length, usable directly as an
	// AES-256-GCM key.
	KeySize = 32

	// syncTokenSuffix domain-separates the sync token from any other use of
	// the password. The token is a one-way digest and the only
	// password-derived value that ever reaches the server.
	syncTokenSuffix = "|keepsync:sync-token:v1"

	// verifierContext domain-separates the unlock verifier from the vault
	// key, so leaking one never yields the other.
	verifierContext = "keepsync:verifier:v1"
)

// Params configures PBKDF2 key derivation.
type Params struct {
	Iterations int `json:"iterations"`
}

// DefaultParams returns the default derivation parameters.
func DefaultParams() Params {
	return Params{Iterations: DefaultIterations}
}

// Validate checks that the parameters meet the minimum acceptable threshold.
func (p Params) Validate() error {
	if p.Iterations < MinIterations {
		return fmt.Errorf("pbkdf2 iterations %d below minimum %d", p.Iterations, MinIterations)
	}
	return nil
}

// DeriveKey derives the 256-bit vault key from the password via
// PBKDF2-SHA256.
func DeriveKey(password string, salt []byte, params Params) ([]byte, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("derive key requires a salt")
	}
	return pbkdf2.Key([]byte(util.Normalize(password)), salt, params.Iterations, KeySize, sha256.New), nil
}

// DeriveSyncToken derives the transport credential sent to the sync service:
// a SHA-256 digest of the password plus a fixed versioned suffix. It is
// stable across calls and not inter-derivable with the vault key.
func DeriveSyncToken(password string) string {
	sum := sha256.Sum256([]byte(util.Normalize(password) + syncTokenSuffix))
	return util.HexEncode(sum[:])
}

// HashVerifier derives the local unlock verifier. The salt is bound to a
// verifier-specific context so the result is distinct from DeriveKey output
// under the same salt.
func HashVerifier(password string, salt []byte, params Params) ([]byte, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("hash verifier requires a salt")
	}
	bound := append(util.CopyBytes(salt), []byte(verifierContext)...)
	return pbkdf2.Key([]byte(util.Normalize(password)), bound, params.Iterations, KeySize, sha256.New), nil
}

package vault

import (
	"bytes"
	"testing"
)

// testParams keeps derivation fast while staying above the enforced floor.
var testParams = Params{Iterations: MinIterations}

func TestDeriveKey(t *testing.T) {
	salt := []byte("0123456789abcdef")

	k1, err := DeriveKey("correct horse", salt, testParams)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	if len(k1) != KeySize {
		t.Errorf("key length = %d, want %d", len(k1), KeySize)
	}

	k2, err := DeriveKey("correct horse", salt, testParams)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Error("same password and salt must derive the same key")
	}

	k3, _ := DeriveKey("correct horse", []byte("fedcba9876543210"), testParams)
	if bytes.Equal(k1, k3) {
		t.Error("different salts must derive different keys")
	}

	k4, _ := DeriveKey("battery staple", salt, testParams)
	if bytes.Equal(k1, k4) {
		t.Error("different passwords must derive different keys")
	}
}

func TestDeriveKey_Validation(t *testing.T) {
	if _, err := DeriveKey("pw", []byte("salt"), Params{Iterations: MinIterations - 1}); err == nil {
		t.Error("expected error for iteration count below minimum")
	}
	if _, err := DeriveKey("pw", nil, testParams); err == nil {
		t.Error("expected error for missing salt")
	}
}

func TestDeriveSyncToken(t *testing.T) {
	t1 := DeriveSyncToken("correct horse")
	t2 := DeriveSyncToken("correct horse")
	if t1 != t2 {
		t.Error("sync token must be stable across calls")
	}
	if len(t1) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(t1))
	}
	if DeriveSyncToken("battery staple") == t1 {
		t.Error("different passwords must derive different tokens")
	}
}

func TestDerivationsAreIndependent(t *testing.T) {
	salt := []byte("0123456789abcdef")
	password := "correct horse"

	key, err := DeriveKey(password, salt, testParams)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	verifier, err := HashVerifier(password, salt, testParams)
	if err != nil {
		t.Fatalf("HashVerifier failed: %v", err)
	}

	// VaultKey, verifier and sync token must all differ: leaking one never
	// yields another.
	if bytes.Equal(key, verifier) {
		t.Error("vault key and verifier must not collide")
	}
	token := DeriveSyncToken(password)
	if token == string(key) || token == string(verifier) {
		t.Error("sync token must not collide with derived keys")
	}
}

func TestNormalizedPasswordsDeriveSameKey(t *testing.T) {
	salt := []byte("0123456789abcdef")

	// U+FB01 LATIN SMALL LIGATURE FI normalizes to "fi".
	k1, _ := DeriveKey("ﬁsh", salt, testParams)
	k2, _ := DeriveKey("fish", salt, testParams)
	if !bytes.Equal(k1, k2) {
		t.Error("NFKD-equivalent passwords must derive the same key")
	}
}

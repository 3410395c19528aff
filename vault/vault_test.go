package vault

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "profile.json"))
}

func TestInitializeAndUnlock(t *testing.T) {
	v := newTestVault(t)

	if err := v.Initialize("acct-1", "correct horse", testParams); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	key, err := v.Key()
	if err != nil {
		t.Fatalf("Key after Initialize failed: %v", err)
	}

	v.Lock()
	if _, err := v.Key(); !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked after Lock, got %v", err)
	}

	ok, err := v.Unlock("wrong password")
	if err != nil {
		t.Fatalf("Unlock returned error for wrong password: %v", err)
	}
	if ok {
		t.Fatal("wrong password must not unlock")
	}

	ok, err = v.Unlock("correct horse")
	if err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if !ok {
		t.Fatal("correct password must unlock")
	}

	key2, err := v.Key()
	if err != nil {
		t.Fatalf("Key after Unlock failed: %v", err)
	}
	if !bytes.Equal(key, key2) {
		t.Error("unlock must re-derive the same vault key")
	}
}

func TestUnlock_NotInitialized(t *testing.T) {
	v := newTestVault(t)
	if _, err := v.Unlock("anything"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
}

func TestLoadPersistedProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")

	v1 := New(path)
	if err := v1.Initialize("acct-1", "correct horse", testParams); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	p1 := v1.Profile()

	v2 := New(path)
	if err := v2.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	p2 := v2.Profile()

	if p2.AccountID != "acct-1" {
		t.Errorf("account ID = %q, want acct-1", p2.AccountID)
	}
	if !bytes.Equal(p1.Salt, p2.Salt) {
		t.Error("salt must survive persistence unchanged")
	}
	if !bytes.Equal(p1.Verifier, p2.Verifier) {
		t.Error("verifier must survive persistence unchanged")
	}

	// Fresh process: locked until the password is supplied.
	if _, err := v2.Key(); !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked on fresh load, got %v", err)
	}
	ok, err := v2.Unlock("correct horse")
	if err != nil || !ok {
		t.Fatalf("Unlock after Load = %v, %v", ok, err)
	}
}

func TestLoad_Missing(t *testing.T) {
	v := newTestVault(t)
	if err := v.Load(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
}

func TestSessionKeyRoundTrip(t *testing.T) {
	v := newTestVault(t)
	if err := v.Initialize("acct-1", "correct horse", testParams); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	exported, err := v.ExportSessionKey()
	if err != nil {
		t.Fatalf("ExportSessionKey failed: %v", err)
	}

	v.Lock()
	if err := v.ImportSessionKey(exported); err != nil {
		t.Fatalf("ImportSessionKey failed: %v", err)
	}

	restored, err := v.Key()
	if err != nil {
		t.Fatalf("Key after import failed: %v", err)
	}
	if !bytes.Equal(exported, restored) {
		t.Error("session key must round-trip exactly")
	}
}

func TestImportSessionKey_BadLength(t *testing.T) {
	v := newTestVault(t)
	if err := v.ImportSessionKey([]byte("short")); err == nil {
		t.Error("expected error for wrong-length session key")
	}
}

func TestDestroy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	v := New(path)
	if err := v.Initialize("acct-1", "pw-very-secret", testParams); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := v.Destroy(); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if _, err := v.Key(); !errors.Is(err, ErrLocked) {
		t.Error("key material must be dropped on destroy")
	}
	if err := New(path).Load(); !errors.Is(err, ErrNotInitialized) {
		t.Error("profile file must be removed on destroy")
	}
}

package crypto

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadChain_GeneratesSecretFile(t *testing.T) {
	dir := t.TempDir()

	chain, err := LoadChain(nil, dir, discardLogger())
	if err != nil {
		t.Fatalf("LoadChain failed: %v", err)
	}

	path := filepath.Join(dir, SecretFileName)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("secret file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("secret file permissions = %o, want 600", perm)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading secret file: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != chain.Current() {
		t.Errorf("file secret %q does not match chain current %q", got, chain.Current())
	}
}

func TestLoadChain_NeverOverwritesSecretFile(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadChain(nil, dir, discardLogger())
	if err != nil {
		t.Fatalf("first LoadChain failed: %v", err)
	}

	// A restart with no configured secret reuses the persisted one.
	second, err := LoadChain(nil, dir, discardLogger())
	if err != nil {
		t.Fatalf("second LoadChain failed: %v", err)
	}
	if first.Current() != second.Current() {
		t.Error("restart produced a different generated secret")
	}
}

func TestLoadChain_ConfiguredSecretKeepsFileFallback(t *testing.T) {
	dir := t.TempDir()

	// First boot with no configured secret: data gets encrypted under the
	// generated secret.
	boot1, err := LoadChain(nil, dir, discardLogger())
	if err != nil {
		t.Fatalf("LoadChain failed: %v", err)
	}
	enc, err := boot1.Encrypt("old credential")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	// Operator later sets an explicit secret. Old data must stay readable.
	boot2, err := LoadChain([]string{"operator-secret"}, dir, discardLogger())
	if err != nil {
		t.Fatalf("LoadChain failed: %v", err)
	}
	if boot2.Current() != "operator-secret" {
		t.Errorf("configured secret should be current, got %q", boot2.Current())
	}
	if len(boot2.Candidates()) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(boot2.Candidates()))
	}

	got, err := boot2.Decrypt(enc)
	if err != nil {
		t.Fatalf("Decrypt with fallback failed: %v", err)
	}
	if got != "old credential" {
		t.Errorf("got %q, want %q", got, "old credential")
	}

	// New encryptions use the configured secret only.
	enc2, err := boot2.Encrypt("new credential")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if _, err := Decrypt(enc2, boot1.Current()); !errors.Is(err, ErrUnrecoverable) {
		t.Error("new data should not decrypt under the generated secret")
	}
}

func TestLoadChain_NoGenerationWhenConfigured(t *testing.T) {
	dir := t.TempDir()

	chain, err := LoadChain([]string{"explicit"}, dir, discardLogger())
	if err != nil {
		t.Fatalf("LoadChain failed: %v", err)
	}
	if len(chain.Candidates()) != 1 || chain.Current() != "explicit" {
		t.Errorf("unexpected chain: %v", chain.Candidates())
	}
	if _, err := os.Stat(filepath.Join(dir, SecretFileName)); !errors.Is(err, os.ErrNotExist) {
		t.Error("secret file should not be generated when a secret is configured")
	}
}

func TestLoadChain_CapsChainLength(t *testing.T) {
	dir := t.TempDir()

	configured := make([]string, maxChainLen+3)
	for i := range configured {
		configured[i] = strings.Repeat("s", i+1)
	}
	chain, err := LoadChain(configured, dir, discardLogger())
	if err != nil {
		t.Fatalf("LoadChain failed: %v", err)
	}
	if len(chain.Candidates()) != maxChainLen {
		t.Errorf("expected cap at %d candidates, got %d", maxChainLen, len(chain.Candidates()))
	}
	if chain.Current() != configured[0] {
		t.Error("cap must preserve the current secret")
	}
}

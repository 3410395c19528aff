package crypto

import (
	"errors"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateRandomKey()
	if err != nil {
		t.Fatalf("GenerateRandomKey failed: %v", err)
	}

	tests := []struct {
		name  string
		plain string
	}{
		{"Simple", "hunter2"},
		{"Empty", ""},
		{"Unicode", "pässwörd ◊"},
		{"JSON", `{"user":"a","pass":"b"}`},
		{"Colons", "a:b:c:d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := Encrypt(tt.plain, key)
			if err != nil {
				t.Fatalf("Encrypt failed: %v", err)
			}
			if parts := strings.Split(enc, ":"); len(parts) != 3 {
				t.Fatalf("expected iv:ciphertext:tag framing, got %d segments", len(parts))
			}
			got, err := Decrypt(enc, key)
			if err != nil {
				t.Fatalf("Decrypt failed: %v", err)
			}
			if got != tt.plain {
				t.Errorf("round trip mismatch: got %q, want %q", got, tt.plain)
			}
		})
	}
}

func TestEncryptNonDeterministic(t *testing.T) {
	key, _ := GenerateRandomKey()

	enc1, err := Encrypt("same plaintext", key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	enc2, err := Encrypt("same plaintext", key)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if enc1 == enc2 {
		t.Error("two encryptions produced identical output, IV reuse suspected")
	}

	for _, enc := range []string{enc1, enc2} {
		got, err := Decrypt(enc, key)
		if err != nil || got != "same plaintext" {
			t.Errorf("Decrypt(%q) = %q, %v", enc, got, err)
		}
	}
}

func TestDecryptKeyRotationFallback(t *testing.T) {
	k1, _ := GenerateRandomKey()
	k2, _ := GenerateRandomKey()

	enc, err := Encrypt("rotated data", k1)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	// Old key later in the chain still recovers the data.
	got, err := Decrypt(enc, k2, k1)
	if err != nil {
		t.Fatalf("Decrypt with fallback failed: %v", err)
	}
	if got != "rotated data" {
		t.Errorf("got %q, want %q", got, "rotated data")
	}

	// Without the original key the data is unrecoverable.
	if _, err := Decrypt(enc, k2); !errors.Is(err, ErrUnrecoverable) {
		t.Errorf("expected ErrUnrecoverable, got %v", err)
	}
}

func TestDecryptLegacyPassThrough(t *testing.T) {
	key, _ := GenerateRandomKey()

	tests := []struct {
		name  string
		value string
	}{
		{"URL", "https://example.com/x"},
		{"URLWithColons", "http://example.com:8080/a:b:c"},
		{"NoColon", "plain value"},
		{"Empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decrypt(tt.value, key)
			if err != nil {
				t.Fatalf("Decrypt failed: %v", err)
			}
			if got != tt.value {
				t.Errorf("got %q, want unchanged %q", got, tt.value)
			}
		})
	}
}

func TestDecryptMalformed(t *testing.T) {
	key, _ := GenerateRandomKey()

	tests := []struct {
		name  string
		value string
	}{
		{"TwoSegments", "abc:def"},
		{"FourSegments", "a:b:c:d"},
		{"BadBase64", "!!!:###:$$$"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decrypt(tt.value, key)
			if !errors.Is(err, ErrUnrecoverable) {
				t.Errorf("Decrypt(%q) expected ErrUnrecoverable, got %v", tt.value, err)
			}
		})
	}
}

func TestEncryptRequiresSecret(t *testing.T) {
	if _, err := Encrypt("data", ""); err == nil {
		t.Error("expected error for missing secret")
	}
}

func TestGenerateRandomKey(t *testing.T) {
	k1, err := GenerateRandomKey()
	if err != nil {
		t.Fatalf("GenerateRandomKey failed: %v", err)
	}
	if len(k1) != 64 {
		t.Errorf("expected 64 hex chars for 256 bits, got %d", len(k1))
	}
	k2, _ := GenerateRandomKey()
	if k1 == k2 {
		t.Error("keys should be unique")
	}
}

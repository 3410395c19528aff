// Package crypto implements at-rest encryption for server-held secret
// fields. Values are sealed with AES-256-GCM under a key stretched from a
// configured secret, and decryption accepts an ordered chain of candidate
// secrets so that rotating the current secret never strands old data.
package crypto

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmarlow/keepsync/internal/util"
)

// ErrUnrecoverable indicates that no candidate secret could decrypt the
// value. Callers must treat this as "data may be corrupted or key lost",
// never as an empty plaintext.
var ErrUnrecoverable = errors.New("unrecoverable ciphertext: all candidate secrets exhausted")

var urlSchemeRE = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

// Encrypt seals plain under secret and returns the encoded form
// base64(iv):base64(ciphertext):base64(tag). A fresh random IV is generated
// per call, so two encryptions of the same plaintext differ.
func Encrypt(plain, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("encrypt called without a secret")
	}

	key := stretchKey(secret)
	sealed, err := util.EncryptAESGCM([]byte(plain), key)
	if err != nil {
		return "", err
	}

	// util.EncryptAESGCM returns iv || ciphertext || tag.
	iv := sealed[:util.GCMNonceSize]
	tag := sealed[len(sealed)-util.GCMTagSize:]
	cipherText := sealed[util.GCMNonceSize : len(sealed)-util.GCMTagSize]

	return strings.Join([]string{
		base64.StdEncoding.EncodeToString(iv),
		base64.StdEncoding.EncodeToString(cipherText),
		base64.StdEncoding.EncodeToString(tag),
	}, ":"), nil
}

// Decrypt opens an encoded value, trying each candidate secret in order and
// returning the first successful plaintext.
//
// Values that cannot be ciphertext are passed through unchanged: anything
// without a ':' separator, or anything starting with a URL scheme, is
// un-migrated legacy plaintext and must not be mangled by a decryption
// attempt. When every candidate fails the result is ErrUnrecoverable.
func Decrypt(encoded string, secrets ...string) (string, error) {
	if !strings.Contains(encoded, ":") || urlSchemeRE.MatchString(encoded) {
		return encoded, nil
	}

	parts := strings.Split(encoded, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("malformed ciphertext (%d segments): %w", len(parts), ErrUnrecoverable)
	}

	iv, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("decoding iv: %w", ErrUnrecoverable)
	}
	cipherText, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", ErrUnrecoverable)
	}
	tag, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("decoding tag: %w", ErrUnrecoverable)
	}

	sealed := make([]byte, 0, len(iv)+len(cipherText)+len(tag))
	sealed = append(sealed, iv...)
	sealed = append(sealed, cipherText...)
	sealed = append(sealed, tag...)

	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		plain, err := util.DecryptAESGCM(sealed, stretchKey(secret))
		if err == nil {
			return string(plain), nil
		}
	}
	return "", ErrUnrecoverable
}

// GenerateRandomKey returns 256 bits of randomness, hex-encoded, suitable as
// a new server secret.
func GenerateRandomKey() (string, error) {
	b, err := util.RandomBytes(32)
	if err != nil {
		return "", err
	}
	return util.HexEncode(b), nil
}

// stretchKey turns an arbitrary-length secret into an AES-256 key.
func stretchKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

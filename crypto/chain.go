package crypto

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// SecretFileName is the fallback secret file created under the data
// directory when no explicit secret is configured.
const SecretFileName = "server_secret.key"

// maxChainLen caps the number of fallback candidates. An ever-growing chain
// erodes the point of rotating at all; overflow entries are dropped with a
// warning so the operator notices.
const maxChainLen = 8

// Chain is an ordered list of candidate secrets: most-recently-configured
// first, the generated file secret last. The first element is current and
// used for all new encryptions; every element is tried for decryption.
type Chain struct {
	secrets []string
}

// LoadChain assembles the secret chain from explicitly configured secrets
// and the persisted fallback file under dataDir.
//
// If no secret is configured and no file exists, a secret is generated and
// written to the file with restrictive permissions. The file is never
// overwritten once written: data encrypted under a generated secret stays
// decryptable after an operator later configures an explicit one.
func LoadChain(configured []string, dataDir string, logger *slog.Logger) (*Chain, error) {
	var secrets []string
	for _, s := range configured {
		if s = strings.TrimSpace(s); s != "" {
			secrets = append(secrets, s)
		}
	}

	path := filepath.Join(dataDir, SecretFileName)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if s := strings.TrimSpace(string(data)); s != "" {
			secrets = append(secrets, s)
		}
	case errors.Is(err, fs.ErrNotExist):
		if len(secrets) == 0 {
			generated, err := GenerateRandomKey()
			if err != nil {
				return nil, fmt.Errorf("generating server secret: %w", err)
			}
			persisted, err := writeSecretFile(path, generated)
			if err != nil {
				return nil, err
			}
			if persisted == generated {
				logger.Info("generated server secret", "path", path)
			}
			secrets = append(secrets, persisted)
		}
	default:
		return nil, fmt.Errorf("reading secret file: %w", err)
	}

	if len(secrets) == 0 {
		return nil, fmt.Errorf("no server secret available")
	}
	if len(secrets) > maxChainLen {
		logger.Warn("secret chain exceeds cap, dropping oldest fallbacks",
			"configured", len(secrets), "cap", maxChainLen)
		secrets = secrets[:maxChainLen]
	}
	return &Chain{secrets: secrets}, nil
}

// NewChain builds a chain directly from candidate secrets, current first.
func NewChain(secrets ...string) *Chain {
	return &Chain{secrets: secrets}
}

// Current returns the secret used for new encryptions.
func (c *Chain) Current() string {
	return c.secrets[0]
}

// Candidates returns all secrets in decryption order.
func (c *Chain) Candidates() []string {
	out := make([]string, len(c.secrets))
	copy(out, c.secrets)
	return out
}

// Encrypt seals plain under the current secret.
func (c *Chain) Encrypt(plain string) (string, error) {
	return Encrypt(plain, c.Current())
}

// Decrypt opens encoded against every candidate in order.
func (c *Chain) Decrypt(encoded string) (string, error) {
	return Decrypt(encoded, c.secrets...)
}

// writeSecretFile creates the secret file exclusively. A concurrent writer
// wins: on collision the file's existing secret is returned instead.
func writeSecretFile(path, secret string) (string, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			data, readErr := os.ReadFile(path)
			if readErr != nil {
				return "", fmt.Errorf("reading existing secret file: %w", readErr)
			}
			return strings.TrimSpace(string(data)), nil
		}
		return "", fmt.Errorf("creating secret file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(secret + "\n"); err != nil {
		return "", fmt.Errorf("writing secret file: %w", err)
	}
	return secret, nil
}

package internal

import (
	"crypto/rand"
	"errors"

	"github.com/google/uuid"
)

const (
	revocationPrefix = "revoked:"
	minSecretSize    = 32
)

// NewSecret returns size bytes from crypto/rand.
func NewSecret(size int) ([]byte, error) {
	if size < minSecretSize {
		return nil, errors.New("secret size must be at least 32 bytes")
	}
	secret := make([]byte, size)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, nil
}

// NewRevocationMarker returns a fingerprint value that no token can match.
// Storing it as an account's fingerprint revokes every outstanding access
// token for that account.
func NewRevocationMarker() string {
	return revocationPrefix + uuid.NewString()
}

// IsRevocationMarker reports whether fp was produced by NewRevocationMarker.
func IsRevocationMarker(fp string) bool {
	return len(fp) > len(revocationPrefix) && fp[:len(revocationPrefix)] == revocationPrefix
}

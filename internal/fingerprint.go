package internal

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Fingerprint returns the hex SHA-256 digest of an encoded token.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// FingerprintMatches compares the fingerprint of token to stored in
// constant time.
func FingerprintMatches(stored, token string) bool {
	computed := Fingerprint(token)
	return subtle.ConstantTimeCompare([]byte(stored), []byte(computed)) == 1
}

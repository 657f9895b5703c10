// Package token generates opaque secrets and their storage hashes.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// Random returns size random bytes encoded as unpadded base64url.
func Random(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashSHA256 is the hex digest stored in place of a secret.
func HashSHA256(value string) string {
	h := sha256.Sum256([]byte(value))
	return hex.EncodeToString(h[:])
}

// Equal compares two secrets in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// APIKey is a freshly generated key. Plaintext is shown to the caller once.
type APIKey struct {
	Plaintext string
	Hash      string
	// Prefix identifies the key in listings without revealing it.
	Prefix string
}

// NewAPIKey returns prefix + 64 hex chars, its hash and a display prefix.
func NewAPIKey(prefix string) (APIKey, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return APIKey{}, err
	}
	plaintext := prefix + hex.EncodeToString(b)
	return APIKey{
		Plaintext: plaintext,
		Hash:      HashSHA256(plaintext),
		Prefix:    plaintext[:len(prefix)+8],
	}, nil
}

package utils

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA‑256 hashing for reset tokens
	"encoding/hex"  // hex encoding and decoding functions
)

// NewResetToken returns a random 32-byte token hex encoded (64 chars).  Only
// HashResetToken(raw) is ever persisted.
func NewResetToken() (string, error) {
	return randomHex(32)
}

// HashResetToken returns the SHA‑256 hex digest of a raw reset token.
func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// randomHex returns a hex‑encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

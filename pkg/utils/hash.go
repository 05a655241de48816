package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashString creates a SHA-256 hash of the input string
func HashString(input string) string {
	h := sha256.Sum256([]byte(input))
	return hex.EncodeToString(h[:])
}

// Fingerprint returns a short stable identifier for an email address so logs
// can correlate submissions without carrying the address itself
func Fingerprint(email string) string {
	return HashString(strings.ToLower(strings.TrimSpace(email)))[:12]
}

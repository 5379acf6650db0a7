package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashString returns a stable hex key for s, ignoring case and surrounding
// whitespace so equivalent questions share a cache entry.
func HashString(s string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(s))))
	return hex.EncodeToString(sum[:])
}

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint derives the deterministic cache key for a (text, model) pair.
// Text is trimmed before hashing so padding whitespace does not defeat
// deduplication; model and text are separated by a NUL byte so distinct
// pairs can never produce the same digest input.
func Fingerprint(text, model string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(h.Sum(nil))
}

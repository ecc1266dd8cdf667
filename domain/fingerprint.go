package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint computes the content fingerprint used for duplicate
// detection. Whitespace runs collapse to a single space and casing is
// ignored, so trivially reformatted submissions of the same prompt text
// map to the same fingerprint.
func Fingerprint(promptText string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(promptText), " "))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

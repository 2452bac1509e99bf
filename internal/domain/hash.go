package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashContent computes the dedup fingerprint of a log text: the lowercase
// hex SHA-256 of its UTF-8 bytes. It is a pure function of the text and is
// stable across wire formats, tenants and process restarts.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

package chunking

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash is the lowercase hex SHA-256 of the exact passage text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

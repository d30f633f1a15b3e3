package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken hashes a raw bearer token before it is used as a cache key, so
// the cache never holds a usable credential and keys stay fixed-length.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Package util holds small helpers shared across the API.
package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random 128-bit hex identifier. A non-empty prefix is
// prepended with an underscore ("doc_3fa9..."), which makes row IDs, refresh
// tokens and blob keys distinguishable in logs.
func NewID(prefix string) string {
	raw := make([]byte, 16)
	_, _ = rand.Read(raw)
	id := hex.EncodeToString(raw)
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

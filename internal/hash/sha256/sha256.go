// Package sha256 implements analysis.Hasher with SHA-256 digests.
package sha256

import (
	gosha "crypto/sha256"
	"encoding/hex"
)

// Hasher hashes byte slices to hex-encoded SHA-256 digests.
type Hasher struct{}

// New constructs a Hasher.
func New() *Hasher { return &Hasher{} }

// Hash returns the hex digest of data.
func (Hasher) Hash(data []byte) (string, error) {
	sum := gosha.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

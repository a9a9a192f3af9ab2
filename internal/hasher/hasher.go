// Package hasher computes the two-tier content fingerprint used for
// exact-duplicate grouping.
//
// Files up to fullHashLimit are hashed in full. Above that, only the first
// and last probeSize bytes plus the decimal size are hashed, bounding work
// per file regardless of size. Same-size files with identical head and tail
// bytes therefore collide above the limit; that trade-off is part of the
// exact-duplicate contract.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

const (
	// fullHashLimit is the largest size hashed in full (10 MiB).
	fullHashLimit = 10 << 20
	// probeSize is the size of the head/tail probes for large files (1 MiB).
	probeSize = 1 << 20
)

// Fingerprint returns the hex-encoded SHA-256 fingerprint of content.
func Fingerprint(content []byte) string {
	if len(content) <= fullHashLimit {
		sum := sha256.Sum256(content)
		return hex.EncodeToString(sum[:])
	}

	h := sha256.New()
	h.Write(content[:probeSize])
	h.Write(content[len(content)-probeSize:])
	h.Write([]byte(strconv.Itoa(len(content))))
	return hex.EncodeToString(h.Sum(nil))
}

package hasher

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

// =============================================================================
// Section 1.1: Full-Hash Tier
// =============================================================================

// TestFingerprintSmallIsFullSHA256 tests that content at or below the limit
// is hashed in full.
func TestFingerprintSmallIsFullSHA256(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
	}{
		{"empty", []byte{}},
		{"short text", []byte("hello world")},
		{"exactly at limit", bytes.Repeat([]byte{0xAB}, fullHashLimit)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum := sha256.Sum256(tt.content)
			want := hex.EncodeToString(sum[:])
			if got := Fingerprint(tt.content); got != want {
				t.Errorf("Fingerprint() = %s, want full sha256 %s", got, want)
			}
		})
	}
}

// TestFingerprintDeterministic tests that equal content always fingerprints
// equally and different content differently.
func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint([]byte("same content"))
	b := Fingerprint([]byte("same content"))
	c := Fingerprint([]byte("other content"))

	if a != b {
		t.Errorf("equal content produced different fingerprints: %s vs %s", a, b)
	}
	if a == c {
		t.Errorf("different content produced equal fingerprints: %s", a)
	}
}

// =============================================================================
// Section 1.2: Probe Tier
// =============================================================================

// TestFingerprintTierBoundary tests that the probe tier kicks in one byte
// above the limit.
func TestFingerprintTierBoundary(t *testing.T) {
	content := bytes.Repeat([]byte{0x01}, fullHashLimit+1)

	sum := sha256.Sum256(content)
	if Fingerprint(content) == hex.EncodeToString(sum[:]) {
		t.Error("content above limit should not use the full-content hash")
	}
}

// TestFingerprintProbeCollision tests the documented collision: same-size
// large files with identical head and tail fingerprints collide even when
// middle bytes differ.
func TestFingerprintProbeCollision(t *testing.T) {
	a := bytes.Repeat([]byte{0x01}, fullHashLimit+1024)
	b := bytes.Repeat([]byte{0x01}, fullHashLimit+1024)
	b[fullHashLimit/2] = 0xFF // differs only in the middle

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("large files differing only in the middle should collide")
	}
}

// TestFingerprintProbeDistinguishes tests that head, tail and size changes
// each change the probe-tier fingerprint.
func TestFingerprintProbeDistinguishes(t *testing.T) {
	base := bytes.Repeat([]byte{0x01}, fullHashLimit+1024)

	headDiff := bytes.Clone(base)
	headDiff[0] = 0xFF
	tailDiff := bytes.Clone(base)
	tailDiff[len(tailDiff)-1] = 0xFF
	sizeDiff := bytes.Repeat([]byte{0x01}, fullHashLimit+2048)

	want := Fingerprint(base)
	tests := []struct {
		name    string
		content []byte
	}{
		{"head differs", headDiff},
		{"tail differs", tailDiff},
		{"size differs", sizeDiff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Fingerprint(tt.content) == want {
				t.Error("fingerprint should differ")
			}
		})
	}
}

// TestFingerprintHexOutput tests the output encoding.
func TestFingerprintHexOutput(t *testing.T) {
	got := Fingerprint([]byte("x"))
	if len(got) != 64 {
		t.Fatalf("fingerprint length = %d, want 64 hex chars", len(got))
	}
	if _, err := hex.DecodeString(got); err != nil {
		t.Errorf("fingerprint is not valid hex: %v", err)
	}
}

package detect

import (
	"testing"

	"github.com/drivedupe/drivedupe/internal/types"
)

func hashedFile(id, name, hash string, size int64, modified string) *types.File {
	return &types.File{
		ID:           id,
		Name:         name,
		Size:         size,
		LastModified: modified,
		ContentHash:  hash,
	}
}

// =============================================================================
// Section 4.1: Exact Detector
// =============================================================================

// TestExactGroupsByHash tests bucketing, primary selection and savings.
func TestExactGroupsByHash(t *testing.T) {
	files := []*types.File{
		hashedFile("a", "new_copy.txt", "h1", 100, "2026-02-01T00:00:00Z"),
		hashedFile("b", "original.txt", "h1", 100, "2026-01-01T00:00:00Z"),
		hashedFile("c", "unrelated.txt", "h2", 50, "2026-01-15T00:00:00Z"),
		hashedFile("d", "third_copy.txt", "h1", 100, "2026-03-01T00:00:00Z"),
	}

	groups := Exact(files)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}

	g := groups[0]
	if g.Kind != types.GroupExact {
		t.Errorf("Kind = %q, want %q", g.Kind, types.GroupExact)
	}
	if g.Primary.ID != "b" {
		t.Errorf("primary = %s, want oldest file b", g.Primary.ID)
	}
	if len(g.Duplicates) != 2 {
		t.Fatalf("got %d duplicates, want 2", len(g.Duplicates))
	}
	if g.Similarity != 1.0 {
		t.Errorf("Similarity = %v, want 1.0", g.Similarity)
	}
	if g.SavingsBytes != 200 {
		t.Errorf("SavingsBytes = %d, want 200", g.SavingsBytes)
	}
	if g.ID == "" {
		t.Error("group has no ID")
	}
}

// TestExactNoGroups tests that unique hashes produce nothing.
func TestExactNoGroups(t *testing.T) {
	files := []*types.File{
		hashedFile("a", "a.txt", "h1", 10, "2026-01-01T00:00:00Z"),
		hashedFile("b", "b.txt", "h2", 10, "2026-01-01T00:00:00Z"),
	}
	if groups := Exact(files); len(groups) != 0 {
		t.Errorf("got %d groups, want 0", len(groups))
	}
}

// TestExactSkipsUnhashed tests that files without fingerprints are ignored.
func TestExactSkipsUnhashed(t *testing.T) {
	files := []*types.File{
		hashedFile("a", "a.txt", "", 10, "2026-01-01T00:00:00Z"),
		hashedFile("b", "b.txt", "", 10, "2026-01-01T00:00:00Z"),
	}
	if groups := Exact(files); len(groups) != 0 {
		t.Errorf("empty hashes grouped: got %d groups, want 0", len(groups))
	}
}

// TestExactPrimaryTieBreaksOnName tests the name tiebreak for equal times.
func TestExactPrimaryTieBreaksOnName(t *testing.T) {
	files := []*types.File{
		hashedFile("x", "zeta.txt", "h", 10, "2026-01-01T00:00:00Z"),
		hashedFile("y", "alpha.txt", "h", 10, "2026-01-01T00:00:00Z"),
	}
	groups := Exact(files)
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	if groups[0].Primary.Name != "alpha.txt" {
		t.Errorf("primary = %s, want alpha.txt", groups[0].Primary.Name)
	}
}

// TestExactDeterministicOrder tests that group order is stable across runs.
func TestExactDeterministicOrder(t *testing.T) {
	files := []*types.File{
		hashedFile("a1", "a.txt", "h1", 10, "2026-02-01T00:00:00Z"),
		hashedFile("a2", "a2.txt", "h1", 10, "2026-02-02T00:00:00Z"),
		hashedFile("b1", "b.txt", "h2", 10, "2026-01-01T00:00:00Z"),
		hashedFile("b2", "b2.txt", "h2", 10, "2026-01-02T00:00:00Z"),
	}

	first := Exact(files)
	for range 10 {
		again := Exact(files)
		for i := range first {
			if again[i].Primary.ID != first[i].Primary.ID {
				t.Fatal("group order changed between runs")
			}
		}
	}
	if first[0].Primary.ID != "b1" {
		t.Errorf("groups not ordered by primary: first primary = %s", first[0].Primary.ID)
	}
}

package similarity

import (
	"math"
	"testing"

	"github.com/drivedupe/drivedupe/internal/types"
)

func metaFile(size int64, modified, mime string) *types.File {
	return &types.File{Size: size, LastModified: modified, MimeType: mime}
}

// =============================================================================
// Section 3.3: Metadata Similarity
// =============================================================================

// TestMetadataSimilarityScoring tests the individual signal contributions.
func TestMetadataSimilarityScoring(t *testing.T) {
	tests := []struct {
		name string
		f1   *types.File
		f2   *types.File
		want float64
	}{
		{
			"all signals max",
			metaFile(1000, "2026-01-10T00:00:00Z", "application/pdf"),
			metaFile(1000, "2026-01-10T12:00:00Z", "application/pdf"),
			1.0, // 0.5 + 0.3 + 0.2
		},
		{
			"size ratio 0.9 tier",
			metaFile(900, "", ""),
			metaFile(1000, "", ""),
			0.5,
		},
		{
			"size ratio 0.8 tier",
			metaFile(800, "", ""),
			metaFile(1000, "", ""),
			0.3,
		},
		{
			"size ratio below 0.8",
			metaFile(500, "", ""),
			metaFile(1000, "", ""),
			0,
		},
		{
			"within a week",
			metaFile(0, "2026-01-01T00:00:00Z", ""),
			metaFile(0, "2026-01-05T00:00:00Z", ""),
			0.2,
		},
		{
			"within a month",
			metaFile(0, "2026-01-01T00:00:00Z", ""),
			metaFile(0, "2026-01-20T00:00:00Z", ""),
			0.1,
		},
		{
			"beyond a month",
			metaFile(0, "2026-01-01T00:00:00Z", ""),
			metaFile(0, "2026-03-15T00:00:00Z", ""),
			0,
		},
		{
			"same mime only",
			metaFile(0, "", "text/plain"),
			metaFile(0, "", "text/plain"),
			0.2,
		},
		{
			"empty mime never matches",
			metaFile(0, "", ""),
			metaFile(0, "", ""),
			0,
		},
		{
			"unparseable dates ignored",
			metaFile(1000, "yesterday", "a"),
			metaFile(1000, "last week", "a"),
			0.7, // size 0.5 + mime 0.2
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MetadataSimilarity(tt.f1, tt.f2); !almostEqual(got, tt.want) {
				t.Errorf("MetadataSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestMetadataSimilaritySymmetric tests argument-order independence.
func TestMetadataSimilaritySymmetric(t *testing.T) {
	f1 := metaFile(800, "2026-01-01T00:00:00Z", "application/pdf")
	f2 := metaFile(1000, "2026-01-06T00:00:00Z", "application/pdf")

	if a, b := MetadataSimilarity(f1, f2), MetadataSimilarity(f2, f1); !almostEqual(a, b) {
		t.Errorf("asymmetric: %v vs %v", a, b)
	}
}

// TestMetadataSimilarityCapped tests the 1.0 ceiling.
func TestMetadataSimilarityCapped(t *testing.T) {
	f := metaFile(1000, "2026-01-10T00:00:00Z", "application/pdf")
	if got := MetadataSimilarity(f, f); got > 1.0+1e-9 {
		t.Errorf("MetadataSimilarity = %v, want <= 1.0", got)
	}
	if math.IsNaN(MetadataSimilarity(metaFile(0, "", ""), metaFile(0, "", ""))) {
		t.Error("MetadataSimilarity returned NaN")
	}
}

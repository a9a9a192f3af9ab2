package similarity

import (
	"math"
	"time"

	"github.com/drivedupe/drivedupe/internal/types"
)

// MetadataSimilarity scores two files on size, modification time and MIME
// type. Symmetric, in [0, 1]:
//
//	size ratio min/max >= 0.9 -> +0.5, >= 0.8 -> +0.3
//	modified day delta   == 0 -> +0.3, <= 7 -> +0.2, <= 30 -> +0.1
//	same MIME type            -> +0.2
func MetadataSimilarity(f1, f2 *types.File) float64 {
	var score float64

	if f1.Size > 0 && f2.Size > 0 {
		ratio := float64(min(f1.Size, f2.Size)) / float64(max(f1.Size, f2.Size))
		switch {
		case ratio >= 0.9:
			score += 0.5
		case ratio >= 0.8:
			score += 0.3
		}
	}

	if days, ok := dayDelta(f1.LastModified, f2.LastModified); ok {
		switch {
		case days == 0:
			score += 0.3
		case days <= 7:
			score += 0.2
		case days <= 30:
			score += 0.1
		}
	}

	if f1.MimeType != "" && f1.MimeType == f2.MimeType {
		score += 0.2
	}

	return math.Min(score, 1.0)
}

// dayDelta returns the absolute whole-day difference between two ISO-8601
// timestamps. ok=false when either fails to parse.
func dayDelta(a, b string) (days int, ok bool) {
	ta, errA := time.Parse(time.RFC3339, a)
	tb, errB := time.Parse(time.RFC3339, b)
	if errA != nil || errB != nil {
		return 0, false
	}
	delta := ta.Sub(tb)
	if delta < 0 {
		delta = -delta
	}
	return int(delta.Hours() / 24), true
}

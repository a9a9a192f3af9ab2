package similarity

import (
	"math"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// MatcherRatio is the character-level SequenceMatcher ratio of two strings:
// 2*M/T where M is the number of matching characters and T the total length.
func MatcherRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}

// TokenJaccard is the Jaccard index of the whitespace-token sets of two
// strings.
func TokenJaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}

// TextSimilarity is the degraded-mode composite text score:
// 0.4 x character ratio + 0.6 x token Jaccard, on lowercased trimmed inputs.
// Deterministic and pure.
func TextSimilarity(a, b string) float64 {
	a = strings.TrimSpace(strings.ToLower(a))
	b = strings.TrimSpace(strings.ToLower(b))
	if a == "" || b == "" {
		return 0
	}
	return 0.4*MatcherRatio(a, b) + 0.6*TokenJaccard(a, b)
}

// PlainFilenameSimilarity scores two file names without embeddings. It is
// both the degraded-mode filename signal and the score used when averaging a
// near group's reported similarity.
func PlainFilenameSimilarity(name1, name2 string) float64 {
	return TextSimilarity(name1, name2)
}

// Cosine is the cosine similarity of two vectors, clamped to [0, 1].
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Min(1, math.Max(0, cos))
}

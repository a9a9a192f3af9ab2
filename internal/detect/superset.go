package detect

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/drivedupe/drivedupe/internal/similarity"
	"github.com/drivedupe/drivedupe/internal/types"
)

// Superset detection thresholds.
const (
	// minCandidateText is the minimum trimmed text length to participate.
	minCandidateText = 100
	// minSizeRatio is how much larger the superset must be.
	minSizeRatio = 1.10
	// chunkContainedThreshold marks a chunk of the smaller file as
	// contained when its best cosine match in the larger file reaches it.
	chunkContainedThreshold = 0.98
	// containmentThreshold is the fraction of contained chunks required to
	// emit a group.
	containmentThreshold = 0.95
	// sentencesPerChunk groups split sentences into embedding units.
	sentencesPerChunk = 5
	// windowSize is the fixed-window fallback when a text has neither
	// sentence terminators nor newlines.
	windowSize = 500
)

var sentenceRE = regexp.MustCompile(`[.!?]+\s+`)

// SupersetDetector finds pairs where the smaller file's content is contained
// in a larger, newer file. Asymmetric by construction: only "smaller is
// contained in larger" is ever tested.
type SupersetDetector struct {
	model  *similarity.Model
	logger *zap.Logger
}

// NewSuperset creates a SupersetDetector.
func NewSuperset(model *similarity.Model, logger *zap.Logger) *SupersetDetector {
	return &SupersetDetector{model: model, logger: logger}
}

// Run compares all candidate pairs and returns superset_subset groups.
// Files whose IDs are in exclude (members of exact groups) do not
// participate, which keeps any file from being claimed by two detectors.
func (d *SupersetDetector) Run(ctx context.Context, files []*types.File, exclude map[string]struct{}) []*types.DuplicateGroup {
	var candidates []*types.File
	for _, f := range files {
		if _, taken := exclude[f.ID]; taken {
			continue
		}
		if len(strings.TrimSpace(f.ExtractedText)) > minCandidateText {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) < 2 {
		return nil
	}

	// Chunks and their embeddings are computed once per file and reused
	// across all pairs involving that file.
	chunkCache := make(map[string][]string)
	vecCache := make(map[string][][]float32)
	vecOK := make(map[string]bool)

	var groups []*types.DuplicateGroup
	seenPairs := make(map[[2]string]struct{})
	// Files claimed by an emitted group, primary or duplicate. Claiming
	// both ends keeps containment chains (S in L, L in X) from putting
	// one file in two groups.
	consumed := make(map[string]struct{})

	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			if err := ctx.Err(); err != nil {
				return groups
			}

			smaller, larger := orderBySize(candidates[i], candidates[j])
			if smaller == nil {
				continue // equal sizes are never superset/subset
			}

			pairKey := sortedPair(smaller.ID, larger.ID)
			if _, done := seenPairs[pairKey]; done {
				continue
			}
			if _, taken := consumed[smaller.ID]; taken {
				continue
			}
			if _, taken := consumed[larger.ID]; taken {
				continue
			}

			if float64(larger.Size)/float64(smaller.Size) < minSizeRatio {
				continue
			}
			// The superset must not be older than the subset.
			if larger.LastModified < smaller.LastModified {
				continue
			}

			score := d.containment(ctx, smaller, larger, chunkCache, vecCache, vecOK)
			if score < containmentThreshold {
				continue
			}

			seenPairs[pairKey] = struct{}{}
			consumed[smaller.ID] = struct{}{}
			consumed[larger.ID] = struct{}{}
			groups = append(groups, &types.DuplicateGroup{
				ID:           uuid.NewString(),
				Kind:         types.GroupSupersetSubset,
				Primary:      larger,
				Duplicates:   []*types.File{smaller},
				Similarity:   score,
				Containment:  score,
				SavingsBytes: smaller.Size,
			})
			d.logger.Info("superset/subset pair found",
				zap.String("superset", larger.Name),
				zap.String("subset", smaller.Name),
				zap.Float64("containment", score))
		}
	}
	return groups
}

// containment computes the fraction of the smaller file's chunks whose best
// match among the larger file's chunks reaches chunkContainedThreshold.
func (d *SupersetDetector) containment(ctx context.Context, smaller, larger *types.File,
	chunkCache map[string][]string, vecCache map[string][][]float32, vecOK map[string]bool) float64 {

	smallChunks := cachedChunks(chunkCache, smaller)
	largeChunks := cachedChunks(chunkCache, larger)
	if len(smallChunks) == 0 || len(largeChunks) == 0 {
		return 0
	}

	smallVecs, smallOK := d.cachedVectors(ctx, vecCache, vecOK, smaller.ID, smallChunks)
	largeVecs, largeOK := d.cachedVectors(ctx, vecCache, vecOK, larger.ID, largeChunks)
	if !smallOK || !largeOK {
		return fallbackContainment(smallChunks, largeChunks)
	}

	contained := 0
	for _, sv := range smallVecs {
		best := 0.0
		for _, lv := range largeVecs {
			if cos := similarity.Cosine(sv, lv); cos > best {
				best = cos
			}
		}
		if best >= chunkContainedThreshold {
			contained++
		}
	}
	return float64(contained) / float64(len(smallChunks))
}

func cachedChunks(cache map[string][]string, f *types.File) []string {
	if chunks, ok := cache[f.ID]; ok {
		return chunks
	}
	chunks := chunkText(f.ExtractedText)
	cache[f.ID] = chunks
	return chunks
}

func (d *SupersetDetector) cachedVectors(ctx context.Context, cache map[string][][]float32,
	okCache map[string]bool, fileID string, chunks []string) ([][]float32, bool) {
	if ok, seen := okCache[fileID]; seen {
		return cache[fileID], ok
	}
	vectors, ok := d.model.Embed(ctx, chunks)
	cache[fileID] = vectors
	okCache[fileID] = ok
	return vectors, ok
}

// fallbackContainment is the degraded-mode containment: a chunk counts as
// contained when its best character-ratio match reaches the same threshold.
func fallbackContainment(smallChunks, largeChunks []string) float64 {
	contained := 0
	for _, sc := range smallChunks {
		best := 0.0
		for _, lc := range largeChunks {
			if r := similarity.MatcherRatio(strings.ToLower(sc), strings.ToLower(lc)); r > best {
				best = r
			}
		}
		if best >= chunkContainedThreshold {
			contained++
		}
	}
	return float64(contained) / float64(len(smallChunks))
}

// chunkText splits text into sentences on [.!?]+ terminators and groups them
// into chunks of sentencesPerChunk. Texts without sentence terminators fall
// back to newline splitting, then to fixed windows of windowSize characters.
func chunkText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	sentences := splitNonEmpty(sentenceRE.Split(text, -1))
	if len(sentences) <= 1 {
		if strings.Contains(text, "\n") {
			sentences = splitNonEmpty(strings.Split(text, "\n"))
		} else {
			// Window on runes, not bytes: a byte cut could split a
			// multi-byte character and emit invalid UTF-8.
			runes := []rune(text)
			for i := 0; i < len(runes); i += windowSize {
				end := min(i+windowSize, len(runes))
				sentences = append(sentences, string(runes[i:end]))
			}
		}
	}

	var chunks []string
	for i := 0; i < len(sentences); i += sentencesPerChunk {
		end := min(i+sentencesPerChunk, len(sentences))
		chunk := strings.TrimSpace(strings.Join(sentences[i:end], " "))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}

func splitNonEmpty(parts []string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func orderBySize(a, b *types.File) (smaller, larger *types.File) {
	switch {
	case a.Size < b.Size:
		return a, b
	case b.Size < a.Size:
		return b, a
	default:
		return nil, nil
	}
}

func sortedPair(a, b string) [2]string {
	if a < b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

package detect

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/drivedupe/drivedupe/internal/extract"
	"github.com/drivedupe/drivedupe/internal/similarity"
	"github.com/drivedupe/drivedupe/internal/types"
)

// Near detection thresholds and weights.
const (
	// metadataPreFilter skips pairs whose metadata diverges too far before
	// any embedding work happens.
	metadataPreFilter = 0.30
	// nearTextThreshold admits a file into a cluster of text-bearing files.
	nearTextThreshold = 0.75
	// nearNoTextThreshold is the stricter bar for files without text, and
	// also the similarity recorded for such groups.
	nearNoTextThreshold = 0.85

	contentWeight  = 0.5
	filenameWeight = 0.3
	metadataWeight = 0.2

	// Weights when no content similarity is available.
	filenameOnlyWeight = 0.6
	metadataOnlyWeight = 0.4
)

// NearDetector clusters files that are not byte-identical but score above
// the near threshold on a weighted combination of content, filename and
// metadata similarity.
type NearDetector struct {
	model  *similarity.Model
	logger *zap.Logger
}

// NewNear creates a NearDetector.
func NewNear(model *similarity.Model, logger *zap.Logger) *NearDetector {
	return &NearDetector{model: model, logger: logger}
}

// Run clusters text-bearing files first, then files without text, and
// returns the near groups. The primary of each group is the first file
// encountered in traversal order.
func (d *NearDetector) Run(ctx context.Context, files []*types.File) []*types.DuplicateGroup {
	var withText, withoutText []*types.File
	for _, f := range files {
		if f.HasText() {
			withText = append(withText, f)
		} else {
			withoutText = append(withoutText, f)
		}
	}
	d.logger.Info("near-duplicate candidates",
		zap.Int("with_text", len(withText)), zap.Int("without_text", len(withoutText)))

	clustered := make(map[string]struct{})
	groups := d.clusterTextFiles(ctx, withText, clustered)
	groups = append(groups, d.clusterNoTextFiles(ctx, withoutText, clustered)...)
	return groups
}

// clusterTextFiles runs pass A: content + filename + metadata signals.
func (d *NearDetector) clusterTextFiles(ctx context.Context, files []*types.File, clustered map[string]struct{}) []*types.DuplicateGroup {
	var groups []*types.DuplicateGroup

	for i, f1 := range files {
		if err := ctx.Err(); err != nil {
			return groups
		}
		if _, done := clustered[f1.ID]; done {
			continue
		}

		cluster := []*types.File{f1}
		text1 := extract.Normalize(f1.ExtractedText)

		for _, f2 := range files[i+1:] {
			if _, done := clustered[f2.ID]; done {
				continue
			}

			metadataSim := similarity.MetadataSimilarity(f1, f2)
			if metadataSim < metadataPreFilter {
				continue
			}

			filenameSim := d.model.FilenameSimilarity(ctx, f1.Name, f2.Name)
			contentSim := 0.0
			if text2 := extract.Normalize(f2.ExtractedText); text1 != "" && text2 != "" {
				contentSim = d.model.Similarity(ctx, text1, text2)
			}

			if combine(contentSim, filenameSim, metadataSim) >= nearTextThreshold {
				cluster = append(cluster, f2)
				clustered[f2.ID] = struct{}{}
			}
		}

		if len(cluster) < 2 {
			continue
		}
		clustered[f1.ID] = struct{}{}

		method := types.DetectionContentBased
		if text1 == "" {
			method = types.DetectionFilenameMeta
		}
		groups = append(groups, d.newGroup(cluster, d.averageScore(ctx, cluster, text1), method))
	}
	return groups
}

// averageScore recomputes the mean combined score between the primary and
// each other member. The averaging deliberately uses the plain filename
// similarity rather than the embedding signal used during clustering.
func (d *NearDetector) averageScore(ctx context.Context, cluster []*types.File, text1 string) float64 {
	primary := cluster[0]
	var total float64
	for _, f2 := range cluster[1:] {
		filenameSim := similarity.PlainFilenameSimilarity(primary.Name, f2.Name)
		metadataSim := similarity.MetadataSimilarity(primary, f2)
		contentSim := 0.0
		if text2 := extract.Normalize(f2.ExtractedText); text1 != "" && text2 != "" {
			contentSim = d.model.Similarity(ctx, text1, text2)
		}
		total += combine(contentSim, filenameSim, metadataSim)
	}
	return total / float64(len(cluster)-1)
}

// clusterNoTextFiles runs pass B: filename + metadata only, with the higher
// threshold. The recorded similarity is the threshold itself, not a
// recomputed mean.
func (d *NearDetector) clusterNoTextFiles(ctx context.Context, files []*types.File, clustered map[string]struct{}) []*types.DuplicateGroup {
	var groups []*types.DuplicateGroup

	for i, f1 := range files {
		if err := ctx.Err(); err != nil {
			return groups
		}
		if _, done := clustered[f1.ID]; done {
			continue
		}

		cluster := []*types.File{f1}
		for _, f2 := range files[i+1:] {
			if _, done := clustered[f2.ID]; done {
				continue
			}

			filenameSim := similarity.PlainFilenameSimilarity(f1.Name, f2.Name)
			metadataSim := similarity.MetadataSimilarity(f1, f2)
			combined := filenameOnlyWeight*filenameSim + metadataOnlyWeight*metadataSim

			if combined >= nearNoTextThreshold {
				cluster = append(cluster, f2)
				clustered[f2.ID] = struct{}{}
			}
		}

		if len(cluster) < 2 {
			continue
		}
		clustered[f1.ID] = struct{}{}
		groups = append(groups, d.newGroup(cluster, nearNoTextThreshold, types.DetectionFilenameMeta))
	}
	return groups
}

func (d *NearDetector) newGroup(cluster []*types.File, score float64, method string) *types.DuplicateGroup {
	duplicates := cluster[1:]
	var savings int64
	for _, f := range duplicates {
		savings += f.Size
	}
	return &types.DuplicateGroup{
		ID:              uuid.NewString(),
		Kind:            types.GroupNear,
		Primary:         cluster[0],
		Duplicates:      duplicates,
		Similarity:      score,
		SavingsBytes:    savings,
		DetectionMethod: method,
	}
}

// combine applies the multi-signal weights. Content dominates when present;
// otherwise filename and metadata share the weight.
func combine(contentSim, filenameSim, metadataSim float64) float64 {
	if contentSim > 0 {
		return contentWeight*contentSim + filenameWeight*filenameSim + metadataWeight*metadataSim
	}
	return filenameOnlyWeight*filenameSim + metadataOnlyWeight*metadataSim
}

// Package detect implements the three duplicate detectors: exact fingerprint
// grouping, superset/subset containment, and multi-signal near-duplicate
// clustering. Detectors operate on immutable file snapshots captured after
// per-file processing; they run in that order and the pipeline reconciles
// their outputs.
package detect

import (
	"github.com/google/uuid"

	"github.com/drivedupe/drivedupe/internal/types"
)

// Exact groups files by content fingerprint. Every fingerprint bucket with
// two or more members becomes one group; members sort ascending by
// (LastModified, Name) and the earliest becomes the primary.
func Exact(files []*types.File) []*types.DuplicateGroup {
	byHash := make(map[string][]*types.File)
	for _, f := range files {
		if f.ContentHash != "" {
			byHash[f.ContentHash] = append(byHash[f.ContentHash], f)
		}
	}

	var groups []*types.DuplicateGroup
	for _, bucket := range byHash {
		if len(bucket) < 2 {
			continue
		}
		members := types.NewFileSet(bucket).Items()
		duplicates := members[1:]

		var savings int64
		for _, d := range duplicates {
			savings += d.Size
		}

		groups = append(groups, &types.DuplicateGroup{
			ID:           uuid.NewString(),
			Kind:         types.GroupExact,
			Primary:      members[0],
			Duplicates:   duplicates,
			Similarity:   1.0,
			SavingsBytes: savings,
		})
	}

	// Map iteration order is non-deterministic; order groups by primary.
	sorted := types.NewSorted(groups, func(g *types.DuplicateGroup) string {
		return g.Primary.LastModified + "\x00" + g.Primary.Name
	})
	return sorted.Items()
}

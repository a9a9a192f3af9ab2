// Package pipeline orchestrates one scan: folder traversal, per-file
// processing, the three detectors, and cross-detector reconciliation.
//
// # Data Flow
//
//	Run() starts
//	    │
//	    ├──► Provider.ListFiles (recursive, paginated, folder-deduplicated)
//	    │
//	    ├──► per-file processing (bounded worker pool)
//	    │        fetch bytes → fingerprint → extract text → release bytes
//	    │        errors recorded per file, scan continues
//	    │
//	    ├──► ExactDetector → SupersetDetector → NearDetector (in order)
//	    │
//	    ├──► reconciliation (near groups lose members claimed elsewhere)
//	    │
//	    └──► ScanReport
//
// # Concurrency Model
//
// Per-file processing overlaps network fetches with CPU-bound hashing and
// extraction through an errgroup bounded by the worker limit. Results land
// in a slice indexed by listing position, so traversal order survives the
// parallelism (the near detector's primary selection depends on it). The
// raw byte buffer never outlives its file's processing step.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/drivedupe/drivedupe/internal/detect"
	"github.com/drivedupe/drivedupe/internal/extract"
	"github.com/drivedupe/drivedupe/internal/hasher"
	"github.com/drivedupe/drivedupe/internal/progress"
	"github.com/drivedupe/drivedupe/internal/similarity"
	"github.com/drivedupe/drivedupe/internal/storage"
	"github.com/drivedupe/drivedupe/internal/types"
)

const (
	// defaultWorkers bounds in-flight fetches when the caller does not.
	defaultWorkers = 6
	// maxReportedErrors caps the per-file error list in the report.
	// FilesFailed always carries the true count.
	maxReportedErrors = 10
)

// Orchestrator runs one scan end to end.
//
// The orchestrator is designed for single-use per scan: create with New(),
// call Run() once per request.
type Orchestrator struct {
	provider     storage.Provider
	model        *similarity.Model
	extractor    *extract.Extractor
	workers      int
	showProgress bool
	logger       *zap.Logger
}

// New creates an Orchestrator. workers <= 0 selects the default bound.
func New(provider storage.Provider, model *similarity.Model, extractor *extract.Extractor,
	workers int, showProgress bool, logger *zap.Logger) *Orchestrator {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Orchestrator{
		provider:     provider,
		model:        model,
		extractor:    extractor,
		workers:      workers,
		showProgress: showProgress,
		logger:       logger,
	}
}

// stats tracks per-file processing progress using atomic counters so worker
// goroutines update them without locks.
type stats struct {
	totalFiles     int
	processedFiles atomic.Int64
	failedFiles    atomic.Int64
	fetchedBytes   atomic.Int64
	startTime      time.Time
}

func (s *stats) String() string {
	return fmt.Sprintf("Processed %d/%d files (%s fetched), %d failed in %.1fs",
		s.processedFiles.Load(), s.totalFiles,
		humanize.IBytes(uint64(s.fetchedBytes.Load())),
		s.failedFiles.Load(), time.Since(s.startTime).Seconds())
}

// Run executes a scan and returns the final report.
//
// Per-file errors are collected and reported; they never abort the scan.
// Listing errors and cancellation abort the scan and discard partial work.
func (o *Orchestrator) Run(ctx context.Context, req types.ScanRequest) (*types.ScanReport, error) {
	if len(req.FolderIDs) == 0 {
		return nil, &types.ValidationError{Msg: "no folders selected, select at least one folder to scan"}
	}

	files, err := o.provider.ListFiles(ctx, req.FolderIDs, req.IncludeSubfolders)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	if len(files) == 0 {
		return &types.ScanReport{
			Status:         "completed",
			Exact:          []*types.DuplicateGroup{},
			SupersetSubset: []*types.DuplicateGroup{},
			Near:           []*types.DuplicateGroup{},
			Errors:         []types.FileError{},
			Message:        "No files found. Make sure the selected folders contain files.",
		}, nil
	}

	processed, fileErrors, err := o.processFiles(ctx, files)
	if err != nil {
		return nil, err
	}

	exact := detect.Exact(processed)
	claimed := claimedIDs(exact)
	superset := detect.NewSuperset(o.model, o.logger).Run(ctx, processed, claimed)
	near := detect.NewNear(o.model, o.logger).Run(ctx, processed)

	for id := range claimedIDs(superset) {
		claimed[id] = struct{}{}
	}
	near = reconcileNear(near, claimed)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return buildReport(len(files), processed, exact, superset, near, fileErrors), nil
}

// processFiles fetches, fingerprints and extracts every file through a
// bounded worker pool. Results keep listing order. Only cancellation
// returns an error; per-file failures are recorded and skipped.
func (o *Orchestrator) processFiles(ctx context.Context, files []*types.File) ([]*types.File, []types.FileError, error) {
	st := &stats{totalFiles: len(files), startTime: time.Now()}
	bar := progress.New(o.showProgress)
	bar.Describe(st)

	results := make([]*types.File, len(files))
	var (
		mu         sync.Mutex
		fileErrors []types.FileError
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := o.processFile(gctx, f); err != nil {
				// Cancellation aborts; anything else is a per-file error.
				if gctx.Err() != nil {
					return gctx.Err()
				}
				st.failedFiles.Add(1)
				o.logger.Warn("file processing failed",
					zap.String("file", f.Name), zap.Error(err))
				mu.Lock()
				fileErrors = append(fileErrors, types.FileError{FileName: f.Name, Error: err.Error()})
				mu.Unlock()
			} else {
				st.processedFiles.Add(1)
				st.fetchedBytes.Add(f.Size)
				results[i] = f
			}
			bar.Describe(st)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	bar.Finish(st)

	processed := make([]*types.File, 0, len(files))
	for _, f := range results {
		if f != nil {
			processed = append(processed, f)
		}
	}
	return processed, fileErrors, nil
}

// processFile runs the per-file stage: fetch, fingerprint, extract. The
// content buffer is scoped to this call and released when it returns.
func (o *Orchestrator) processFile(ctx context.Context, f *types.File) error {
	content, err := o.provider.Fetch(ctx, f.ID)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	f.ContentHash = hasher.Fingerprint(content)
	f.ExtractedText = o.extractor.Extract(content, f.MimeType, f.Name)
	return nil
}

// claimedIDs collects every file ID appearing as primary or duplicate.
func claimedIDs(groups []*types.DuplicateGroup) map[string]struct{} {
	claimed := make(map[string]struct{})
	for _, g := range groups {
		claimed[g.Primary.ID] = struct{}{}
		for _, d := range g.Duplicates {
			claimed[d.ID] = struct{}{}
		}
	}
	return claimed
}

// reconcileNear drops near groups whose primary is already claimed by an
// exact or superset group, removes claimed duplicate members, and drops
// groups left without duplicates. Savings are recomputed for survivors.
func reconcileNear(near []*types.DuplicateGroup, claimed map[string]struct{}) []*types.DuplicateGroup {
	kept := near[:0:0]
	for _, g := range near {
		if _, taken := claimed[g.Primary.ID]; taken {
			continue
		}
		survivors := g.Duplicates[:0:0]
		var savings int64
		for _, d := range g.Duplicates {
			if _, taken := claimed[d.ID]; taken {
				continue
			}
			survivors = append(survivors, d)
			savings += d.Size
		}
		if len(survivors) == 0 {
			continue
		}
		g.Duplicates = survivors
		g.SavingsBytes = savings
		kept = append(kept, g)
	}
	return kept
}

func buildReport(totalFiles int, processed []*types.File,
	exact, superset, near []*types.DuplicateGroup, fileErrors []types.FileError) *types.ScanReport {

	if exact == nil {
		exact = []*types.DuplicateGroup{}
	}
	if superset == nil {
		superset = []*types.DuplicateGroup{}
	}
	if near == nil {
		near = []*types.DuplicateGroup{}
	}

	all := make([]*types.DuplicateGroup, 0, len(exact)+len(superset)+len(near))
	all = append(all, exact...)
	all = append(all, superset...)
	all = append(all, near...)

	reported := fileErrors
	if len(reported) > maxReportedErrors {
		reported = reported[:maxReportedErrors]
	}
	if reported == nil {
		reported = []types.FileError{}
	}

	return &types.ScanReport{
		Status:              "completed",
		TotalFiles:          totalFiles,
		FilesProcessed:      len(processed),
		FilesFailed:         len(fileErrors),
		Exact:               exact,
		SupersetSubset:      superset,
		Near:                near,
		TotalGroups:         len(all),
		TotalDuplicateFiles: types.DuplicateCount(all),
		TotalSavingsBytes:   types.SavingsBytes(all),
		Errors:              reported,
	}
}

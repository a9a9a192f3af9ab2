package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/drivedupe/drivedupe/internal/extract"
	"github.com/drivedupe/drivedupe/internal/pipeline"
	"github.com/drivedupe/drivedupe/internal/similarity"
	"github.com/drivedupe/drivedupe/internal/storage"
	"github.com/drivedupe/drivedupe/internal/types"
)

// scanOptions holds CLI flags for the scan command.
type scanOptions struct {
	token             string
	folders           []string
	includeSubfolders bool
	provider          string
	embedURL          string
	workers           int
	minSizeStr        string
	jsonOut           bool
	noProgress        bool
	verbose           bool
}

// newScanCmd creates the scan subcommand.
func newScanCmd() *cobra.Command {
	opts := &scanOptions{minSizeStr: "1"}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a one-shot duplicate scan",
		Long: `Scans the given folders for exact, superset/subset and near duplicates
and prints a report. Nothing is deleted; use the API to approve deletions.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runScan(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.token, "token", "t", envOr("DRIVEDUPE_TOKEN", ""), "Access token for the storage provider")
	cmd.Flags().StringSliceVarP(&opts.folders, "folder", "f", nil, "Folder ID to scan (repeatable)")
	cmd.Flags().BoolVar(&opts.includeSubfolders, "include-subfolders", true, "Traverse subfolders")
	cmd.Flags().StringVar(&opts.provider, "provider", envOr("DRIVEDUPE_PROVIDER", "drive"), "Storage provider (drive, onedrive)")
	cmd.Flags().StringVar(&opts.embedURL, "embed-url", envOr("DRIVEDUPE_EMBED_URL", ""), "Embedding endpoint base URL (empty disables embeddings)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Parallel file workers (0 = default)")
	cmd.Flags().StringVarP(&opts.minSizeStr, "min-size", "m", opts.minSizeStr, "Minimum file size (e.g., 100, 1K, 10M)")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the raw report as JSON")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable progress output")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Show per-file log output")

	_ = cmd.MarkFlagRequired("folder")
	return cmd
}

func runScan(opts *scanOptions) error {
	if opts.token == "" {
		return fmt.Errorf("access token is required (--token or DRIVEDUPE_TOKEN)")
	}
	minSize, err := parseSize(opts.minSizeStr)
	if err != nil {
		return fmt.Errorf("invalid --min-size: %w", err)
	}

	logger := newConsoleLogger(opts.verbose)
	defer func() { _ = logger.Sync() }()

	factory, err := providerFactory(opts.provider, logger)
	if err != nil {
		return err
	}
	provider := &minSizeProvider{Provider: factory(opts.token), minSize: minSize}

	model := similarity.Default(opts.embedURL, logger)
	orch := pipeline.New(provider, model, extract.New(logger), opts.workers, !opts.noProgress, logger)

	report, err := orch.Run(context.Background(), types.ScanRequest{
		FolderIDs:         opts.folders,
		IncludeSubfolders: opts.includeSubfolders,
	})
	if err != nil {
		return err
	}

	if opts.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(report)
	return nil
}

// newConsoleLogger builds a stderr console logger. Warnings and errors only,
// unless verbose.
func newConsoleLogger(verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.InfoLevel
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(os.Stderr), level)
	return zap.New(core)
}

// minSizeProvider filters listing results below the size floor. Fetch and
// delete pass through untouched.
type minSizeProvider struct {
	storage.Provider
	minSize int64
}

func (p *minSizeProvider) ListFiles(ctx context.Context, folderIDs []string, recurse bool) ([]*types.File, error) {
	files, err := p.Provider.ListFiles(ctx, folderIDs, recurse)
	if err != nil {
		return nil, err
	}
	kept := files[:0]
	for _, f := range files {
		if f.Size >= p.minSize {
			kept = append(kept, f)
		}
	}
	return kept, nil
}

func printReport(r *types.ScanReport) {
	if r.Message != "" {
		fmt.Println(r.Message)
		return
	}

	fmt.Printf("Scanned %d files (%d processed, %d failed)\n",
		r.TotalFiles, r.FilesProcessed, r.FilesFailed)
	fmt.Printf("Found %d duplicate groups, %d redundant files, %s reclaimable\n\n",
		r.TotalGroups, r.TotalDuplicateFiles, humanize.IBytes(uint64(r.TotalSavingsBytes)))

	printGroups("Exact duplicates", r.Exact)
	printGroups("Superset/subset pairs", r.SupersetSubset)
	printGroups("Near duplicates", r.Near)

	for _, e := range r.Errors {
		fmt.Fprintf(os.Stderr, "error: %s: %s\n", e.FileName, e.Error)
	}
}

func printGroups(title string, groups []*types.DuplicateGroup) {
	if len(groups) == 0 {
		return
	}
	fmt.Printf("%s (%d):\n", title, len(groups))
	for _, g := range groups {
		fmt.Printf("  keep  %s (%s)\n", g.Primary.Name, humanize.IBytes(uint64(g.Primary.Size)))
		for _, d := range g.Duplicates {
			fmt.Printf("  drop  %s (%s)\n", d.Name, humanize.IBytes(uint64(d.Size)))
		}
		fmt.Printf("        similarity %.2f, saves %s\n\n",
			g.Similarity, humanize.IBytes(uint64(g.SavingsBytes)))
	}
}

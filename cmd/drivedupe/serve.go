package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/drivedupe/drivedupe/internal/server"
	"github.com/drivedupe/drivedupe/internal/similarity"
)

// serveOptions holds CLI flags for the serve command.
type serveOptions struct {
	listen   string
	provider string
	embedURL string
	workers  int
}

// newServeCmd creates the serve subcommand.
func newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serves the scan/approve API. Access tokens arrive per request; the
server holds no credentials and no state between requests.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.listen, "listen", "l", envOr("DRIVEDUPE_LISTEN", ":8000"), "Listen address")
	cmd.Flags().StringVar(&opts.provider, "provider", envOr("DRIVEDUPE_PROVIDER", "drive"), "Storage provider (drive, onedrive)")
	cmd.Flags().StringVar(&opts.embedURL, "embed-url", envOr("DRIVEDUPE_EMBED_URL", ""), "Embedding endpoint base URL (empty disables embeddings)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Parallel file workers per scan (0 = default)")

	return cmd
}

func runServe(opts *serveOptions) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	factory, err := providerFactory(opts.provider, logger)
	if err != nil {
		return err
	}

	model := similarity.Default(opts.embedURL, logger)
	srv := &http.Server{
		Addr:              opts.listen,
		Handler:           server.New(factory, model, opts.workers, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("listening", zap.String("addr", opts.listen), zap.String("provider", opts.provider))
	return srv.ListenAndServe()
}

package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/drivedupe/drivedupe/internal/server"
	"github.com/drivedupe/drivedupe/internal/storage"
)

// parseSize parses a human-readable size string into bytes.
// Supports formats: "100", "1K", "1MB", "1GiB", etc.
func parseSize(s string) (int64, error) {
	bytes, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	return int64(bytes), nil
}

// envOr returns the environment variable value, or def when unset.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// providerFactory maps a --provider name to a per-token client constructor.
func providerFactory(name string, logger *zap.Logger) (server.ProviderFactory, error) {
	switch name {
	case "drive":
		return func(token string) storage.Provider {
			return storage.NewDriveClient(token, logger)
		}, nil
	case "onedrive":
		return func(token string) storage.Provider {
			return storage.NewGraphClient(token, logger)
		}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want drive or onedrive)", name)
	}
}

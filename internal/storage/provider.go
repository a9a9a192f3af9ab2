// Package storage provides clients for the cloud stores drivedupe scans.
//
// Two implementations exist: DriveClient (Google Drive v3) and GraphClient
// (Microsoft Graph / OneDrive). Both satisfy Provider, the only boundary the
// pipeline depends on. MemProvider is an in-memory implementation for tests.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/drivedupe/drivedupe/internal/types"
)

// Provider is the capability set the pipeline needs from a backing store.
type Provider interface {
	// ListFiles lists all files reachable from the given folder IDs.
	// When recurse is true, subfolders are traversed; a folder visited once
	// is never revisited even if reachable through multiple paths.
	// Folders themselves, trashed items and zero-size items are excluded.
	ListFiles(ctx context.Context, folderIDs []string, recurse bool) ([]*types.File, error)

	// Fetch downloads the full content of a file.
	Fetch(ctx context.Context, fileID string) ([]byte, error)

	// Delete removes a file. permanent=false moves it to the provider's
	// trash (reversible); permanent=true removes it irrecoverably.
	Delete(ctx context.Context, fileID string, permanent bool) error

	// Restore recovers a soft-deleted file from the provider's trash.
	Restore(ctx context.Context, fileID string) error
}

// Per-request timeouts applied inside the clients.
const (
	metadataTimeout = 30 * time.Second
	contentTimeout  = 120 * time.Second
)

// ErrAuthExpired signals that the provider rejected the access token.
// Callers surface it with a prompt to re-authenticate and abort the scan.
var ErrAuthExpired = errors.New("access token expired or invalid, please sign in again")

// ProviderError wraps any other provider-side failure (rate limit, transient
// network error, server error) together with the HTTP status that caused it.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error: %d - %s", e.StatusCode, e.Message)
}

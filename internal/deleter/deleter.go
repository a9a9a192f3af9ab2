// Package deleter executes approved deletion batches against a storage
// provider, collecting per-file failures without aborting the batch.
package deleter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/drivedupe/drivedupe/internal/storage"
	"github.com/drivedupe/drivedupe/internal/types"
)

// Result is the outcome of one deletion batch. A batch can partially
// succeed; Deleted and Errors together cover every attempted ID.
type Result struct {
	Deleted   []string
	Errors    []types.DeleteError
	Permanent bool
}

// Message renders the human-readable summary for the batch.
func (r *Result) Message() string {
	if r.Permanent {
		return fmt.Sprintf("%d file(s) permanently deleted", len(r.Deleted))
	}
	return fmt.Sprintf("%d file(s) moved to trash", len(r.Deleted))
}

// Deleter removes files one at a time. Sequential on purpose: deletion is
// destructive and rate limits on delete endpoints are tight.
type Deleter struct {
	provider storage.Provider
	logger   *zap.Logger
}

// New creates a Deleter.
func New(provider storage.Provider, logger *zap.Logger) *Deleter {
	return &Deleter{provider: provider, logger: logger}
}

// Run deletes the given file IDs. permanent=false moves files to trash,
// permanent=true destroys them. A per-file failure is recorded and the
// batch continues. Cancellation stops at the next file boundary and
// returns the partial result alongside the context error.
func (d *Deleter) Run(ctx context.Context, fileIDs []string, permanent bool) (*Result, error) {
	res := &Result{Permanent: permanent}

	for _, id := range fileIDs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := d.provider.Delete(ctx, id, permanent); err != nil {
			d.logger.Warn("delete failed", zap.String("file_id", id), zap.Error(err))
			res.Errors = append(res.Errors, types.DeleteError{FileID: id, Error: err.Error()})
			continue
		}
		res.Deleted = append(res.Deleted, id)
	}

	d.logger.Info("deletion batch finished",
		zap.Int("deleted", len(res.Deleted)),
		zap.Int("failed", len(res.Errors)),
		zap.Bool("permanent", permanent))
	return res, nil
}

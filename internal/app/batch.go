package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"photo-ingest/internal/changefeed"
	"photo-ingest/internal/database"
	"photo-ingest/internal/ingest"
	"photo-ingest/internal/logging"
	"photo-ingest/internal/upload"
)

// DefaultKeyPrefix is used when a batch names neither a prefix nor a user.
const DefaultKeyPrefix = "uploads"

// BatchOptions overrides the scheduler defaults for one batch. Zero
// Concurrency and negative MaxRetries keep the configured values.
type BatchOptions struct {
	Concurrency int
	MaxRetries  int
	KeyPrefix   string
	UserID      string
}

// DefaultBatchOptions keeps every configured value.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{MaxRetries: -1}
}

// IngestAndUploadBatch validates files as a batch, then ingests and
// uploads them. Batch-level violations (empty, too many files, too many
// bytes) return an error before any work starts; per-item failures are
// reported in the result.
func (a *App) IngestAndUploadBatch(ctx context.Context, files []ingest.RawInput, opts BatchOptions, observer upload.ProgressObserver) (*upload.BatchResult, error) {
	if err := a.pipeline.ValidateBatch(files); err != nil {
		return nil, err
	}

	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = opts.UserID
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	batchID := uuid.NewString()
	scheduler := a.scheduler.WithLimits(opts.Concurrency, opts.MaxRetries)
	tasks := upload.NewTasks(files, prefix, opts.UserID)

	logging.Logger().Info().
		Str("batch", batchID).
		Int("files", len(files)).
		Str("prefix", prefix).
		Msg("batch accepted")

	result, err := scheduler.Run(ctx, tasks, upload.MultiObserver{observer, a.bus.ProgressObserver(batchID)})
	if err != nil {
		return nil, fmt.Errorf("run batch %s: %w", batchID, err)
	}
	result.ID = batchID

	// Bookkeeping outlives a cancelled request.
	bg := context.WithoutCancel(ctx)
	if err := a.db.SetLastBatch(bg, database.BatchRecord{
		ID:        batchID,
		Total:     result.Total,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Status:    string(result.Status()),
		Finished:  time.Now(),
	}); err != nil {
		logging.Warn("Failed to record batch %s: %v", batchID, err)
	}

	if result.Succeeded > 0 {
		a.stats.Invalidate(StatsKey)
		a.publish(bg, changefeed.NewEvent("photos", changefeed.Update, StatsKey))
	}
	return result, nil
}

// LastBatch returns the most recent batch summary, or nil.
func (a *App) LastBatch(ctx context.Context) (*database.BatchRecord, error) {
	return a.db.GetLastBatch(ctx)
}

// DeleteResult reports a photo deletion. Orphaned lists tier objects that
// could not be removed from the store.
type DeleteResult struct {
	Photo    *database.Photo `json:"photo"`
	Orphaned []string        `json:"orphaned,omitempty"`
}

// DeletePhoto removes the photo row, then its tier objects. The row goes
// first so no listing points at missing objects; objects that fail to
// delete are logged and reported as orphaned. Returns sql.ErrNoRows for an
// unknown id.
func (a *App) DeletePhoto(ctx context.Context, id int64) (*DeleteResult, error) {
	p, err := a.db.GetPhoto(ctx, id)
	if err != nil {
		return nil, err
	}
	deleted, err := a.db.DeletePhoto(ctx, id)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, sql.ErrNoRows
	}

	bg := context.WithoutCancel(ctx)
	res := &DeleteResult{Photo: p}
	for _, key := range []string{p.StoragePath, p.CompressedPath, p.ThumbnailPath} {
		if key == "" {
			continue
		}
		if err := a.store.Delete(bg, key); err != nil {
			logging.Error("Photo %d deleted but object %s remains: %v", id, key, err)
			res.Orphaned = append(res.Orphaned, key)
		}
		a.handles.Evict(key)
		a.publish(bg, changefeed.NewEvent("objects", changefeed.Delete, key))
	}

	a.stats.Invalidate(StatsKey)
	a.publish(bg, changefeed.NewEvent("photos", changefeed.Update, StatsKey))

	logging.Logger().Info().
		Int64("id", id).
		Str("user", p.UserID).
		Int("orphaned", len(res.Orphaned)).
		Msg("photo deleted")
	return res, nil
}

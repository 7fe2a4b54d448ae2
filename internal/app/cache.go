package app

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"photo-ingest/internal/database"
	"photo-ingest/internal/handlecache"
	"photo-ingest/internal/ttlcache"
)

// CacheStats reports every cache the app owns.
type CacheStats struct {
	Handles handlecache.Stats `json:"handles"`
	Stats   ttlcache.Stats    `json:"stats"`
	Entries ttlcache.Stats    `json:"entries"`
}

// Stats returns aggregate photo stats, served from the TTL cache when
// fresh.
func (a *App) Stats(ctx context.Context) (database.PhotoStats, error) {
	if stats, ok := a.stats.Get(StatsKey); ok {
		return stats, nil
	}
	stats, err := a.db.GetStats(ctx)
	if err != nil {
		return database.PhotoStats{}, err
	}
	a.stats.Set(StatsKey, stats, 0)
	return stats, nil
}

// Handle reads an object through the handle cache. A direct handle means
// the bytes could not be fetched and the caller should use PublicURL.
func (a *App) Handle(ctx context.Context, key string) *handlecache.Handle {
	return a.handles.GetOrLoad(ctx, key)
}

// Preload warms the handle cache with keys.
func (a *App) Preload(ctx context.Context, keys []string) {
	a.handles.Preload(ctx, keys)
}

// WarmThumbnails preloads the thumbnail tier of photos in the background,
// so a client rendering a listing hits the handle cache. Close waits for
// outstanding preloads.
func (a *App) WarmThumbnails(photos []database.Photo) {
	keys := make([]string, 0, len(photos))
	for _, p := range photos {
		if p.ThumbnailPath != "" {
			keys = append(keys, p.ThumbnailPath)
		}
	}
	if len(keys) == 0 {
		return
	}

	a.warming.Add(1)
	go func() {
		defer a.warming.Done()
		a.Preload(context.Background(), keys)
	}()
}

// CacheEntry reads a persisted cache entry through the TTL cache, using
// the entry's own TTL. Returns sql.ErrNoRows if it doesn't exist.
func (a *App) CacheEntry(ctx context.Context, key string) (database.CacheEntry, error) {
	if entry, ok := a.entries.Get(key); ok {
		return entry, nil
	}
	entry, err := a.db.GetCacheEntry(ctx, key)
	if err != nil {
		return database.CacheEntry{}, err
	}
	a.entries.Set(key, *entry, time.Duration(entry.TTLSeconds)*time.Second)
	return *entry, nil
}

// SetCacheEntry persists an entry. Other instances learn of it through
// the change feed.
func (a *App) SetCacheEntry(ctx context.Context, entry database.CacheEntry) error {
	return a.db.SetCacheEntry(ctx, entry)
}

// DeleteCacheEntry removes a persisted entry and reports whether it
// existed.
func (a *App) DeleteCacheEntry(ctx context.Context, key string) (bool, error) {
	return a.db.DeleteCacheEntry(ctx, key)
}

// Invalidate drops key from every local cache and reports whether any
// cache held it.
func (a *App) Invalidate(key string) bool {
	removed := a.stats.Invalidate(key)
	if a.entries.Invalidate(key) {
		removed = true
	}
	if a.handles.Evict(key) {
		removed = true
	}
	return removed
}

// ClearCaches empties every local cache.
func (a *App) ClearCaches() {
	a.stats.Clear()
	a.entries.Clear()
	a.handles.Clear()
}

// CacheStats returns a snapshot of every cache.
func (a *App) CacheStats() CacheStats {
	a.stats.CleanExpired()
	a.entries.CleanExpired()
	return CacheStats{
		Handles: a.handles.Stats(),
		Stats:   a.stats.Stats(),
		Entries: a.entries.Stats(),
	}
}

// IsNotFound reports whether err means a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

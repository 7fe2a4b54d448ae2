package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SetCacheEntry inserts or replaces a cache entry. ttlSeconds <= 0 keeps
// the column default of one hour.
func (d *Database) SetCacheEntry(ctx context.Context, e CacheEntry) (err error) {
	start := time.Now()
	defer func() { recordQuery("set_cache_entry", start, err) }()

	if e.Key == "" {
		return fmt.Errorf("set cache entry: empty key")
	}
	if e.TTLSeconds <= 0 {
		e.TTLSeconds = 3600
	}

	d.mu.Lock()
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)

	var exists bool
	err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) > 0 FROM cache_entries WHERE key = ?", e.Key).Scan(&exists)
	if err == nil {
		_, err = d.db.ExecContext(ctx, `
			INSERT INTO cache_entries (key, value, category, ttl_seconds, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				category = excluded.category,
				ttl_seconds = excluded.ttl_seconds,
				updated_at = excluded.updated_at
		`, e.Key, e.Value, e.Category, e.TTLSeconds, time.Now().Unix())
	}
	cancel()
	d.mu.Unlock()
	if err != nil {
		return fmt.Errorf("set cache entry %q: %w", e.Key, err)
	}

	kind := ChangeInsert
	if exists {
		kind = ChangeUpdate
	}
	d.notify("cache_entries", kind, e.Key)
	return nil
}

// GetCacheEntry returns the entry for key. Returns sql.ErrNoRows if absent.
func (d *Database) GetCacheEntry(ctx context.Context, key string) (e *CacheEntry, err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, sql.ErrNoRows) {
			recordQuery("get_cache_entry", start, nil)
			return
		}
		recordQuery("get_cache_entry", start, err)
	}()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var entry CacheEntry
	var updated int64
	err = d.db.QueryRowContext(ctx, `
		SELECT key, value, category, ttl_seconds, updated_at
		FROM cache_entries WHERE key = ?
	`, key).Scan(&entry.Key, &entry.Value, &entry.Category, &entry.TTLSeconds, &updated)
	if err != nil {
		return nil, err
	}
	entry.UpdatedAt = time.Unix(updated, 0)
	return &entry, nil
}

// DeleteCacheEntry removes the entry for key and reports whether a row
// was deleted.
func (d *Database) DeleteCacheEntry(ctx context.Context, key string) (deleted bool, err error) {
	start := time.Now()
	defer func() { recordQuery("delete_cache_entry", start, err) }()

	d.mu.Lock()
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	res, err := d.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE key = ?", key)
	cancel()
	d.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("delete cache entry %q: %w", key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	d.notify("cache_entries", ChangeDelete, key)
	return true, nil
}

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

const lastBatchKey = "last_batch"

// GetMetadata retrieves a metadata value by key.
// Returns sql.ErrNoRows if the key doesn't exist.
func (d *Database) GetMetadata(ctx context.Context, key string) (value string, err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, sql.ErrNoRows) {
			recordQuery("get_metadata", start, nil)
			return
		}
		recordQuery("get_metadata", start, err)
	}()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMetadata sets a metadata key-value pair.
func (d *Database) SetMetadata(ctx context.Context, key, value string) (err error) {
	start := time.Now()
	defer func() { recordQuery("set_metadata", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// GetLastBatch returns the summary of the most recent upload batch.
// Returns nil if no batch has completed yet.
func (d *Database) GetLastBatch(ctx context.Context) (*BatchRecord, error) {
	value, err := d.GetMetadata(ctx, lastBatchKey)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && value == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec BatchRecord
	if err := json.Unmarshal([]byte(value), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// SetLastBatch stores the summary of a completed upload batch.
func (d *Database) SetLastBatch(ctx context.Context, rec BatchRecord) error {
	if rec.Finished.IsZero() {
		rec.Finished = time.Now()
	}
	rec.Finished = rec.Finished.UTC().Truncate(time.Second)

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return d.SetMetadata(ctx, lastBatchKey, string(data))
}

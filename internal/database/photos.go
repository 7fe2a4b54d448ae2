package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"photo-ingest/internal/metrics"
)

// DefaultListLimit caps ListPhotos when no limit is given.
const DefaultListLimit = 100

const photoColumns = `id, user_id, filename, original_filename, storage_path,
	COALESCE(compressed_path, ''), COALESCE(thumbnail_path, ''), file_size, mime_type,
	width, height, is_heif, checksum, COALESCE(exif_data, ''), latitude, longitude,
	taken_at, created_at, updated_at`

// InsertPhoto registers an uploaded photo and returns its row id.
func (d *Database) InsertPhoto(ctx context.Context, p *Photo) (id int64, err error) {
	start := time.Now()
	defer func() { recordQuery("insert_photo", start, err) }()

	if p == nil {
		return 0, fmt.Errorf("insert photo: nil photo")
	}
	if p.StoragePath == "" {
		return 0, fmt.Errorf("insert photo %q: empty storage path", p.Filename)
	}

	now := time.Now()
	var takenAt any
	if p.TakenAt != nil && !p.TakenAt.IsZero() {
		takenAt = p.TakenAt.Unix()
	}

	d.mu.Lock()
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	res, err := d.db.ExecContext(ctx, `
		INSERT INTO photos (
			user_id, filename, original_filename, storage_path, compressed_path,
			thumbnail_path, file_size, mime_type, width, height, is_heif, checksum,
			exif_data, latitude, longitude, taken_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.UserID, p.Filename, p.OriginalFilename, p.StoragePath,
		nullString(p.CompressedPath), nullString(p.ThumbnailPath),
		p.FileSize, p.MimeType, p.Width, p.Height, p.IsHEIF, p.Checksum,
		nullString(p.ExifData), p.Latitude, p.Longitude, takenAt,
		now.Unix(), now.Unix(),
	)
	cancel()
	d.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("insert photo %q: %w", p.Filename, err)
	}

	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert photo %q: %w", p.Filename, err)
	}

	p.ID = id
	p.CreatedAt = time.Unix(now.Unix(), 0)
	p.UpdatedAt = p.CreatedAt

	d.notify("photos", ChangeInsert, strconv.FormatInt(id, 10))
	return id, nil
}

// GetPhoto returns a photo by id. Returns sql.ErrNoRows if it doesn't exist.
func (d *Database) GetPhoto(ctx context.Context, id int64) (p *Photo, err error) {
	start := time.Now()
	defer func() { recordQuery("get_photo", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, "SELECT "+photoColumns+" FROM photos WHERE id = ?", id)
	return scanPhoto(row)
}

// DeletePhoto removes the row for id and reports whether one existed.
func (d *Database) DeletePhoto(ctx context.Context, id int64) (deleted bool, err error) {
	start := time.Now()
	defer func() { recordQuery("delete_photo", start, err) }()

	d.mu.Lock()
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	res, err := d.db.ExecContext(ctx, "DELETE FROM photos WHERE id = ?", id)
	cancel()
	d.mu.Unlock()
	if err != nil {
		return false, fmt.Errorf("delete photo %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	d.notify("photos", ChangeDelete, strconv.FormatInt(id, 10))
	return true, nil
}

// ListPhotos returns the newest photos first. An empty userID lists all
// users. A limit <= 0 uses DefaultListLimit.
func (d *Database) ListPhotos(ctx context.Context, userID string, limit int) (photos []Photo, err error) {
	start := time.Now()
	defer func() { recordQuery("list_photos", start, err) }()

	if limit <= 0 {
		limit = DefaultListLimit
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := "SELECT " + photoColumns + " FROM photos"
	args := []any{}
	if userID != "" {
		query += " WHERE user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	photos = []Photo{}
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, *p)
	}
	return photos, rows.Err()
}

// GetStats aggregates the photos table.
func (d *Database) GetStats(ctx context.Context) (stats PhotoStats, err error) {
	start := time.Now()
	defer func() { recordQuery("get_stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var last sql.NullInt64
	err = d.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(file_size), 0),
			COALESCE(SUM(is_heif), 0),
			COALESCE(SUM(CASE WHEN latitude IS NOT NULL AND longitude IS NOT NULL THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT user_id),
			MAX(created_at)
		FROM photos
	`).Scan(&stats.TotalPhotos, &stats.TotalBytes, &stats.HEIFPhotos, &stats.WithLocation, &stats.Users, &last)
	if err != nil {
		return PhotoStats{}, err
	}
	if last.Valid {
		t := time.Unix(last.Int64, 0)
		stats.LastUpload = &t
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row rowScanner) (*Photo, error) {
	var (
		p                   Photo
		lat, lon            sql.NullFloat64
		takenAt             sql.NullInt64
		createdAt, updateAt int64
	)
	err := row.Scan(
		&p.ID, &p.UserID, &p.Filename, &p.OriginalFilename, &p.StoragePath,
		&p.CompressedPath, &p.ThumbnailPath, &p.FileSize, &p.MimeType,
		&p.Width, &p.Height, &p.IsHEIF, &p.Checksum, &p.ExifData, &lat, &lon,
		&takenAt, &createdAt, &updateAt,
	)
	if err != nil {
		return nil, err
	}
	if lat.Valid {
		p.Latitude = &lat.Float64
	}
	if lon.Valid {
		p.Longitude = &lon.Float64
	}
	if takenAt.Valid {
		t := time.Unix(takenAt.Int64, 0)
		p.TakenAt = &t
	}
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updateAt, 0)
	return &p, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// LibraryStats implements metrics.StatsProvider.
func (d *Database) LibraryStats(ctx context.Context) (metrics.Stats, error) {
	stats, err := d.GetStats(ctx)
	if err != nil {
		return metrics.Stats{}, err
	}
	return metrics.Stats{Photos: stats.TotalPhotos, Bytes: stats.TotalBytes}, nil
}

package database

import "time"

// Photo is one registered upload. The three paths are object keys in the
// store; CompressedPath and ThumbnailPath are empty when that tier failed.
type Photo struct {
	ID               int64      `json:"id"`
	UserID           string     `json:"userId,omitempty"`
	Filename         string     `json:"filename"`
	OriginalFilename string     `json:"originalFilename"`
	StoragePath      string     `json:"storagePath"`
	CompressedPath   string     `json:"compressedPath,omitempty"`
	ThumbnailPath    string     `json:"thumbnailPath,omitempty"`
	FileSize         int64      `json:"fileSize"`
	MimeType         string     `json:"mimeType"`
	Width            int        `json:"width"`
	Height           int        `json:"height"`
	IsHEIF           bool       `json:"isHeif"`
	Checksum         string     `json:"checksum,omitempty"`
	ExifData         string     `json:"exifData,omitempty"`
	Latitude         *float64   `json:"latitude,omitempty"`
	Longitude        *float64   `json:"longitude,omitempty"`
	TakenAt          *time.Time `json:"takenAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// PhotoStats aggregates the photos table.
type PhotoStats struct {
	TotalPhotos  int64      `json:"totalPhotos"`
	TotalBytes   int64      `json:"totalBytes"`
	HEIFPhotos   int64      `json:"heifPhotos"`
	WithLocation int64      `json:"withLocation"`
	Users        int64      `json:"users"`
	LastUpload   *time.Time `json:"lastUpload,omitempty"`
}

// CacheEntry is a persisted key/value row whose changes are broadcast on
// the change feed.
type CacheEntry struct {
	Key        string    `json:"key"`
	Value      string    `json:"value"`
	Category   string    `json:"category,omitempty"`
	TTLSeconds int       `json:"ttlSeconds"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// BatchRecord summarizes the most recent upload batch.
type BatchRecord struct {
	ID        string    `json:"id"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Status    string    `json:"status"`
	Finished  time.Time `json:"finished"`
}

// Change kinds passed to a ChangeHook.
const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

// ChangeHook is called after a committed mutation of a watched table.
type ChangeHook func(table, kind, key string)

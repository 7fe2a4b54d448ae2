package media

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"photo-ingest/internal/logging"

	"github.com/evanoberholster/imagemeta"
	"golang.org/x/crypto/blake2b"
)

// PhotoMetadata is the subset of EXIF stored alongside each photo.
type PhotoMetadata struct {
	Latitude    float64           `json:"latitude,omitempty"`
	Longitude   float64           `json:"longitude,omitempty"`
	HasGPS      bool              `json:"hasGps"`
	DateTaken   time.Time         `json:"dateTaken,omitempty"`
	CameraMake  string            `json:"cameraMake,omitempty"`
	CameraModel string            `json:"cameraModel,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// ExtractMetadata reads EXIF from an encoded image (JPEG, HEIC, TIFF...).
// GPS coordinates are returned in decimal degrees with hemisphere applied.
func ExtractMetadata(data []byte) (*PhotoMetadata, error) {
	exifData, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF metadata: %w", err)
	}

	meta := &PhotoMetadata{Fields: make(map[string]string)}

	gps := exifData.GPS
	if gps.Latitude() != 0 || gps.Longitude() != 0 {
		meta.Latitude = gps.Latitude()
		meta.Longitude = gps.Longitude()
		meta.HasGPS = true
	}

	// DateTimeOriginal > CreateDate > ModifyDate
	for _, candidate := range []struct {
		field string
		value time.Time
	}{
		{"DateTimeOriginal", exifData.DateTimeOriginal()},
		{"CreateDate", exifData.CreateDate()},
		{"ModifyDate", exifData.ModifyDate()},
	} {
		if !candidate.value.IsZero() {
			meta.DateTaken = candidate.value
			meta.Fields[candidate.field] = candidate.value.Format(time.RFC3339)
			break
		}
	}

	meta.CameraMake = strings.TrimSpace(exifData.Make)
	meta.CameraModel = strings.TrimSpace(exifData.Model)
	if meta.CameraMake != "" {
		meta.Fields["Make"] = meta.CameraMake
	}
	if meta.CameraModel != "" {
		meta.Fields["Model"] = meta.CameraModel
	}

	logging.Logger().Debug().
		Bool("gps", meta.HasGPS).
		Time("taken", meta.DateTaken).
		Str("camera", meta.CameraModel).
		Msg("Extracted EXIF metadata")

	return meta, nil
}

// Checksum returns the hex BLAKE2b-256 digest of data.
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

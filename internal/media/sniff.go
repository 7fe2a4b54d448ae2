package media

import (
	"bytes"

	"photo-ingest/internal/mediatypes"
)

// SniffLen is the number of leading bytes Classify looks at.
const SniffLen = 12

var (
	magicJPEG = []byte{0xFF, 0xD8, 0xFF}
	magicPNG  = []byte{0x89, 0x50, 0x4E, 0x47}
	magicGIF  = []byte("GIF")
	magicRIFF = []byte("RIFF")
	magicBMP  = []byte("BM")
	magicFtyp = []byte("ftyp")
)

// Classify returns the format of an image from its leading bytes. It never
// looks past SniffLen bytes and ignores any declared name or content type.
//
// WebP is detected from the RIFF tag plus the first byte of the "WEBP"
// fourcc at offset 8, and HEIF from an ISO-BMFF ftyp box at offset 4. Both
// are heuristics rather than container parses.
func Classify(header []byte) mediatypes.Format {
	if len(header) > SniffLen {
		header = header[:SniffLen]
	}

	switch {
	case bytes.HasPrefix(header, magicJPEG):
		return mediatypes.FormatJPEG
	case bytes.HasPrefix(header, magicPNG):
		return mediatypes.FormatPNG
	case bytes.HasPrefix(header, magicGIF):
		return mediatypes.FormatGIF
	case len(header) > 8 && bytes.HasPrefix(header, magicRIFF) && header[8] == 'W':
		return mediatypes.FormatWEBP
	case bytes.HasPrefix(header, magicBMP):
		return mediatypes.FormatBMP
	case len(header) >= 8 && bytes.Equal(header[4:8], magicFtyp):
		return mediatypes.FormatHEIF
	}

	return mediatypes.FormatUnrecognized
}

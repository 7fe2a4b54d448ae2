package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	"photo-ingest/internal/logging"
	"photo-ingest/internal/mediatypes"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // BMP format support
	_ "golang.org/x/image/webp" // WebP format support
)

const (
	// HEIFQuality is the JPEG quality used when transcoding HEIF sources.
	HEIFQuality = 92

	// MaxImagePixels is the maximum total pixels (width * height) we'll decode.
	// A 50MP image would be ~50,000,000 pixels, which uses ~200MB in RGBA
	MaxImagePixels = 40_000_000
)

// TranscodeError reports that a source could not be turned into a decodable raster.
type TranscodeError struct {
	Format mediatypes.Format
	Err    error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("transcode %s: %v", e.Format, e.Err)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// ErrTooManyPixels is returned for images whose header claims more than MaxImagePixels.
var ErrTooManyPixels = errors.New("image exceeds pixel limit")

// Transcoder converts an exotic container into JPEG bytes.
type Transcoder interface {
	ToJPEG(ctx context.Context, data []byte, quality int) ([]byte, error)
}

// NormalizedImage is a decoded raster ready for resizing.
type NormalizedImage struct {
	Image      image.Image
	Width      int
	Height     int
	Source     mediatypes.Format
	Transcoded bool
}

// Normalizer decodes accepted formats, transcoding HEIF first.
type Normalizer struct {
	heif      Transcoder
	maxPixels int
}

// NewNormalizer creates a normalizer. A nil transcoder uses libvips.
func NewNormalizer(heif Transcoder) *Normalizer {
	if heif == nil {
		heif = VipsTranscoder{}
	}
	return &Normalizer{heif: heif, maxPixels: MaxImagePixels}
}

// Normalize turns data of the given format into a NormalizedImage.
// Every failure is a *TranscodeError.
func (n *Normalizer) Normalize(ctx context.Context, data []byte, format mediatypes.Format) (*NormalizedImage, error) {
	result := &NormalizedImage{Source: format}

	switch format {
	case mediatypes.FormatUnrecognized:
		return nil, &TranscodeError{Format: format, Err: errors.New("unrecognized format")}
	case mediatypes.FormatHEIF:
		jpegData, err := n.heif.ToJPEG(ctx, data, HEIFQuality)
		if err != nil {
			return nil, &TranscodeError{Format: format, Err: err}
		}
		logging.Debug("Transcoded HEIF source (%d bytes) to JPEG (%d bytes)", len(data), len(jpegData))
		data = jpegData
		result.Transcoded = true
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &TranscodeError{Format: format, Err: fmt.Errorf("read header: %w", err)}
	}
	if n.maxPixels > 0 && cfg.Width*cfg.Height > n.maxPixels {
		return nil, &TranscodeError{Format: format, Err: fmt.Errorf("%w: %dx%d", ErrTooManyPixels, cfg.Width, cfg.Height)}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &TranscodeError{Format: format, Err: fmt.Errorf("decode: %w", err)}
	}

	b := img.Bounds()
	result.Image = img
	result.Width = b.Dx()
	result.Height = b.Dy()
	return result, nil
}

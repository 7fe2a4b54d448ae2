package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"math"

	"photo-ingest/internal/logging"

	"github.com/disintegration/imaging"
)

// Tier names, also used as object key segments and metric labels.
const (
	TierFull      = "full"
	TierMedium    = "medium"
	TierThumbnail = "thumb"
)

// Tier is one rung of the resolution ladder.
type Tier struct {
	Name     string
	LongEdge int
	Quality  int
}

// DefaultTiers is the fixed full/medium/thumbnail ladder.
var DefaultTiers = []Tier{
	{Name: TierFull, LongEdge: 1200, Quality: 90},
	{Name: TierMedium, LongEdge: 480, Quality: 85},
	{Name: TierThumbnail, LongEdge: 150, Quality: 80},
}

// ErrFullTierMissing means the mandatory full-resolution copy could not be produced.
var ErrFullTierMissing = errors.New("full resolution tier missing")

// ArtifactSet holds the JPEG tiers derived from one input.
type ArtifactSet struct {
	Full      []byte
	Medium    []byte
	Thumbnail []byte

	// Width and Height are the dimensions of the full tier.
	Width  int
	Height int

	SourceWidth  int
	SourceHeight int

	WasTranscoded bool

	// MissingTiers names optional tiers that failed to encode.
	MissingTiers []string
}

// Tier returns the bytes for a tier name, or nil.
func (a *ArtifactSet) Tier(name string) []byte {
	switch name {
	case TierFull:
		return a.Full
	case TierMedium:
		return a.Medium
	case TierThumbnail:
		return a.Thumbnail
	}
	return nil
}

// TotalBytes is the combined size of all produced tiers.
func (a *ArtifactSet) TotalBytes() int {
	return len(a.Full) + len(a.Medium) + len(a.Thumbnail)
}

type encodeFunc func(w io.Writer, img image.Image, quality int) error

func encodeJPEG(w io.Writer, img image.Image, quality int) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
}

// Deriver produces the resolution ladder for a normalized image.
type Deriver struct {
	tiers  []Tier
	encode encodeFunc
}

// NewDeriver creates a deriver for the given tiers, or DefaultTiers when empty.
func NewDeriver(tiers []Tier) *Deriver {
	if len(tiers) == 0 {
		tiers = DefaultTiers
	}
	return &Deriver{tiers: tiers, encode: encodeJPEG}
}

// FitDimensions scales w×h so the long edge is at most longEdge.
// The ratio is clamped to 1 so images are never upscaled.
func FitDimensions(w, h, longEdge int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	ratio := math.Min(1.0, float64(longEdge)/float64(max(w, h)))
	tw := max(1, int(math.Round(float64(w)*ratio)))
	th := max(1, int(math.Round(float64(h)*ratio)))
	return tw, th
}

// Derive resizes and encodes every tier. Optional tiers that fail are
// recorded in MissingTiers; a missing full tier fails the whole call.
func (d *Deriver) Derive(n *NormalizedImage) (*ArtifactSet, error) {
	if n == nil || n.Image == nil {
		return nil, fmt.Errorf("%w: no source image", ErrFullTierMissing)
	}

	set := &ArtifactSet{
		SourceWidth:   n.Width,
		SourceHeight:  n.Height,
		WasTranscoded: n.Transcoded,
	}

	var fullErr error
	for _, tier := range d.tiers {
		tw, th := FitDimensions(n.Width, n.Height, tier.LongEdge)

		img := n.Image
		if tw != n.Width || th != n.Height {
			img = imaging.Resize(n.Image, tw, th, imaging.Lanczos)
		}

		var buf bytes.Buffer
		if err := d.encode(&buf, img, tier.Quality); err != nil {
			logging.Warn("Failed to encode %s tier (%dx%d): %v", tier.Name, tw, th, err)
			if tier.Name == TierFull {
				fullErr = err
			} else {
				set.MissingTiers = append(set.MissingTiers, tier.Name)
			}
			continue
		}

		switch tier.Name {
		case TierFull:
			set.Full = buf.Bytes()
			set.Width, set.Height = tw, th
		case TierMedium:
			set.Medium = buf.Bytes()
		case TierThumbnail:
			set.Thumbnail = buf.Bytes()
		}
	}

	if set.Full == nil {
		if fullErr == nil {
			fullErr = errors.New("no full tier configured")
		}
		return nil, fmt.Errorf("%w: %v", ErrFullTierMissing, fullErr)
	}

	return set, nil
}

package ingest

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"photo-ingest/internal/logging"
	"photo-ingest/internal/media"
	"photo-ingest/internal/mediatypes"
	"photo-ingest/internal/metrics"
	"photo-ingest/internal/workers"
)

const (
	// DefaultMaxInputBytes caps a single raw input.
	DefaultMaxInputBytes int64 = 6 * 1024 * 1024
	// DefaultMaxBatchFiles caps the number of files per batch.
	DefaultMaxBatchFiles = 36
	// DefaultMaxBatchBytes caps the combined size of a batch.
	DefaultMaxBatchBytes int64 = 60 * 1024 * 1024
)

// Config configures a Pipeline.
type Config struct {
	MaxInputBytes int64
	MaxBatchFiles int
	MaxBatchBytes int64
	// DecodeWorkers bounds concurrent decode/resize work; 0 means one per CPU.
	DecodeWorkers int
}

// RawInput is a user-selected file as received.
type RawInput struct {
	Name        string
	ContentType string
	Data        []byte
}

// Result is an accepted input ready for upload.
type Result struct {
	Name      string
	Format    mediatypes.Format
	InputSize int64
	Artifacts *media.ArtifactSet
	// Metadata is nil when the input carries no readable EXIF.
	Metadata *media.PhotoMetadata
	Checksum string
}

// Pipeline validates, normalizes and derives tiers for raw inputs. It is
// safe for concurrent use.
type Pipeline struct {
	cfg        Config
	normalizer *media.Normalizer
	deriver    *media.Deriver
	sem        *semaphore.Weighted
	gate       MemoryGate
}

// MemoryGate blocks decode work while the process is under memory pressure.
type MemoryGate interface {
	Wait(ctx context.Context) error
}

// New creates a pipeline. Nil collaborators get their defaults.
func New(cfg Config, normalizer *media.Normalizer, deriver *media.Deriver) *Pipeline {
	if cfg.MaxInputBytes <= 0 {
		cfg.MaxInputBytes = DefaultMaxInputBytes
	}
	if cfg.MaxBatchFiles <= 0 {
		cfg.MaxBatchFiles = DefaultMaxBatchFiles
	}
	if cfg.MaxBatchBytes <= 0 {
		cfg.MaxBatchBytes = DefaultMaxBatchBytes
	}
	if cfg.DecodeWorkers <= 0 {
		cfg.DecodeWorkers = workers.ForCPU(0)
	}
	if normalizer == nil {
		normalizer = media.NewNormalizer(nil)
	}
	if deriver == nil {
		deriver = media.NewDeriver(nil)
	}

	return &Pipeline{
		cfg:        cfg,
		normalizer: normalizer,
		deriver:    deriver,
		sem:        semaphore.NewWeighted(int64(cfg.DecodeWorkers)),
	}
}

// SetMemoryGate installs a gate consulted before each decode. Call it
// before the pipeline is shared.
func (p *Pipeline) SetMemoryGate(g MemoryGate) { p.gate = g }

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Ingest runs the size check, sniff, normalize and derive steps in order
// and stops at the first failure. Refusals are *Rejection; any other error
// means ctx ended before the input was processed.
func (p *Pipeline) Ingest(ctx context.Context, in RawInput) (*Result, error) {
	size := int64(len(in.Data))
	metrics.IngestInputBytes.Observe(float64(size))

	if size > p.cfg.MaxInputBytes {
		return nil, p.rejected(in, reject(TooLarge,
			fmt.Errorf("%d bytes exceeds limit of %d", size, p.cfg.MaxInputBytes)))
	}

	start := time.Now()
	header := in.Data
	if len(header) > media.SniffLen {
		header = header[:media.SniffLen]
	}
	sniffed := media.Classify(header)
	metrics.IngestPhaseDuration.WithLabelValues("sniff").Observe(time.Since(start).Seconds())
	metrics.IngestByFormat.WithLabelValues(sniffed.String()).Inc()

	if sniffed == mediatypes.FormatUnrecognized {
		return nil, p.rejected(in, reject(UnsupportedFormat, fmt.Errorf("unrecognized magic bytes")))
	}
	declared := mediatypes.Declared(in.Name, in.ContentType)
	if !mediatypes.Compatible(declared, sniffed) {
		return nil, p.rejected(in, reject(UnsupportedFormat,
			fmt.Errorf("declared %s but content is %s", declared, sniffed)))
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	if p.gate != nil {
		if err := p.gate.Wait(ctx); err != nil {
			return nil, err
		}
	}

	start = time.Now()
	normalized, err := p.normalizer.Normalize(ctx, in.Data, sniffed)
	metrics.IngestPhaseDuration.WithLabelValues("normalize").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, p.rejected(in, reject(TranscodeFailed, err))
	}

	start = time.Now()
	artifacts, err := p.deriver.Derive(normalized)
	metrics.IngestPhaseDuration.WithLabelValues("derive").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, p.rejected(in, reject(ResizeFailed, err))
	}
	for _, tier := range artifacts.MissingTiers {
		metrics.IngestMissingTiers.WithLabelValues(tier).Inc()
		logging.Warn("Ingest %s: %s tier missing, continuing with partial set", in.Name, tier)
	}

	start = time.Now()
	meta, err := media.ExtractMetadata(in.Data)
	metrics.IngestPhaseDuration.WithLabelValues("exif").Observe(time.Since(start).Seconds())
	if err != nil {
		logging.Debug("Ingest %s: no EXIF metadata: %v", in.Name, err)
		meta = nil
	}

	metrics.IngestTotal.WithLabelValues("accepted").Inc()
	logging.Logger().Debug().
		Str("name", in.Name).
		Str("format", sniffed.String()).
		Int("width", artifacts.Width).
		Int("height", artifacts.Height).
		Int("bytes", artifacts.TotalBytes()).
		Bool("transcoded", artifacts.WasTranscoded).
		Msg("Ingested input")

	return &Result{
		Name:      in.Name,
		Format:    sniffed,
		InputSize: size,
		Artifacts: artifacts,
		Metadata:  meta,
		Checksum:  media.Checksum(in.Data),
	}, nil
}

func (p *Pipeline) rejected(in RawInput, r *Rejection) error {
	metrics.IngestTotal.WithLabelValues(r.Reason.String()).Inc()
	logging.Info("Rejected %s: %v", in.Name, r)
	return r
}

// ValidateBatch enforces the per-batch file count and total size limits.
// Individual inputs are checked later by Ingest.
func (p *Pipeline) ValidateBatch(inputs []RawInput) error {
	if len(inputs) == 0 {
		return ErrEmptyBatch
	}
	if len(inputs) > p.cfg.MaxBatchFiles {
		return fmt.Errorf("%w: %d files, limit %d", ErrTooManyFiles, len(inputs), p.cfg.MaxBatchFiles)
	}
	var total int64
	for _, in := range inputs {
		total += int64(len(in.Data))
	}
	if total > p.cfg.MaxBatchBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrBatchTooLarge, total, p.cfg.MaxBatchBytes)
	}
	return nil
}

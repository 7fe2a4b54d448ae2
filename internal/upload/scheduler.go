package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"photo-ingest/internal/database"
	"photo-ingest/internal/ingest"
	"photo-ingest/internal/logging"
	"photo-ingest/internal/media"
	"photo-ingest/internal/mediatypes"
	"photo-ingest/internal/metrics"
	"photo-ingest/internal/storage"
	"photo-ingest/internal/workers"
)

// Defaults for Config fields.
const (
	DefaultConcurrency    = 6
	DefaultMaxRetries     = 1
	DefaultRetryDelay     = 1500 * time.Millisecond
	DefaultAttemptTimeout = 15 * time.Second
	DefaultWaveCooldown   = 500 * time.Millisecond
)

// tierOrder is the upload order; the full tier gates the metadata row.
var tierOrder = []string{media.TierFull, media.TierMedium, media.TierThumbnail}

// Config bounds a Scheduler.
type Config struct {
	Concurrency int
	MaxRetries  int
	// RetryDelay is multiplied by the attempt number before each retry.
	RetryDelay     time.Duration
	AttemptTimeout time.Duration
	// WaveCooldown separates successive waves of Concurrency tasks.
	WaveCooldown time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:    DefaultConcurrency,
		MaxRetries:     DefaultMaxRetries,
		RetryDelay:     DefaultRetryDelay,
		AttemptTimeout: DefaultAttemptTimeout,
		WaveCooldown:   DefaultWaveCooldown,
	}
}

func (c Config) normalized() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = DefaultAttemptTimeout
	}
	if c.WaveCooldown < 0 {
		c.WaveCooldown = 0
	}
	return c
}

// Ingester produces artifacts for a raw input.
type Ingester interface {
	Ingest(ctx context.Context, in ingest.RawInput) (*ingest.Result, error)
}

// PhotoStore registers uploaded photos.
type PhotoStore interface {
	InsertPhoto(ctx context.Context, p *database.Photo) (int64, error)
}

// AuthClassifier reports whether an upload error means the session or
// credentials are no longer valid.
type AuthClassifier func(err error) bool

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithAuthClassifier replaces storage.IsPermissionDenied.
func WithAuthClassifier(fn AuthClassifier) Option {
	return func(s *Scheduler) { s.isAuthFailure = fn }
}

// WithIDGenerator replaces uuid.NewString for object names.
func WithIDGenerator(fn func() string) Option {
	return func(s *Scheduler) { s.newID = fn }
}

// Scheduler ingests and uploads batches of tasks with bounded concurrency.
// A single Run owns its task queue; concurrent Runs do not share state.
type Scheduler struct {
	cfg           Config
	ingester      Ingester
	store         storage.ObjectStore
	photos        PhotoStore
	isAuthFailure AuthClassifier
	newID         func() string
}

// NewScheduler creates a scheduler. photos may be nil, in which case no
// metadata rows are written.
func NewScheduler(cfg Config, ingester Ingester, store storage.ObjectStore, photos PhotoStore, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:           cfg.normalized(),
		ingester:      ingester,
		store:         store,
		photos:        photos,
		isAuthFailure: storage.IsPermissionDenied,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config { return s.cfg }

// WithLimits returns a copy of s using the given concurrency and retry
// budget. Non-positive concurrency and negative maxRetries keep the
// current values.
func (s *Scheduler) WithLimits(concurrency, maxRetries int) *Scheduler {
	c := *s
	if concurrency > 0 {
		c.cfg.Concurrency = concurrency
	}
	if maxRetries >= 0 {
		c.cfg.MaxRetries = maxRetries
	}
	return &c
}

type job struct {
	index int
	wave  *sync.WaitGroup
}

// batchState collects outcomes and serializes progress reports.
type batchState struct {
	mu       sync.Mutex
	result   *BatchResult
	done     int
	observer ProgressObserver
}

func (b *batchState) finish(out ItemOutcome) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.result.Items[out.Index] = out
	if out.Succeeded {
		b.result.Succeeded++
	} else {
		b.result.Failed++
		if out.Reason == UploadAuthFailure {
			b.result.NeedsReauth = true
		}
	}
	metrics.UploadItemsTotal.WithLabelValues(outcomeLabel(out)).Inc()

	b.done++
	if b.observer != nil {
		b.observer.OnProgress(b.done, b.result.Total)
	}
}

func outcomeLabel(out ItemOutcome) string {
	if out.Succeeded {
		return "succeeded"
	}
	return out.Reason.String()
}

// Run processes tasks and returns once every task has a terminal state.
// min(Concurrency, len(tasks)) workers pull from a queue that is filled in
// waves of Concurrency tasks separated by WaveCooldown.
//
// When ctx ends no new task or retry is started. In-flight attempts run to
// completion and unstarted tasks are reported as Cancelled. Per-item
// failures never fail the batch; the returned error is always nil today
// and reserved for misconfiguration.
func (s *Scheduler) Run(ctx context.Context, tasks []*Task, observer ProgressObserver) (*BatchResult, error) {
	if s.store == nil || s.ingester == nil {
		return nil, errors.New("scheduler requires an ingester and an object store")
	}

	start := time.Now()
	n := len(tasks)
	state := &batchState{
		result:   &BatchResult{Total: n, Items: make([]ItemOutcome, n)},
		observer: observer,
	}
	if n == 0 {
		return state.result, nil
	}

	concurrency := s.cfg.Concurrency
	poolSize := workers.Bounded(concurrency, n)
	logging.Info("Upload batch started: %d tasks, %d workers, max %d retries", n, poolSize, s.cfg.MaxRetries)

	// In-flight work is detached from ctx so cancellation only stops
	// admission.
	workCtx := context.WithoutCancel(ctx)

	queue := make(chan job)
	var g errgroup.Group
	for w := 0; w < poolSize; w++ {
		g.Go(func() error {
			for j := range queue {
				metrics.UploadsInFlight.Inc()
				state.finish(s.process(ctx, workCtx, j.index, tasks[j.index]))
				metrics.UploadsInFlight.Dec()
				j.wave.Done()
			}
			return nil
		})
	}

	started := make([]bool, n)
dispatch:
	for waveStart := 0; waveStart < n; waveStart += concurrency {
		if waveStart > 0 && !sleepCtx(ctx, s.cfg.WaveCooldown) {
			break
		}
		var wave sync.WaitGroup
		for i := waveStart; i < min(waveStart+concurrency, n); i++ {
			if ctx.Err() != nil {
				wave.Wait()
				break dispatch
			}
			wave.Add(1)
			select {
			case queue <- job{index: i, wave: &wave}:
				started[i] = true
			case <-ctx.Done():
				wave.Done()
				wave.Wait()
				break dispatch
			}
		}
		wave.Wait()
	}
	close(queue)
	_ = g.Wait()

	for i, ok := range started {
		if !ok {
			state.finish(ItemOutcome{
				Index:  i,
				Name:   tasks[i].Input.Name,
				Reason: Cancelled,
				Error:  context.Cause(ctx).Error(),
			})
		}
	}

	result := state.result
	result.Duration = time.Since(start)
	metrics.UploadBatchDuration.Observe(result.Duration.Seconds())
	metrics.UploadBatchesTotal.WithLabelValues(string(result.Status())).Inc()
	logging.Info("Upload batch finished in %v: %s", result.Duration.Round(time.Millisecond), result.Summary())

	return result, nil
}

// process ingests and uploads one task. ctx governs admission of retries,
// workCtx carries the actual work.
func (s *Scheduler) process(ctx, workCtx context.Context, index int, task *Task) ItemOutcome {
	out := ItemOutcome{Index: index, Name: task.Input.Name}

	res, err := s.ingester.Ingest(workCtx, task.Input)
	if err != nil {
		task.LastError = err
		out.Error = err.Error()
		out.Reason = Rejected
		if reason, ok := ingest.ReasonOf(err); ok {
			out.RejectReason = reason
		} else if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			out.Reason = Cancelled
		}
		return out
	}

	id := s.newID()
	keys := make(map[string]string, len(tierOrder))
	for _, tier := range tierOrder {
		if len(res.Artifacts.Tier(tier)) > 0 {
			keys[tier] = objectKey(task.KeyPrefix, tier, id)
		}
	}
	uploaded := make(map[string]bool, len(keys))

	reason := s.uploadWithRetry(ctx, workCtx, task, res.Artifacts, keys, uploaded)
	out.Attempts = task.Attempts
	if task.LastError != nil {
		out.Error = task.LastError.Error()
	}
	// Optional tiers that never landed do not fail an item whose full tier
	// is stored; an auth failure always does.
	if reason != UploadAuthFailure && uploaded[media.TierFull] {
		reason = 0
	}
	if reason != 0 || !uploaded[media.TierFull] {
		if reason == 0 {
			reason = UploadTransient
		}
		out.Reason = reason
		return out
	}

	out.Keys = make(map[string]string, len(uploaded))
	out.URLs = make(map[string]string, len(uploaded))
	for _, tier := range tierOrder {
		if uploaded[tier] {
			out.Keys[tier] = keys[tier]
			out.URLs[tier] = s.store.PublicURL(keys[tier])
		} else {
			out.MissingTiers = append(out.MissingTiers, tier)
		}
	}

	if s.photos != nil {
		photoID, err := s.photos.InsertPhoto(workCtx, buildPhoto(task, res, id, out.Keys))
		if err != nil {
			// The uploaded objects stay in the store unreferenced.
			logging.Error("Metadata insert failed for %s after upload (orphaned keys %v): %v", task.Input.Name, out.Keys, err)
			task.LastError = err
			out.Error = err.Error()
			out.Reason = DbInsertFailed
			return out
		}
		out.PhotoID = photoID
	}

	out.Succeeded = true
	out.Error = ""
	return out
}

// uploadWithRetry uploads every tier in keys not yet marked uploaded. A
// transient failure retries the remaining tiers after RetryDelay × attempt;
// an auth failure stops immediately. A zero reason means no hard failure;
// the caller still checks that the full tier landed.
func (s *Scheduler) uploadWithRetry(ctx, workCtx context.Context, task *Task, art *media.ArtifactSet, keys map[string]string, uploaded map[string]bool) FailureReason {
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if ctx.Err() != nil {
				return Cancelled
			}
			metrics.UploadRetriesTotal.Inc()
			delay := s.cfg.RetryDelay * time.Duration(attempt)
			logging.Debug("Retrying upload of %s in %v (attempt %d/%d)", task.Input.Name, delay, attempt+1, s.cfg.MaxRetries+1)
			if !sleepCtx(ctx, delay) {
				return Cancelled
			}
		}

		task.Attempts++
		err := s.uploadRemaining(workCtx, task, art, keys, uploaded)
		if err == nil {
			metrics.UploadAttemptsTotal.WithLabelValues("success").Inc()
			task.LastError = nil
			return 0
		}
		task.LastError = err

		if s.isAuthFailure(err) {
			metrics.UploadAttemptsTotal.WithLabelValues("auth").Inc()
			logging.Logger().Warn().Str("name", task.Input.Name).Err(err).Msg("Upload rejected by store, not retrying")
			return UploadAuthFailure
		}

		label := "transient"
		if errors.Is(err, context.DeadlineExceeded) {
			label = "timeout"
		}
		metrics.UploadAttemptsTotal.WithLabelValues(label).Inc()
		logging.Logger().Warn().
			Str("name", task.Input.Name).
			Int("attempt", task.Attempts).
			Err(err).
			Msg("Upload attempt failed")
	}
	return UploadTransient
}

// uploadRemaining makes one attempt: each tier not yet uploaded is put
// under its own AttemptTimeout, in tier order, stopping at the first error.
func (s *Scheduler) uploadRemaining(workCtx context.Context, task *Task, art *media.ArtifactSet, keys map[string]string, uploaded map[string]bool) error {
	for _, tier := range tierOrder {
		key, ok := keys[tier]
		if !ok || uploaded[tier] {
			continue
		}
		data := art.Tier(tier)

		attemptCtx, cancel := context.WithTimeout(workCtx, s.cfg.AttemptTimeout)
		err := s.store.Put(attemptCtx, key, data, "image/jpeg")
		cancel()
		if err != nil {
			return fmt.Errorf("upload %s tier: %w", tier, err)
		}

		uploaded[tier] = true
		metrics.UploadedBytesTotal.WithLabelValues(tier).Add(float64(len(data)))
		logging.Logger().Debug().Str("key", key).Int("bytes", len(data)).Msg("Uploaded tier")
	}
	return nil
}

func objectKey(prefix, tier, id string) string {
	return path.Join(prefix, tier, id+".jpg")
}

func buildPhoto(task *Task, res *ingest.Result, id string, keys map[string]string) *database.Photo {
	p := &database.Photo{
		UserID:           task.UserID,
		Filename:         id + ".jpg",
		OriginalFilename: task.Input.Name,
		StoragePath:      keys[media.TierFull],
		CompressedPath:   keys[media.TierMedium],
		ThumbnailPath:    keys[media.TierThumbnail],
		FileSize:         res.InputSize,
		MimeType:         mediatypes.ContentType(res.Format),
		Width:            res.Artifacts.Width,
		Height:           res.Artifacts.Height,
		IsHEIF:           res.Format == mediatypes.FormatHEIF,
		Checksum:         res.Checksum,
	}

	if meta := res.Metadata; meta != nil {
		if raw, err := json.Marshal(meta); err == nil {
			p.ExifData = string(raw)
		}
		if meta.HasGPS {
			lat, lon := meta.Latitude, meta.Longitude
			p.Latitude = &lat
			p.Longitude = &lon
		}
		if !meta.DateTaken.IsZero() {
			taken := meta.DateTaken
			p.TakenAt = &taken
		}
	}
	return p
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"photo-ingest/internal/database"
	"photo-ingest/internal/ingest"
	"photo-ingest/internal/media"
	"photo-ingest/internal/mediatypes"
	"photo-ingest/internal/storage"
)

// fakeStore wraps a MemoryStore with latency, scripted failures and an
// in-flight high-water mark.
type fakeStore struct {
	*storage.MemoryStore
	delay time.Duration
	// fail returns an error for the n-th Put (1-based) of key.
	fail func(key string, n int) error

	mu          sync.Mutex
	calls       map[string]int
	inFlight    int
	maxInFlight int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		MemoryStore: storage.NewMemoryStore("photos", ""),
		calls:       make(map[string]int),
	}
}

func (f *fakeStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	f.mu.Lock()
	f.calls[key]++
	n := f.calls[key]
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.fail != nil {
		if err := f.fail(key, n); err != nil {
			return err
		}
	}
	return f.MemoryStore.Put(ctx, key, data, contentType)
}

func (f *fakeStore) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

type fakePhotos struct {
	mu      sync.Mutex
	err     error
	inserts []*database.Photo
}

func (f *fakePhotos) InsertPhoto(ctx context.Context, p *database.Photo) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.inserts = append(f.inserts, p)
	return int64(len(f.inserts)), nil
}

func (f *fakePhotos) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inserts)
}

// stubIngester accepts every input with a fixed artifact set.
type stubIngester struct {
	art *media.ArtifactSet
}

func (s stubIngester) Ingest(ctx context.Context, in ingest.RawInput) (*ingest.Result, error) {
	return &ingest.Result{
		Name:      in.Name,
		Format:    mediatypes.FormatJPEG,
		InputSize: int64(len(in.Data)),
		Artifacts: s.art,
		Checksum:  "abc",
	}, nil
}

func fullOnly() stubIngester {
	return stubIngester{art: &media.ArtifactSet{Full: []byte("full"), Width: 10, Height: 10}}
}

func allTiers() stubIngester {
	return stubIngester{art: &media.ArtifactSet{
		Full:      []byte("full"),
		Medium:    []byte("medium"),
		Thumbnail: []byte("thumb"),
		Width:     10,
		Height:    10,
	}}
}

func testConfig(concurrency, maxRetries int) Config {
	return Config{
		Concurrency:    concurrency,
		MaxRetries:     maxRetries,
		RetryDelay:     time.Millisecond,
		AttemptTimeout: time.Second,
		WaveCooldown:   0,
	}
}

func namedTasks(n int) []*Task {
	inputs := make([]ingest.RawInput, n)
	for i := range inputs {
		inputs[i] = ingest.RawInput{Name: fmt.Sprintf("photo-%d.jpg", i), ContentType: "image/jpeg", Data: []byte{0xFF, 0xD8, 0xFF}}
	}
	return NewTasks(inputs, "u1", "user-1")
}

func encodeJPEG(t *testing.T, w, h int, noisy bool) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rng := rand.New(rand.NewSource(1))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 60, A: 255}
			if noisy {
				c = color.RGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type noHEIF struct{}

func (noHEIF) ToJPEG(context.Context, []byte, int) ([]byte, error) {
	return nil, errors.New("heif disabled in tests")
}

func TestRunPartialFailureWithOversizedInput(t *testing.T) {
	small := encodeJPEG(t, 48, 32, false)
	big := encodeJPEG(t, 300, 300, true)
	limit := int64(len(small)) * 2
	if int64(len(big)) <= limit {
		t.Fatalf("test setup: big input (%d) not above limit (%d)", len(big), limit)
	}

	pipeline := ingest.New(ingest.Config{MaxInputBytes: limit}, media.NewNormalizer(noHEIF{}), nil)
	store := newFakeStore()
	photos := &fakePhotos{}
	s := NewScheduler(testConfig(2, 1), pipeline, store, photos)

	inputs := make([]ingest.RawInput, 5)
	for i := range inputs {
		inputs[i] = ingest.RawInput{Name: fmt.Sprintf("p%d.jpg", i+1), ContentType: "image/jpeg", Data: small}
	}
	inputs[2].Data = big

	res, err := s.Run(context.Background(), NewTasks(inputs, "u1", "user-1"), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.Succeeded != 4 || res.Failed != 1 {
		t.Fatalf("Succeeded/Failed = %d/%d, want 4/1", res.Succeeded, res.Failed)
	}
	if res.Status() != PartiallySucceeded {
		t.Errorf("Status() = %v, want partial", res.Status())
	}
	bad := res.Items[2]
	if bad.Reason != Rejected || bad.RejectReason != ingest.TooLarge {
		t.Errorf("item 3 = %v/%v, want rejected/too_large", bad.Reason, bad.RejectReason)
	}
	if bad.Attempts != 0 {
		t.Errorf("rejected item made %d upload attempts", bad.Attempts)
	}

	for i, item := range res.Items {
		if i == 2 {
			continue
		}
		for tier, key := range item.Keys {
			if n := store.PutCount(key); n != 1 {
				t.Errorf("item %d tier %s uploaded %d times, want 1", i, tier, n)
			}
		}
		if len(item.Keys) != 3 {
			t.Errorf("item %d has %d keys, want 3", i, len(item.Keys))
		}
	}
	if got := len(store.Keys()); got != 12 {
		t.Errorf("store holds %d objects, want 12", got)
	}
	if photos.count() != 4 {
		t.Errorf("InsertPhoto called %d times, want 4", photos.count())
	}
}

func TestRunHonoursConcurrencyCap(t *testing.T) {
	const latency = 60 * time.Millisecond
	store := newFakeStore()
	store.delay = latency
	s := NewScheduler(testConfig(2, 0), fullOnly(), store, nil)

	start := time.Now()
	res, err := s.Run(context.Background(), namedTasks(6), nil)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatal(err)
	}

	if res.Succeeded != 6 {
		t.Fatalf("Succeeded = %d, want 6", res.Succeeded)
	}
	if store.maxInFlight != 2 {
		t.Errorf("max in-flight puts = %d, want 2", store.maxInFlight)
	}
	if elapsed < 3*latency {
		t.Errorf("elapsed %v < 3×latency, cap not honoured", elapsed)
	}
	if elapsed > 5*latency {
		t.Errorf("elapsed %v > 5×latency, tasks ran serially", elapsed)
	}
}

func TestAuthFailureIsNotRetried(t *testing.T) {
	store := newFakeStore()
	store.fail = func(string, int) error {
		return &storage.StoreError{Op: "put", Kind: storage.KindPermissionDenied, Err: errors.New("JWT expired")}
	}
	photos := &fakePhotos{}
	s := NewScheduler(testConfig(1, 2), allTiers(), store, photos)

	res, _ := s.Run(context.Background(), namedTasks(1), nil)

	item := res.Items[0]
	if item.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", item.Attempts)
	}
	if item.Reason != UploadAuthFailure {
		t.Errorf("Reason = %v, want upload_auth_failure", item.Reason)
	}
	if !res.NeedsReauth {
		t.Error("NeedsReauth = false")
	}
	if !strings.Contains(res.Summary(), "sign in again") {
		t.Errorf("Summary() = %q, want re-auth hint", res.Summary())
	}
	if photos.count() != 0 {
		t.Error("metadata written for a failed upload")
	}
}

func TestTransientFailureRetriesUpToBudget(t *testing.T) {
	store := newFakeStore()
	store.fail = func(string, int) error { return errors.New("503 slow down") }
	s := NewScheduler(testConfig(1, 2), allTiers(), store, nil)

	res, _ := s.Run(context.Background(), namedTasks(1), nil)

	item := res.Items[0]
	if item.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3 (1 + 2 retries)", item.Attempts)
	}
	if item.Reason != UploadTransient {
		t.Errorf("Reason = %v, want upload_transient", item.Reason)
	}
	if res.NeedsReauth {
		t.Error("NeedsReauth set for transient failure")
	}
}

func TestAttemptTimeoutCountsTowardRetries(t *testing.T) {
	store := newFakeStore()
	store.delay = 200 * time.Millisecond
	cfg := testConfig(1, 2)
	cfg.AttemptTimeout = 20 * time.Millisecond
	s := NewScheduler(cfg, fullOnly(), store, nil)

	start := time.Now()
	res, _ := s.Run(context.Background(), namedTasks(1), nil)
	elapsed := time.Since(start)

	item := res.Items[0]
	if item.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", item.Attempts)
	}
	if item.Reason != UploadTransient {
		t.Errorf("Reason = %v, want upload_transient", item.Reason)
	}
	if got := store.totalCalls(); got != 3 {
		t.Errorf("Put calls = %d, want 3", got)
	}
	if !strings.Contains(item.Error, context.DeadlineExceeded.Error()) {
		t.Errorf("Error = %q, want deadline exceeded", item.Error)
	}
	if elapsed >= store.delay {
		t.Errorf("elapsed %v, attempts were not cut off by the timeout", elapsed)
	}
}

func TestWaveCooldownBetweenWaves(t *testing.T) {
	const cooldown = 40 * time.Millisecond

	tests := []struct {
		name       string
		tasks      int
		minElapsed time.Duration
		maxElapsed time.Duration
	}{
		{"single wave has no cooldown", 2, 0, cooldown},
		{"three waves wait twice", 6, 2 * cooldown, 10 * cooldown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			cfg := testConfig(2, 0)
			cfg.WaveCooldown = cooldown
			s := NewScheduler(cfg, fullOnly(), store, nil)

			start := time.Now()
			res, err := s.Run(context.Background(), namedTasks(tt.tasks), nil)
			elapsed := time.Since(start)
			if err != nil {
				t.Fatal(err)
			}

			if res.Succeeded != tt.tasks {
				t.Fatalf("Succeeded = %d, want %d", res.Succeeded, tt.tasks)
			}
			if elapsed < tt.minElapsed || elapsed > tt.maxElapsed {
				t.Errorf("elapsed %v, want between %v and %v", elapsed, tt.minElapsed, tt.maxElapsed)
			}
		})
	}
}

func TestCustomAuthClassifier(t *testing.T) {
	store := newFakeStore()
	store.fail = func(string, int) error { return errors.New("new row violates row-level security policy") }
	s := NewScheduler(testConfig(1, 3), fullOnly(), store, nil, WithAuthClassifier(func(err error) bool {
		return strings.Contains(err.Error(), "row-level security")
	}))

	res, _ := s.Run(context.Background(), namedTasks(1), nil)
	if res.Items[0].Attempts != 1 || !res.NeedsReauth {
		t.Errorf("Attempts = %d, NeedsReauth = %v; want 1, true", res.Items[0].Attempts, res.NeedsReauth)
	}
}

func TestRetryDoesNotReuploadLandedTiers(t *testing.T) {
	store := newFakeStore()
	store.fail = func(key string, n int) error {
		if strings.Contains(key, "/medium/") && n == 1 {
			return errors.New("connection reset")
		}
		return nil
	}
	s := NewScheduler(testConfig(1, 1), allTiers(), store, nil, WithIDGenerator(func() string { return "id1" }))

	res, _ := s.Run(context.Background(), namedTasks(1), nil)

	item := res.Items[0]
	if !item.Succeeded {
		t.Fatalf("item failed: %v %s", item.Reason, item.Error)
	}
	if item.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", item.Attempts)
	}
	if n := store.PutCount("u1/full/id1.jpg"); n != 1 {
		t.Errorf("full tier stored %d times, want 1", n)
	}
	if total := store.totalCalls(); total != 4 {
		t.Errorf("total Put calls = %d, want 4", total)
	}
}

func TestOptionalTierFailureKeepsItem(t *testing.T) {
	store := newFakeStore()
	store.fail = func(key string, _ int) error {
		if strings.Contains(key, "/thumb/") {
			return errors.New("timeout")
		}
		return nil
	}
	photos := &fakePhotos{}
	s := NewScheduler(testConfig(1, 1), allTiers(), store, photos)

	res, _ := s.Run(context.Background(), namedTasks(1), nil)

	item := res.Items[0]
	if !item.Succeeded {
		t.Fatalf("item failed: %v", item.Reason)
	}
	if len(item.MissingTiers) != 1 || item.MissingTiers[0] != media.TierThumbnail {
		t.Errorf("MissingTiers = %v, want [thumb]", item.MissingTiers)
	}
	if photos.count() != 1 || photos.inserts[0].ThumbnailPath != "" {
		t.Error("metadata row should be written without a thumbnail path")
	}
}

func TestMetadataGatedOnFullTier(t *testing.T) {
	store := newFakeStore()
	store.fail = func(key string, _ int) error {
		if strings.Contains(key, "/full/") {
			return errors.New("broken pipe")
		}
		return nil
	}
	photos := &fakePhotos{}
	s := NewScheduler(testConfig(2, 1), allTiers(), store, photos)

	res, _ := s.Run(context.Background(), namedTasks(3), nil)

	if res.Failed != 3 {
		t.Errorf("Failed = %d, want 3", res.Failed)
	}
	if photos.count() != 0 {
		t.Errorf("InsertPhoto called %d times without a full tier", photos.count())
	}
	if len(store.Keys()) != 0 {
		t.Errorf("later tiers uploaded without the full tier: %v", store.Keys())
	}
}

func TestDbInsertFailure(t *testing.T) {
	store := newFakeStore()
	photos := &fakePhotos{err: errors.New("database is locked")}
	s := NewScheduler(testConfig(1, 1), allTiers(), store, photos)

	res, _ := s.Run(context.Background(), namedTasks(1), nil)

	item := res.Items[0]
	if item.Succeeded || item.Reason != DbInsertFailed {
		t.Errorf("item = %v/%v, want failed db_insert_failed", item.Succeeded, item.Reason)
	}
	if len(store.Keys()) != 3 {
		t.Errorf("uploaded objects = %d, want 3 left in the store", len(store.Keys()))
	}
	if res.Status() != AllFailed {
		t.Errorf("Status() = %v, want all_failed", res.Status())
	}
}

func TestProgressIsMonotonicAndComplete(t *testing.T) {
	store := newFakeStore()
	store.delay = 5 * time.Millisecond
	s := NewScheduler(testConfig(3, 0), fullOnly(), store, nil)

	var mu sync.Mutex
	var seen []int
	observer := ProgressFunc(func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		if total != 10 {
			t.Errorf("total = %d, want 10", total)
		}
		seen = append(seen, done)
	})

	if _, err := s.Run(context.Background(), namedTasks(10), observer); err != nil {
		t.Fatal(err)
	}

	if len(seen) != 10 {
		t.Fatalf("progress reported %d times, want 10", len(seen))
	}
	for i, done := range seen {
		if done != i+1 {
			t.Errorf("progress[%d] = %d, want %d", i, done, i+1)
		}
	}
}

func TestCancellationStopsAdmission(t *testing.T) {
	store := newFakeStore()
	store.delay = 80 * time.Millisecond
	s := NewScheduler(testConfig(2, 0), fullOnly(), store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	var reports int
	res, err := s.Run(ctx, namedTasks(6), ProgressFunc(func(done, total int) { reports++ }))
	if err != nil {
		t.Fatal(err)
	}

	if res.Succeeded != 2 {
		t.Errorf("Succeeded = %d, want 2 in-flight tasks drained", res.Succeeded)
	}
	counts := res.FailuresByReason()
	if counts[Cancelled] != 4 {
		t.Errorf("Cancelled = %d, want 4", counts[Cancelled])
	}
	if reports != 6 {
		t.Errorf("progress reported %d times, want 6", reports)
	}
}

func TestObjectKeyLayout(t *testing.T) {
	store := newFakeStore()
	s := NewScheduler(testConfig(1, 0), allTiers(), store, nil, WithIDGenerator(func() string { return "abc" }))

	res, _ := s.Run(context.Background(), namedTasks(1), nil)

	want := map[string]string{
		"full":   "u1/full/abc.jpg",
		"medium": "u1/medium/abc.jpg",
		"thumb":  "u1/thumb/abc.jpg",
	}
	for tier, key := range want {
		if got := res.Items[0].Keys[tier]; got != key {
			t.Errorf("Keys[%s] = %q, want %q", tier, got, key)
		}
		if got := res.Items[0].URLs[tier]; got != "memory://photos/"+key {
			t.Errorf("URLs[%s] = %q", tier, got)
		}
		if ct := store.ContentType(key); ct != "image/jpeg" {
			t.Errorf("content type for %s = %q", key, ct)
		}
	}
	if got := objectKey("", "full", "x"); got != "full/x.jpg" {
		t.Errorf("objectKey without prefix = %q", got)
	}
}

func TestWithLimits(t *testing.T) {
	base := NewScheduler(DefaultConfig(), fullOnly(), newFakeStore(), nil)

	tuned := base.WithLimits(3, 0)
	if tuned.Config().Concurrency != 3 || tuned.Config().MaxRetries != 0 {
		t.Errorf("WithLimits config = %+v", tuned.Config())
	}
	if base.Config().Concurrency != DefaultConcurrency {
		t.Error("WithLimits modified the original scheduler")
	}

	kept := base.WithLimits(0, -1)
	if kept.Config().Concurrency != DefaultConcurrency || kept.Config().MaxRetries != DefaultMaxRetries {
		t.Errorf("WithLimits(0, -1) config = %+v", kept.Config())
	}
}

func TestRunEmptyBatch(t *testing.T) {
	s := NewScheduler(DefaultConfig(), fullOnly(), newFakeStore(), nil)
	res, err := s.Run(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 0 || res.Status() != AllSucceeded {
		t.Errorf("empty batch result = %+v", res)
	}
}

func TestBatchResultSummary(t *testing.T) {
	tests := []struct {
		name   string
		result BatchResult
		status BatchStatus
		want   string
	}{
		{"all ok", BatchResult{Total: 3, Succeeded: 3}, AllSucceeded, "all succeeded (3/3)"},
		{"partial", BatchResult{Total: 5, Succeeded: 4, Failed: 1}, PartiallySucceeded, "partially succeeded (4/5)"},
		{"all failed", BatchResult{Total: 2, Failed: 2}, AllFailed, "all failed (0/2)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Status(); got != tt.status {
				t.Errorf("Status() = %v, want %v", got, tt.status)
			}
			if got := tt.result.Summary(); got != tt.want {
				t.Errorf("Summary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Concurrency != 6 || cfg.MaxRetries != 1 {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}
	if cfg.RetryDelay != 1500*time.Millisecond || cfg.AttemptTimeout != 15*time.Second || cfg.WaveCooldown != 500*time.Millisecond {
		t.Errorf("DefaultConfig() timings = %+v", cfg)
	}
}

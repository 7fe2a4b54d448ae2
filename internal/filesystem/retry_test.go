package filesystem

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

type recordingObserver struct {
	mu        sync.Mutex
	attempts  int
	successes int
	failures  int
	stale     int
	durations []string
}

func (r *recordingObserver) ObserveRetryAttempt(op, volume string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
}

func (r *recordingObserver) ObserveRetrySuccess(op, volume string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes++
}

func (r *recordingObserver) ObserveRetryFailure(op, volume string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
}

func (r *recordingObserver) ObserveRetryDuration(op, volume string, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations = append(r.durations, op+"/"+volume)
}

func (r *recordingObserver) ObserveStaleError(op, volume string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale++
}

func installObserver(t *testing.T) *recordingObserver {
	t.Helper()
	rec := &recordingObserver{}
	original := defaultObserver
	SetObserver(rec)
	t.Cleanup(func() { defaultObserver = original })
	return rec
}

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ESTALE", syscall.ESTALE, true},
		{"wrapped ESTALE", &os.PathError{Op: "open", Path: "/x", Err: syscall.ESTALE}, true},
		{"ENOENT", syscall.ENOENT, false},
		{"not exist", os.ErrNotExist, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_Resolve(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"input":   "/srv/photos",
		"camera":  "/srv/photos/camera",
		"scratch": "/tmp",
	})

	tests := []struct {
		name string
		path string
		want string
	}{
		{"input root", "/srv/photos", "input"},
		{"input file", "/srv/photos/beach.jpg", "input"},
		{"longest prefix wins", "/srv/photos/camera/IMG_0001.HEIC", "camera"},
		{"sibling with shared prefix", "/srv/photos-old/a.jpg", "unknown"},
		{"scratch", "/tmp/upload-1", "scratch"},
		{"unmatched", "/etc/hosts", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := vr.Resolve(tt.path); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestVolumeResolver_NilResolver(t *testing.T) {
	var vr *VolumeResolver
	if got := vr.Resolve("/srv/photos/a.jpg"); got != "unknown" {
		t.Errorf("nil resolver Resolve() = %q, want unknown", got)
	}
}

func TestRetryConfig_ResolveVolume(t *testing.T) {
	config := fastConfig()
	if got := config.resolveVolume("/srv/a.jpg"); got != "unknown" {
		t.Errorf("resolveVolume() without resolver = %q, want unknown", got)
	}

	config.VolumeResolver = NewVolumeResolver(map[string]string{"input": "/srv"})
	if got := config.resolveVolume("/srv/a.jpg"); got != "input" {
		t.Errorf("resolveVolume() = %q, want input", got)
	}
}

func TestReadFileWithRetry_Success(t *testing.T) {
	rec := installObserver(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	want := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatal(err)
	}

	config := fastConfig()
	config.VolumeResolver = NewVolumeResolver(map[string]string{"input": dir})

	got, err := ReadFileWithRetry(path, config)
	if err != nil {
		t.Fatalf("ReadFileWithRetry() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("ReadFileWithRetry() = %x, want %x", got, want)
	}
	if rec.attempts != 0 || rec.stale != 0 {
		t.Errorf("unexpected retries: attempts=%d stale=%d", rec.attempts, rec.stale)
	}
	if len(rec.durations) != 1 || rec.durations[0] != "read/input" {
		t.Errorf("durations = %v, want [read/input]", rec.durations)
	}
}

func TestStatWithRetry_NotExistIsNotRetried(t *testing.T) {
	rec := installObserver(t)
	path := filepath.Join(t.TempDir(), "missing.jpg")

	_, err := StatWithRetry(path, fastConfig())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("StatWithRetry() error = %v, want not-exist", err)
	}
	if rec.attempts != 0 || rec.failures != 0 {
		t.Errorf("not-exist should fail fast: attempts=%d failures=%d", rec.attempts, rec.failures)
	}
}

func TestWithRetry_StaleThenSuccess(t *testing.T) {
	rec := installObserver(t)

	calls := 0
	got, err := withRetry("read", "/srv/a.jpg", fastConfig(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, syscall.ESTALE
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if got != 42 {
		t.Errorf("withRetry() = %d, want 42", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if rec.stale != 2 || rec.attempts != 2 || rec.successes != 1 {
		t.Errorf("observer = stale %d attempts %d successes %d, want 2/2/1", rec.stale, rec.attempts, rec.successes)
	}
}

func TestWithRetry_ExhaustsRetries(t *testing.T) {
	rec := installObserver(t)

	calls := 0
	_, err := withRetry("stat", "/srv/a.jpg", fastConfig(), func() (struct{}, error) {
		calls++
		return struct{}{}, syscall.ESTALE
	})
	if !errors.Is(err, syscall.ESTALE) {
		t.Fatalf("withRetry() error = %v, want ESTALE", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4 (1 + MaxRetries)", calls)
	}
	if rec.failures != 1 {
		t.Errorf("failures = %d, want 1", rec.failures)
	}
	if rec.attempts != 3 {
		t.Errorf("attempts = %d, want 3", rec.attempts)
	}
}

func TestSetObserverNil(t *testing.T) {
	original := defaultObserver
	defer func() { defaultObserver = original }()

	SetObserver(nil)
	if _, ok := defaultObserver.(nopObserver); !ok {
		t.Errorf("SetObserver(nil) installed %T, want nopObserver", defaultObserver)
	}
}

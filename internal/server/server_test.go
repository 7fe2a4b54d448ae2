package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"photo-ingest/internal/app"
	"photo-ingest/internal/changefeed"
	"photo-ingest/internal/metrics"
	"photo-ingest/internal/startup"
	"photo-ingest/internal/storage"
	"photo-ingest/internal/ttlcache"
	"photo-ingest/internal/upload"
)

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	dir := t.TempDir()
	cfg := &startup.Config{
		DatabaseDir:     dir,
		DatabasePath:    filepath.Join(dir, "photos.db"),
		LogHealthChecks: true,
		Storage:         storage.Config{Backend: storage.BackendMemory, Bucket: "photos"},
		Upload:          upload.Config{Concurrency: 1, RetryDelay: time.Millisecond},
		TTLCache:        ttlcache.Config{MaxSize: 10, DefaultTTL: time.Minute},
		Redis:           changefeed.RedisConfig{Channel: changefeed.DefaultChannel},
	}
	a, err := app.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNewHandler(t *testing.T) {
	handler := NewHandler(newTestApp(t))

	counter := metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/photos/{id:[0-9]+}", "404")
	before := testutil.ToFloat64(counter)

	tests := []struct {
		path string
		want int
	}{
		{"/livez", http.StatusOK},
		{"/api/stats", http.StatusOK},
		{"/api/photos", http.StatusOK},
		{"/api/photos/77", http.StatusNotFound},
		{"/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.want {
				t.Errorf("GET %s = %d, want %d", tt.path, w.Code, tt.want)
			}
		})
	}

	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Errorf("route-labelled counter = %v, want %v", got, before+1)
	}
}

func TestNewHandlerCompressesJSON(t *testing.T) {
	handler := NewHandler(newTestApp(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	// The health body is under the compression threshold.
	if w.Header().Get("Content-Encoding") != "" {
		t.Errorf("small body should not be compressed")
	}
}

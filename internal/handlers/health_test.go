package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"photo-ingest/internal/app"
	"photo-ingest/internal/database"
)

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp HealthResponse
	decodeBody(t, w, &resp)

	if resp.Status != statusHealthy || !resp.Ready {
		t.Errorf("status = %s ready=%v", resp.Status, resp.Ready)
	}
	if resp.Storage != "memory" || resp.FeedEnabled {
		t.Errorf("dependencies = %s feed=%v", resp.Storage, resp.FeedEnabled)
	}
	if resp.GoVersion == "" || resp.NumCPU == 0 {
		t.Error("system info missing")
	}
}

func TestLivenessCheck(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	tests := []struct {
		method   string
		path     string
		wantBody bool
	}{
		{http.MethodGet, "/livez", true},
		{http.MethodGet, "/healthz", true},
		{http.MethodHead, "/livez", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := s.do(t, httptest.NewRequest(tt.method, tt.path, nil))
			if w.Code != http.StatusOK {
				t.Errorf("status = %d", w.Code)
			}
			if hasBody := w.Body.Len() > 0; hasBody != tt.wantBody {
				t.Errorf("body present = %v, want %v", hasBody, tt.wantBody)
			}
		})
	}
}

func TestReadinessCheck(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestHealthDegradedWhenDatabaseClosed(t *testing.T) {
	cfg := testConfig(t)
	db, err := database.New(context.Background(), cfg.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	s := newTestServer(t, cfg, app.WithDatabase(db))
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{"/health", "/readyz"} {
		w := s.do(t, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want %d", path, w.Code, http.StatusServiceUnavailable)
		}
	}

	var resp HealthResponse
	decodeBody(t, s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil)), &resp)
	if resp.Status != statusDegraded || resp.Error == "" {
		t.Errorf("response = %+v", resp)
	}
}

package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"photo-ingest/internal/upload"
)

func TestUploadPhotos(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	files := []formFile{
		{"a.jpg", "image/jpeg", makeJPEG(t, 64, 48)},
		{"b.jpg", "image/jpeg", makeJPEG(t, 40, 80)},
		{"notes.jpg", "image/jpeg", []byte("not an image at all")},
	}
	w := s.do(t, uploadRequest(t, files, map[string]string{"user": "user-1"}))

	if w.Code != http.StatusMultiStatus {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusMultiStatus, w.Body.String())
	}
	var resp struct {
		ID        string             `json:"id"`
		Succeeded int                `json:"succeeded"`
		Failed    int                `json:"failed"`
		Status    upload.BatchStatus `json:"status"`
		Summary   string             `json:"summary"`
		Items     []struct {
			Name      string            `json:"name"`
			Succeeded bool              `json:"succeeded"`
			Reason    string            `json:"reason"`
			URLs      map[string]string `json:"urls"`
		} `json:"items"`
	}
	decodeBody(t, w, &resp)

	if resp.ID == "" || resp.Succeeded != 2 || resp.Failed != 1 || resp.Status != upload.PartiallySucceeded {
		t.Errorf("response = %+v", resp)
	}
	if !strings.Contains(resp.Summary, "2/3") {
		t.Errorf("summary = %q", resp.Summary)
	}
	for _, item := range resp.Items {
		if item.Name == "notes.jpg" {
			if item.Succeeded || item.Reason != "rejected" {
				t.Errorf("notes.jpg = %+v, want rejected", item)
			}
			continue
		}
		if !strings.HasPrefix(item.URLs["full"], testPublicURL+"/user-1/full/") {
			t.Errorf("%s full URL = %q", item.Name, item.URLs["full"])
		}
	}

	list := s.do(t, httptest.NewRequest(http.MethodGet, "/api/photos?user=user-1", nil))
	if list.Code != http.StatusOK {
		t.Fatalf("list status = %d", list.Code)
	}
	var photos []PhotoResponse
	decodeBody(t, list, &photos)
	if len(photos) != 2 {
		t.Fatalf("listed %d photos, want 2", len(photos))
	}
	for _, p := range photos {
		if p.UserID != "user-1" || p.URLs["full"] != testPublicURL+"/"+p.StoragePath {
			t.Errorf("photo = %+v", p)
		}
	}

	one := s.do(t, httptest.NewRequest(http.MethodGet, "/api/photos/"+itoa(photos[0].ID), nil))
	if one.Code != http.StatusOK {
		t.Fatalf("get status = %d", one.Code)
	}
	var got PhotoResponse
	decodeBody(t, one, &got)
	if got.ID != photos[0].ID || got.OriginalFilename != photos[0].OriginalFilename {
		t.Errorf("GetPhoto = %+v, want %+v", got, photos[0])
	}
}

func TestUploadPhotosAllSucceeded(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	w := s.do(t, uploadRequest(t, []formFile{{"a.jpg", "image/jpeg", makeJPEG(t, 32, 32)}},
		map[string]string{"prefix": "albums/summer", "concurrency": "1", "maxRetries": "0"}))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var found bool
	for _, key := range s.store.Keys() {
		if strings.HasPrefix(key, "albums/summer/full/") {
			found = true
		}
	}
	if !found {
		t.Errorf("no object under the requested prefix: %v", s.store.Keys())
	}
}

func TestUploadPhotosAllRejected(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	w := s.do(t, uploadRequest(t, []formFile{{"x.png", "image/png", []byte("garbage")}}, nil))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}

func TestUploadPhotosErrors(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.MaxBatchFiles = 2
	s := newTestServer(t, cfg)
	small := formFile{"a.jpg", "image/jpeg", makeJPEG(t, 8, 8)}

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{
			name: "not multipart",
			req:  httptest.NewRequest(http.MethodPost, "/api/photos", strings.NewReader("{}")),
			want: http.StatusBadRequest,
		},
		{
			name: "no files",
			req:  uploadRequest(t, nil, map[string]string{"user": "u"}),
			want: http.StatusBadRequest,
		},
		{
			name: "too many files",
			req:  uploadRequest(t, []formFile{small, small, small}, nil),
			want: http.StatusRequestEntityTooLarge,
		},
		{
			name: "invalid concurrency",
			req:  uploadRequest(t, []formFile{small}, map[string]string{"concurrency": "zero"}),
			want: http.StatusBadRequest,
		},
		{
			name: "negative retries",
			req:  uploadRequest(t, []formFile{small}, map[string]string{"maxRetries": "-3"}),
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestUploadPhotosBodyTooLarge(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.MaxBatchBytes = 1024
	s := newTestServer(t, cfg)

	big := bytes.Repeat([]byte{0xFF}, 2*multipartOverhead)
	w := s.do(t, uploadRequest(t, []formFile{{"big.jpg", "image/jpeg", big}}, nil))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestBatchStatusCode(t *testing.T) {
	tests := []struct {
		name   string
		result upload.BatchResult
		want   int
	}{
		{"all succeeded", upload.BatchResult{Total: 2, Succeeded: 2}, http.StatusOK},
		{"partial", upload.BatchResult{Total: 2, Succeeded: 1, Failed: 1}, http.StatusMultiStatus},
		{"all failed", upload.BatchResult{Total: 2, Failed: 2}, http.StatusUnprocessableEntity},
		{"needs reauth", upload.BatchResult{Total: 2, Succeeded: 1, Failed: 1, NeedsReauth: true}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := batchStatusCode(&tt.result); got != tt.want {
				t.Errorf("batchStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestListPhotosInvalidLimit(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/api/photos?limit=-1", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestGetPhotoNotFound(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/api/photos/9999", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func TestDeletePhoto(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	w := s.do(t, uploadRequest(t, []formFile{{"a.jpg", "image/jpeg", makeJPEG(t, 32, 32)}}, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", w.Code, w.Body.String())
	}
	if n := len(s.store.Keys()); n != 3 {
		t.Fatalf("stored %d objects after upload, want 3", n)
	}

	list := s.do(t, httptest.NewRequest(http.MethodGet, "/api/photos", nil))
	var photos []PhotoResponse
	decodeBody(t, list, &photos)
	if len(photos) != 1 {
		t.Fatalf("listed %d photos, want 1", len(photos))
	}
	path := "/api/photos/" + itoa(photos[0].ID)

	del := s.do(t, httptest.NewRequest(http.MethodDelete, path, nil))
	if del.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", del.Code, del.Body.String())
	}
	if keys := s.store.Keys(); len(keys) != 0 {
		t.Errorf("objects left after delete: %v", keys)
	}

	if got := s.do(t, httptest.NewRequest(http.MethodGet, path, nil)); got.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", got.Code, http.StatusNotFound)
	}
	if again := s.do(t, httptest.NewRequest(http.MethodDelete, path, nil)); again.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", again.Code, http.StatusNotFound)
	}
}

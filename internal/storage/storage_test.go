package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/minio/minio-go/v7"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Backend: BackendMemory, Bucket: "photos"}, false},
		{"s3 without keys", Config{Backend: BackendS3, Bucket: "photos"}, false},
		{"minio complete", Config{Backend: BackendMinio, Bucket: "photos", Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}, false},
		{"missing bucket", Config{Backend: BackendMemory}, true},
		{"minio missing endpoint", Config{Backend: BackendMinio, Bucket: "photos", AccessKey: "a", SecretKey: "s"}, true},
		{"minio missing keys", Config{Backend: BackendMinio, Bucket: "photos", Endpoint: "localhost:9000"}, true},
		{"unknown backend", Config{Backend: "ftp", Bucket: "photos"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewMemoryBackend(t *testing.T) {
	store, err := New(context.Background(), Config{Backend: BackendMemory, Bucket: "photos"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("New() = %T, want *MemoryStore", store)
	}
}

func TestNewMinioBackend(t *testing.T) {
	store, err := New(context.Background(), Config{
		Backend:   BackendMinio,
		Bucket:    "photos",
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got, want := store.PublicURL("u1/full/a.jpg"), "http://localhost:9000/photos/u1/full/a.jpg"; got != want {
		t.Errorf("PublicURL() = %q, want %q", got, want)
	}
}

func TestKindForCode(t *testing.T) {
	tests := []struct {
		code   string
		status int
		want   ErrorKind
	}{
		{"AccessDenied", 0, KindPermissionDenied},
		{"InvalidAccessKeyId", 0, KindPermissionDenied},
		{"ExpiredToken", 0, KindPermissionDenied},
		{"NoSuchKey", 0, KindNotFound},
		{"NoSuchBucket", 0, KindNotFound},
		{"", 403, KindPermissionDenied},
		{"", 401, KindPermissionDenied},
		{"", 404, KindNotFound},
		{"SlowDown", 503, KindTransient},
		{"InternalError", 500, KindTransient},
		{"", 0, KindTransient},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d", tt.code, tt.status), func(t *testing.T) {
			if got := kindForCode(tt.code, tt.status); got != tt.want {
				t.Errorf("kindForCode(%q, %d) = %v, want %v", tt.code, tt.status, got, tt.want)
			}
		})
	}
}

func TestMinioErrorClassification(t *testing.T) {
	err := minioError("put", "k", minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403})
	if !IsPermissionDenied(err) {
		t.Errorf("AccessDenied should be permission denied: %v", err)
	}

	err = minioError("get", "k", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404})
	if !IsNotFound(err) {
		t.Errorf("NoSuchKey should be not found: %v", err)
	}
}

func TestS3ErrorClassification(t *testing.T) {
	err := s3Error("put", "k", &smithy.GenericAPIError{Code: "InvalidAccessKeyId", Message: "bad key"})
	if !IsPermissionDenied(err) {
		t.Errorf("InvalidAccessKeyId should be permission denied: %v", err)
	}

	err = s3Error("put", "k", &smithy.GenericAPIError{Code: "SlowDown"})
	if !IsTransient(err) {
		t.Errorf("SlowDown should be transient: %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("connection reset"), true},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"transient store error", &StoreError{Kind: KindTransient, Err: errors.New("x")}, true},
		{"auth store error", &StoreError{Kind: KindPermissionDenied, Err: errors.New("x")}, false},
		{"wrapped auth", fmt.Errorf("upload: %w", &StoreError{Kind: KindPermissionDenied, Err: errors.New("x")}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore("photos", "")

	data := []byte("jpeg bytes")
	if err := m.Put(ctx, "u/full/a.jpg", data, "image/jpeg"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	data[0] = 'X'

	got, err := m.Get(ctx, "u/full/a.jpg")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "jpeg bytes" {
		t.Errorf("Get() = %q, store must keep its own copy", got)
	}
	if ct := m.ContentType("u/full/a.jpg"); ct != "image/jpeg" {
		t.Errorf("ContentType() = %q", ct)
	}
	if n := m.PutCount("u/full/a.jpg"); n != 1 {
		t.Errorf("PutCount() = %d, want 1", n)
	}
	if url := m.PublicURL("u/full/a.jpg"); url != "memory://photos/u/full/a.jpg" {
		t.Errorf("PublicURL() = %q", url)
	}

	_, err = m.Get(ctx, "missing")
	if !IsNotFound(err) {
		t.Errorf("Get(missing) error = %v, want not found", err)
	}

	if err := m.Delete(ctx, "u/full/a.jpg"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := m.Get(ctx, "u/full/a.jpg"); !IsNotFound(err) {
		t.Errorf("Get() after Delete() error = %v, want not found", err)
	}
	if err := m.Delete(ctx, "u/full/a.jpg"); err != nil {
		t.Errorf("Delete() of a missing key error = %v, want nil", err)
	}
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMemoryStore("photos", "https://cdn.example.com/")
	if err := m.Put(ctx, "k", []byte("x"), "image/jpeg"); err == nil {
		t.Error("Put() with cancelled context should fail")
	}
	if len(m.Keys()) != 0 {
		t.Errorf("Keys() = %v, want none", m.Keys())
	}
	if url := m.PublicURL("/k"); url != "https://cdn.example.com/k" {
		t.Errorf("PublicURL() = %q", url)
	}
}

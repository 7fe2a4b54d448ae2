package storage

import (
	"context"
	"fmt"
	"strings"
)

// ObjectStore is the remote object store the scheduler uploads into and
// the handle cache reads from.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// PublicURL returns the address a browser can fetch key from.
	PublicURL(key string) string
}

// Backend names accepted by STORAGE_BACKEND.
const (
	BackendMinio  = "minio"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// Config selects and configures a backend.
type Config struct {
	Backend   string
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	// PublicURL overrides the derived public base address.
	PublicURL string
}

func (c *Config) validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	switch c.Backend {
	case BackendMinio:
		if c.Endpoint == "" {
			return fmt.Errorf("endpoint is required for the minio backend")
		}
		if c.AccessKey == "" || c.SecretKey == "" {
			return fmt.Errorf("access key and secret key are required for the minio backend")
		}
	case BackendS3, BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Backend)
	}
	return nil
}

// New builds the ObjectStore named by cfg.Backend.
func New(ctx context.Context, cfg Config) (ObjectStore, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid storage config: %w", err)
	}

	switch cfg.Backend {
	case BackendMinio:
		return NewMinioStore(cfg)
	case BackendS3:
		return NewS3Store(ctx, cfg)
	default:
		return NewMemoryStore(cfg.Bucket, cfg.PublicURL), nil
	}
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

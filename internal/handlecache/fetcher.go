package handlecache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher loads the bytes behind a locator.
type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// ObjectGetter is the read side of an object store.
type ObjectGetter interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// StoreFetcher treats locators as object keys.
type StoreFetcher struct {
	Store ObjectGetter
}

// Fetch reads locator from the store.
func (f StoreFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	return f.Store.Get(ctx, locator)
}

// Fetch sources for NewFetcher.
const (
	SourceStore  = "store"
	SourcePublic = "public"
)

// ObjectSource is an object store as seen by NewFetcher.
type ObjectSource interface {
	ObjectGetter
	PublicURL(key string) string
}

// NewFetcher returns the fetcher for source. SourcePublic reads keys
// through the store's public URLs, for buckets fronted by a CDN; anything
// else reads through the store API.
func NewFetcher(source string, store ObjectSource, maxBytes int64) Fetcher {
	if source == SourcePublic {
		f := NewHTTPFetcher(maxBytes)
		f.Resolve = store.PublicURL
		return f
	}
	return StoreFetcher{Store: store}
}

// HTTPFetcher treats locators as URLs, or maps them to URLs with Resolve.
type HTTPFetcher struct {
	Client *http.Client
	// MaxBytes bounds a single response; 0 means unbounded.
	MaxBytes int64
	Resolve  func(locator string) string
}

// NewHTTPFetcher returns a fetcher with a 15s client timeout.
func NewHTTPFetcher(maxBytes int64) *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: 15 * time.Second}, MaxBytes: maxBytes}
}

// Fetch performs a GET on locator's URL.
func (f *HTTPFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	if f.Resolve != nil {
		locator = f.Resolve(locator)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", locator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", locator, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if f.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, f.MaxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", locator, err)
	}
	if f.MaxBytes > 0 && int64(len(data)) > f.MaxBytes {
		return nil, fmt.Errorf("fetch %s: body exceeds %d bytes", locator, f.MaxBytes)
	}
	return data, nil
}

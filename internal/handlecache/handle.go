package handlecache

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

var (
	// ErrReleased is returned by a handle whose buffer has been released.
	ErrReleased = errors.New("handle released")
	// ErrDirect is returned by Bytes on a direct handle; read the locator
	// from the store instead.
	ErrDirect = errors.New("direct handle has no local buffer")
)

// Handle is a locally addressable copy of a remote object, or a direct
// handle that only carries the locator when the load failed.
type Handle struct {
	locator string
	size    int64
	direct  bool

	mu       sync.RWMutex
	data     []byte
	released bool
}

func newHandle(locator string, data []byte) *Handle {
	return &Handle{locator: locator, data: data, size: int64(len(data))}
}

func directHandle(locator string) *Handle {
	return &Handle{locator: locator, direct: true}
}

// Locator returns the key or URL the handle was loaded from.
func (h *Handle) Locator() string { return h.locator }

// Size returns the buffer size recorded at load time.
func (h *Handle) Size() int64 { return h.size }

// Direct reports whether the handle degraded to the bare locator.
func (h *Handle) Direct() bool { return h.direct }

// Released reports whether Release has been called.
func (h *Handle) Released() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.released
}

// Bytes returns the buffered object.
func (h *Handle) Bytes() ([]byte, error) {
	if h.direct {
		return nil, ErrDirect
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.released {
		return nil, ErrReleased
	}
	return h.data, nil
}

// Reader returns a reader over the buffered object.
func (h *Handle) Reader() (io.ReadSeeker, error) {
	data, err := h.Bytes()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// Release drops the buffer. It is idempotent.
func (h *Handle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data = nil
	h.released = true
}

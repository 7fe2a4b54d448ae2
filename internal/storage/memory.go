package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps objects in process memory. It backs local development
// (STORAGE_BACKEND=memory) and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	bucket    string
	publicURL string
	objects   map[string]memoryObject
	puts      map[string]int
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(bucket, publicURL string) *MemoryStore {
	if publicURL == "" {
		publicURL = "memory://" + bucket
	}
	return &MemoryStore{
		bucket:    bucket,
		publicURL: publicURL,
		objects:   make(map[string]memoryObject),
		puts:      make(map[string]int),
	}
}

// Put stores a copy of data under key.
func (m *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return &StoreError{Op: "put", Key: key, Kind: KindTransient, Err: err}
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: buf, contentType: contentType}
	m.puts[key]++
	return nil
}

// Get returns a copy of the object stored under key.
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StoreError{Op: "get", Key: key, Kind: KindTransient, Err: err}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, &StoreError{Op: "get", Key: key, Kind: KindNotFound, Err: fmt.Errorf("no such key")}
	}
	buf := make([]byte, len(obj.data))
	copy(buf, obj.data)
	return buf, nil
}

// Delete removes key.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return &StoreError{Op: "delete", Key: key, Kind: KindTransient, Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// PublicURL returns a memory:// address for key.
func (m *MemoryStore) PublicURL(key string) string {
	return joinURL(m.publicURL, key)
}

// ContentType returns the content type recorded for key.
func (m *MemoryStore) ContentType(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.objects[key].contentType
}

// PutCount returns how many times key was written.
func (m *MemoryStore) PutCount(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts[key]
}

// Keys returns the stored keys in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

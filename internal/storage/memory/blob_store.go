// Package memory keeps records in process memory for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"

	"github.com/JakeFAU/restaurant-pipeline/internal/storage"
)

// BlobStore stores objects in a map keyed by path.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string]storage.Object
	data    map[string][]byte
}

var _ storage.BlobStore = (*BlobStore)(nil)

// NewBlobStore creates an empty store.
func NewBlobStore() *BlobStore {
	return &BlobStore{
		objects: make(map[string]storage.Object),
		data:    make(map[string][]byte),
	}
}

// PutObject stores the content and returns a memory:// URI.
func (s *BlobStore) PutObject(_ context.Context, obj storage.Object, r io.Reader) (string, error) {
	if err := storage.ValidPath(obj.Path); err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", obj.Path, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[obj.Path] = obj
	s.data[obj.Path] = data
	return "memory://" + obj.Path, nil
}

// Get returns a stored object's content.
func (s *BlobStore) Get(path string) ([]byte, storage.Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[path]
	return append([]byte(nil), data...), s.objects[path], ok
}

// Paths lists stored paths in sorted order.
func (s *BlobStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.data))
}

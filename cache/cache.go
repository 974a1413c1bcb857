// Package cache is the blob tier: whole-value get and put of large per-account values.
package cache

import (
	"context"
	"sync"

	"github.com/jrsteele09/repo-dashboard/internal/errors"
)

// BlobStore holds large values by key. Put replaces the whole value atomically for that
// key; there are no multi-key transactions.
type BlobStore interface {
	// Get returns errors.ErrNotFound when the key has never been written.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

type InMemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

var _ BlobStore = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{blobs: make(map[string][]byte)}
}

func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.blobs[key]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "blob %q", key)
	}
	return append([]byte(nil), v...), nil
}

func (s *InMemoryStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs[key] = append([]byte(nil), value...)
	return nil
}

package cache

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store backed by sync.Map, safe for concurrent
// Get/Set. Intended for tests and single-process deployments; use
// RedisStore when the cache must be shared across processes.
type MemoryStore struct {
	entries sync.Map
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Get(_ context.Context, key string) ([][]byte, bool, error) {
	v, ok := s.entries.Load(key)
	if !ok {
		return nil, false, nil
	}
	return v.([][]byte), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, serialized [][]byte) error {
	s.entries.Store(key, serialized)
	return nil
}

// Package persistence caches bot, chat, user and conversation data in memory
// and writes it to a key-value store either immediately or on explicit flush.
package persistence

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNotFound is returned by stores for missing keys or hash fields.
	ErrNotFound = errors.New("persistence: not found")
	// ErrMissingPersistence is returned when a backend is built without a store.
	ErrMissingPersistence = errors.New("persistence: store is not configured")
	// ErrUnavailable is returned by updates whose namespace could not be read.
	ErrUnavailable = errors.New("persistence: store is unavailable")
)

// Store is the key-value boundary used by Backend. Values are JSON documents.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	HGet(ctx context.Context, key, field string) ([]byte, error)
	HSet(ctx context.Context, key, field string, value []byte) error
	HDel(ctx context.Context, key string, fields ...string) error
	HKeys(ctx context.Context, key string) ([]string, error)
	// HUpdate sets and deletes fields of one hash atomically. Fields named in
	// both are set.
	HUpdate(ctx context.Context, key string, set map[string][]byte, del []string) error
	Close() error
}

// MemoryStore is a process-local Store used when no external backend is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
	hashes map[string]map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string][]byte),
		hashes: make(map[string]map[string][]byte),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(v), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = clone(value)
	return nil
}

func (s *MemoryStore) HGet(_ context.Context, key, field string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.hashes[key][field]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(v), nil
}

func (s *MemoryStore) HSet(_ context.Context, key, field string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string][]byte)
		s.hashes[key] = h
	}
	h[field] = clone(value)
	return nil
}

func (s *MemoryStore) HDel(_ context.Context, key string, fields ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.hashes[key]
	for _, f := range fields {
		delete(h, f)
	}
	if len(h) == 0 {
		delete(s.hashes, key)
	}
	return nil
}

func (s *MemoryStore) HKeys(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.hashes[key]
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *MemoryStore) HUpdate(_ context.Context, key string, set map[string][]byte, del []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string][]byte, len(set))
		s.hashes[key] = h
	}
	for _, f := range del {
		delete(h, f)
	}
	for f, v := range set {
		h[f] = clone(v)
	}
	if len(h) == 0 {
		delete(s.hashes, key)
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/sessionkit/pkg/ports"
)

var (
	_ ports.Cache     = (*Store)(nil)
	_ ports.KeyLister = (*Store)(nil)
	_ ports.Batcher   = (*Store)(nil)
)

// Store implements ports.Cache in memory.
// Safe for concurrent use.
type Store struct {
	data map[string][]byte
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string][]byte),
	}
}

// Get returns a copy of the stored bytes so callers can't mutate the store through it.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(value), true, nil
}

// Put stores value, or queues it when ctx carries a batch of this store.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if b := s.batch(ctx); b != nil {
		b.put(key, value)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = cloneValue(value)
	return nil
}

// PutIfAbsent stores value if key does not exist.
func (s *Store) PutIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = cloneValue(value)
	return true, nil
}

// Delete removes key and any write queued for it.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if b := s.batch(ctx); b != nil {
		b.forget(key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.data[key]
	delete(s.data, key)
	return exists, nil
}

// Keys returns the stored keys with the given prefix.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0)
	for key := range s.data {
		if rest, ok := strings.CutPrefix(key, prefix); ok {
			keys = append(keys, rest)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *Store) apply(writes map[string][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, value := range writes {
		s.data[key] = value
	}
}

func (s *Store) batch(ctx context.Context) *batch {
	b, ok := ports.BatchFromContext(ctx)
	if !ok {
		return nil
	}
	if mb, ok := b.(*batch); ok && mb.store == s {
		return mb
	}
	return nil
}

// cloneValue copies value, keeping empty values non-nil.
func cloneValue(value []byte) []byte {
	return append([]byte{}, value...)
}

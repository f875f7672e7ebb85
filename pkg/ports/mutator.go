package ports

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Mutator signals that an entry changed and needs to be written back.
type Mutator interface {
	Mutate()
}

// MutatorFunc adapts a function to the Mutator interface.
type MutatorFunc func()

// Mutate calls f.
func (f MutatorFunc) Mutate() { f() }

// CacheMutator records mutations and writes the entry back on Flush.
// The cache is never touched unless Mutate was called since the last Flush.
type CacheMutator struct {
	cache Cache
	key   string
	value func() ([]byte, error)
	dirty atomic.Bool
}

// NewCacheMutator creates a mutator writing the bytes produced by value under key.
func NewCacheMutator(cache Cache, key string, value func() ([]byte, error)) *CacheMutator {
	return &CacheMutator{
		cache: cache,
		key:   key,
		value: value,
	}
}

// Mutate marks the entry dirty.
func (m *CacheMutator) Mutate() {
	m.dirty.Store(true)
}

// Dirty reports whether a write is pending.
func (m *CacheMutator) Dirty() bool {
	return m.dirty.Load()
}

// Flush writes the entry if it is dirty.
func (m *CacheMutator) Flush(ctx context.Context) error {
	if !m.dirty.CompareAndSwap(true, false) {
		return nil
	}
	data, err := m.value()
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", m.key, err)
	}
	if err := m.cache.Put(ctx, m.key, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", m.key, err)
	}
	return nil
}

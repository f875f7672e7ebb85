package memory

import (
	"context"
	"sync"

	"github.com/aretw0/sessionkit/pkg/ports"
)

type batch struct {
	store  *Store
	mu     sync.Mutex
	writes map[string][]byte
	done   bool
}

// CreateBatch opens a batch whose writes are applied atomically on Close.
func (s *Store) CreateBatch(ctx context.Context) (context.Context, ports.Batch, error) {
	b := &batch{
		store:  s,
		writes: make(map[string][]byte),
	}
	return ports.ContextWithBatch(ctx, b), b, nil
}

func (b *batch) put(key string, value []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.done {
		b.writes[key] = cloneValue(value)
	}
}

func (b *batch) forget(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.writes, key)
}

func (b *batch) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return nil
	}
	b.done = true
	b.store.apply(b.writes)
	b.writes = nil
	return nil
}

func (b *batch) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done = true
	b.writes = nil
}

package redis

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/sessionkit/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

type batch struct {
	cache  *Cache
	mu     sync.Mutex
	writes map[string][]byte
	done   bool
}

// CreateBatch opens a batch whose writes are sent in one MULTI/EXEC on Close.
func (c *Cache) CreateBatch(ctx context.Context) (context.Context, ports.Batch, error) {
	b := &batch{
		cache:  c,
		writes: make(map[string][]byte),
	}
	return ports.ContextWithBatch(ctx, b), b, nil
}

func (b *batch) put(key string, value []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.done {
		b.writes[key] = slices.Clone(value)
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
	writes := b.writes
	b.writes = nil
	if len(writes) == 0 {
		return nil
	}

	_, err := b.cache.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		for key, value := range writes {
			b.cache.write(ctx, pipe, key, value)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func (b *batch) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done = true
	b.writes = nil
}

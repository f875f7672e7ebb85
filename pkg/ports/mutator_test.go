package ports_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/sessionkit/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingCache counts the writes it receives.
type recordingCache struct {
	puts map[string][]byte
	err  error
}

func (c *recordingCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := c.puts[key]
	return v, ok, nil
}

func (c *recordingCache) Put(ctx context.Context, key string, value []byte) error {
	if c.err != nil {
		return c.err
	}
	if c.puts == nil {
		c.puts = make(map[string][]byte)
	}
	c.puts[key] = value
	return nil
}

func (c *recordingCache) PutIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	return false, nil
}

func (c *recordingCache) Delete(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func TestCacheMutator_FlushOnlyWhenDirty(t *testing.T) {
	cache := &recordingCache{}
	calls := 0
	mutator := ports.NewCacheMutator(cache, "k", func() ([]byte, error) {
		calls++
		return []byte("v"), nil
	})
	ctx := context.Background()

	require.NoError(t, mutator.Flush(ctx))
	assert.Empty(t, cache.puts, "clean entry must not be written")
	assert.Zero(t, calls)

	mutator.Mutate()
	mutator.Mutate()
	assert.True(t, mutator.Dirty())
	require.NoError(t, mutator.Flush(ctx))
	assert.Equal(t, []byte("v"), cache.puts["k"])
	assert.Equal(t, 1, calls)
	assert.False(t, mutator.Dirty())

	require.NoError(t, mutator.Flush(ctx))
	assert.Equal(t, 1, calls, "second flush without mutation is a no-op")
}

func TestCacheMutator_PropagatesErrors(t *testing.T) {
	storeErr := errors.New("store down")
	mutator := ports.NewCacheMutator(&recordingCache{err: storeErr}, "k", func() ([]byte, error) {
		return []byte("v"), nil
	})
	mutator.Mutate()

	err := mutator.Flush(context.Background())
	assert.ErrorIs(t, err, storeErr)
}

func TestBatchContext(t *testing.T) {
	_, ok := ports.BatchFromContext(context.Background())
	assert.False(t, ok)
}

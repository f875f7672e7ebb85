package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCacheContract runs a suite of tests to verify that a Cache implementation
// adheres to the defined interface contract.
// batcher must create batches the cache queues its writes on.
func RunCacheContract(t *testing.T, cache Cache, batcher Batcher) {
	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("20060102150405.000000000") + ":"

	t.Run("Put and Get", func(t *testing.T) {
		key := prefix + "put"
		require.NoError(t, cache.Put(ctx, key, []byte("value")))

		value, found, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []byte("value"), value)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		value, found, err := cache.Get(ctx, prefix+"missing")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, value)
	})

	t.Run("Empty Value", func(t *testing.T) {
		key := prefix + "empty"
		require.NoError(t, cache.Put(ctx, key, []byte{}))

		value, found, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, found, "an empty value is still a value")
		assert.Empty(t, value)
	})

	t.Run("PutIfAbsent", func(t *testing.T) {
		key := prefix + "absent"
		stored, err := cache.PutIfAbsent(ctx, key, []byte("first"))
		require.NoError(t, err)
		assert.True(t, stored)

		stored, err = cache.PutIfAbsent(ctx, key, []byte("second"))
		require.NoError(t, err)
		assert.False(t, stored, "second PutIfAbsent must not overwrite")

		value, _, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), value)
	})

	t.Run("Delete", func(t *testing.T) {
		key := prefix + "delete"
		require.NoError(t, cache.Put(ctx, key, []byte("value")))

		deleted, err := cache.Delete(ctx, key)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = cache.Delete(ctx, key)
		require.NoError(t, err)
		assert.False(t, deleted, "deleting a missing key reports false")

		_, found, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Batch Defers Writes", func(t *testing.T) {
		key := prefix + "batched"
		bctx, batch, err := batcher.CreateBatch(ctx)
		require.NoError(t, err)

		require.NoError(t, cache.Put(bctx, key, []byte("queued")))
		_, found, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, found, "queued write must not be visible before Close")

		require.NoError(t, batch.Close(ctx))
		value, found, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []byte("queued"), value)
	})

	t.Run("Batch Discard", func(t *testing.T) {
		key := prefix + "discarded"
		bctx, batch, err := batcher.CreateBatch(ctx)
		require.NoError(t, err)

		require.NoError(t, cache.Put(bctx, key, []byte("queued")))
		batch.Discard()
		require.NoError(t, batch.Close(ctx))

		_, found, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Delete Drops Queued Write", func(t *testing.T) {
		key := prefix + "forgotten"
		bctx, batch, err := batcher.CreateBatch(ctx)
		require.NoError(t, err)

		require.NoError(t, cache.Put(bctx, key, []byte("queued")))
		_, err = cache.Delete(bctx, key)
		require.NoError(t, err)
		require.NoError(t, batch.Close(ctx))

		_, found, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, found, "a removed entry must not be resurrected on commit")
	})

	if lister, ok := cache.(KeyLister); ok {
		t.Run("Keys", func(t *testing.T) {
			listPrefix := prefix + "list:"
			require.NoError(t, cache.Put(ctx, listPrefix+"a", []byte("1")))
			require.NoError(t, cache.Put(ctx, listPrefix+"b", []byte("2")))

			keys, err := lister.Keys(ctx, listPrefix)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"a", "b"}, keys)
		})
	}
}

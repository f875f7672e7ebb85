package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/sessionkit/pkg/adapters/redis"
	"github.com/aretw0/sessionkit/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisCache_Contract(t *testing.T) {
	_, client := newClient(t)

	cache := redis.NewFromClient(client)
	ports.RunCacheContract(t, cache, cache)
}

func TestRedisCache_Prefix(t *testing.T) {
	mr, client := newClient(t)

	cache := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "creation:s1", []byte{1}))

	assert.True(t, mr.Exists("custom:app:creation:s1"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")

	keys, err := cache.Keys(ctx, "creation:")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, keys)
}

func TestRedisCache_TTL(t *testing.T) {
	mr, client := newClient(t)

	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	cache := redis.NewFromClient(client, redis.WithTTL(time.Second), redis.WithClock(clock))
	ctx := context.Background()

	stored, err := cache.PutIfAbsent(ctx, "creation:s1", []byte{1})
	require.NoError(t, err)
	require.True(t, stored)

	keys, err := cache.Keys(ctx, "creation:")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, keys)

	mr.FastForward(2 * time.Second)
	now = now.Add(2 * time.Second)

	_, found, err := cache.Get(ctx, "creation:s1")
	require.NoError(t, err)
	assert.False(t, found, "entry expired")

	keys, err = cache.Keys(ctx, "creation:")
	require.NoError(t, err)
	assert.Empty(t, keys, "expired keys are pruned from the index")
}

func TestRedisCache_BatchCommitsAtomically(t *testing.T) {
	mr, client := newClient(t)

	cache := redis.NewFromClient(client, redis.WithPrefix("b:"))
	ctx := context.Background()

	bctx, batch, err := cache.CreateBatch(ctx)
	require.NoError(t, err)
	require.NoError(t, cache.Put(bctx, "access:s1", []byte("a")))
	require.NoError(t, cache.Put(bctx, "attributes:s1", []byte("b")))
	assert.False(t, mr.Exists("b:access:s1"), "queued until the batch closes")

	require.NoError(t, batch.Close(ctx))
	value, err := mr.Get("b:attributes:s1")
	require.NoError(t, err)
	assert.Equal(t, "b", value)

	keys, err := cache.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"access:s1", "attributes:s1"}, keys)
}

func TestRedisCache_BatchOfAnotherCacheIsIgnored(t *testing.T) {
	mr, client := newClient(t)

	first := redis.NewFromClient(client, redis.WithPrefix("one:"))
	second := redis.NewFromClient(client, redis.WithPrefix("two:"))
	ctx := context.Background()

	bctx, batch, err := first.CreateBatch(ctx)
	require.NoError(t, err)
	defer batch.Discard()

	require.NoError(t, second.Put(bctx, "k", []byte("v")))
	assert.True(t, mr.Exists("two:k"), "writes go straight through when the batch belongs elsewhere")
}

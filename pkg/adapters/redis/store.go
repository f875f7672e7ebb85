package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/sessionkit/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix prefixes every key written by the Cache.
const DefaultPrefix = "sessionkit:"

// noExpiry is the index score of entries without TTL (2100-01-01).
const noExpiry = 4102444800

var (
	_ ports.Cache     = (*Cache)(nil)
	_ ports.KeyLister = (*Cache)(nil)
	_ ports.Batcher   = (*Cache)(nil)
)

// Cache implements ports.Cache using Redis. Every key is tracked in a sorted set
// scored by its expiration, so keys can be listed without SCAN.
type Cache struct {
	client backend.UniversalClient
	prefix string
	ttl    time.Duration
	clock  func() time.Time
}

type Option func(*Cache)

// WithTTL sets the expiration of cache entries. Every write renews it.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// WithClock overrides the time source of the key index.
func WithClock(clock func() time.Time) Option {
	return func(c *Cache) {
		c.clock = clock
	}
}

// New creates a Redis cache with options.
func New(address, password string, db int, opts ...Option) *Cache {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a Redis cache from an existing client.
func NewFromClient(client backend.UniversalClient, opts ...Option) *Cache {
	c := &Cache{
		client: client,
		prefix: DefaultPrefix,
		ttl:    0, // No expiration by default
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Client returns the underlying Redis client.
func (c *Cache) Client() backend.UniversalClient {
	return c.client
}

// Prefix returns the key prefix.
func (c *Cache) Prefix() string {
	return c.prefix
}

func (c *Cache) key(key string) string {
	return c.prefix + key
}

func (c *Cache) indexKey() string {
	return c.prefix + "index"
}

func (c *Cache) score() float64 {
	if c.ttl <= 0 {
		return noExpiry
	}
	return float64(c.clock().Add(c.ttl).Unix())
}

// Get reads key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get from redis: %w", err)
	}
	return value, true, nil
}

// Put writes key, or queues the write when ctx carries a batch of this cache.
func (c *Cache) Put(ctx context.Context, key string, value []byte) error {
	if b := c.batch(ctx); b != nil {
		b.put(key, value)
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		c.write(ctx, pipe, key, value)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// PutIfAbsent writes key only if it does not exist (SET NX).
func (c *Cache) PutIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	stored, err := c.client.SetNX(ctx, c.key(key), value, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to save to redis: %w", err)
	}
	if !stored {
		return false, nil
	}
	if err := c.client.ZAdd(ctx, c.indexKey(), backend.Z{Score: c.score(), Member: key}).Err(); err != nil {
		return true, fmt.Errorf("failed to index key: %w", err)
	}
	return true, nil
}

// Delete removes key and any write queued for it.
func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	if b := c.batch(ctx); b != nil {
		b.forget(key)
	}

	var del *backend.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		del = pipe.Del(ctx, c.key(key))
		pipe.ZRem(ctx, c.indexKey(), key)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete from redis: %w", err)
	}
	return del.Val() > 0, nil
}

// Keys lists the live keys starting with prefix, with prefix removed.
// Expired keys are pruned from the index on the way.
func (c *Cache) Keys(ctx context.Context, prefix string) ([]string, error) {
	now := strconv.FormatInt(c.clock().Unix(), 10)
	if err := c.client.ZRemRangeByScore(ctx, c.indexKey(), "-inf", "("+now).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired keys: %w", err)
	}

	members, err := c.client.ZRange(ctx, c.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	keys := make([]string, 0, len(members))
	for _, member := range members {
		if rest, ok := strings.CutPrefix(member, prefix); ok {
			keys = append(keys, rest)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Close closes the redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) write(ctx context.Context, pipe backend.Pipeliner, key string, value []byte) {
	// Use 0 for no expiration if ttl is not set.
	pipe.Set(ctx, c.key(key), value, c.ttl)
	pipe.ZAdd(ctx, c.indexKey(), backend.Z{Score: c.score(), Member: key})
}

func (c *Cache) batch(ctx context.Context) *batch {
	b, ok := ports.BatchFromContext(ctx)
	if !ok {
		return nil
	}
	if rb, ok := b.(*batch); ok && rb.cache == c {
		return rb
	}
	return nil
}

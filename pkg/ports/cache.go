package ports

import "context"

// Cache is the byte-level store session entries are mapped onto.
//
// Put may be deferred: when the context carries a Batch created by the same
// backend, the write is queued until the batch closes. Get, PutIfAbsent and
// Delete always act immediately.
type Cache interface {
	// Get returns the stored bytes. found is false when the key does not exist.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// PutIfAbsent stores value only when key does not exist yet.
	// It reports whether the value was stored.
	PutIfAbsent(ctx context.Context, key string, value []byte) (bool, error)

	// Delete removes key and reports whether it existed.
	// A write queued for key on the context's batch is dropped as well.
	Delete(ctx context.Context, key string) (bool, error)
}

// KeyLister is implemented by caches that can enumerate their keys.
type KeyLister interface {
	// Keys returns the keys starting with prefix, with the prefix removed.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

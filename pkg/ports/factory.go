package ports

import "context"

// Locator finds the value stored under a key.
// A missing value is reported with found == false and a nil error.
type Locator[K comparable, V any] interface {
	// FindValue looks up the value for key. Implementations may repair
	// inconsistent state they discover on the way (e.g. purge orphans).
	FindValue(ctx context.Context, key K) (value V, found bool, err error)

	// TryValue looks up the value for key without any side effects.
	TryValue(ctx context.Context, key K) (value V, found bool, err error)
}

// Creator creates the value for a key, given a creation context.
// created == false means the value could not be created (e.g. the key already exists).
type Creator[K comparable, V any, C any] interface {
	CreateValue(ctx context.Context, key K, context C) (value V, created bool, err error)
}

// Remover removes the value stored under a key.
type Remover[K comparable] interface {
	// Remove destroys the value as the result of an explicit invalidation.
	Remove(ctx context.Context, key K) (bool, error)

	// Purge destroys the value as best-effort cleanup.
	Purge(ctx context.Context, key K) (bool, error)
}

// Marshaller converts values to and from their replicated form.
type Marshaller[V any] interface {
	Marshal(value V) ([]byte, error)
	Unmarshal(data []byte) (V, error)
}

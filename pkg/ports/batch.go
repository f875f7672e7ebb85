package ports

import "context"

// Batch is the transactional scope around one logical session operation.
type Batch interface {
	// Close commits the writes queued on the batch.
	Close(ctx context.Context) error

	// Discard drops the queued writes. Closing a discarded batch is a no-op.
	Discard()
}

// Batcher opens batches. The returned context carries the batch so that caches
// of the same backend can queue their writes on it.
type Batcher interface {
	CreateBatch(ctx context.Context) (context.Context, Batch, error)
}

type batchKey struct{}

// ContextWithBatch returns a copy of ctx carrying b.
func ContextWithBatch(ctx context.Context, b Batch) context.Context {
	return context.WithValue(ctx, batchKey{}, b)
}

// BatchFromContext returns the batch carried by ctx, if any.
func BatchFromContext(ctx context.Context) (Batch, bool) {
	b, ok := ctx.Value(batchKey{}).(Batch)
	return b, ok
}

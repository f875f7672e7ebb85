package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/sessionkit/internal/logging"
	"github.com/aretw0/sessionkit/pkg/ports"
	"github.com/aretw0/sessionkit/pkg/session"
)

// Key prefixes of the cache entries owned by the metadata factory.
const (
	CreationKeyPrefix = "creation:"
	AccessKeyPrefix   = "access:"
)

var (
	_ ports.Creator[string, *Entry, time.Duration] = (*Factory)(nil)
	_ ports.Locator[string, *Entry]                = (*Factory)(nil)
	_ ports.Remover[string]                        = (*Factory)(nil)
)

// Factory maps session metadata onto two cache entries per session: the creation
// entry, rarely written, and the access entry, written on every request.
type Factory struct {
	cache    ports.Cache
	creation ports.Marshaller[*CreationEntry]
	access   ports.Marshaller[*AccessEntry]
	clock    func() time.Time
	logger   *slog.Logger

	localContext  func() any
	contexts      sync.Map // id -> *localContext
	sweepInterval time.Duration
	lastSweep     atomic.Int64
}

// DefaultSweepInterval is how often local contexts of expired sessions are evicted.
const DefaultSweepInterval = time.Minute

// Option configures the Factory.
type Option func(*Factory)

// WithClock overrides the time source used for creation times.
func WithClock(clock func() time.Time) Option {
	return func(f *Factory) {
		f.clock = clock
	}
}

// WithLocalContext attaches a node-local context, built by factory on first use, to each session.
func WithLocalContext(factory func() any) Option {
	return func(f *Factory) {
		f.localContext = factory
	}
}

// WithSweepInterval overrides DefaultSweepInterval.
func WithSweepInterval(interval time.Duration) Option {
	return func(f *Factory) {
		f.sweepInterval = interval
	}
}

// WithLogger configures a logger for the Factory.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) {
		f.logger = logger
	}
}

// NewFactory creates a metadata factory on top of cache.
func NewFactory(cache ports.Cache, opts ...Option) *Factory {
	f := &Factory{
		cache:    cache,
		creation: CreationMarshaller{},
		access:   AccessMarshaller{},
		clock:    time.Now,
		logger:   logging.NewNop(),

		sweepInterval: DefaultSweepInterval,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func creationKey(id string) string { return CreationKeyPrefix + id }
func accessKey(id string) string   { return AccessKeyPrefix + id }

// CreateValue creates the metadata of a new session. created is false when a session
// with the same id already exists.
func (f *Factory) CreateValue(ctx context.Context, id string, timeout time.Duration) (*Entry, bool, error) {
	creation := NewCreationEntry(f.clock())
	creation.SetTimeout(timeout)
	creation.MarkNew()

	data, err := f.creation.Marshal(creation)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal creation metadata: %w", err)
	}
	stored, err := f.cache.PutIfAbsent(ctx, creationKey(id), data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create session metadata: %w", err)
	}
	if !stored {
		return nil, false, nil
	}

	access := &AccessEntry{}
	data, err = f.access.Marshal(access)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal access metadata: %w", err)
	}
	stored, err = f.cache.PutIfAbsent(ctx, accessKey(id), data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create access metadata: %w", err)
	}
	if !stored {
		// Left behind by an interrupted removal; it belongs to an earlier session.
		f.logger.Warn("Replacing stale access metadata", "session_id", id)
		if _, err := f.cache.Delete(ctx, accessKey(id)); err != nil {
			return nil, false, fmt.Errorf("failed to purge stale access metadata: %w", err)
		}
		if err := f.cache.Put(ctx, accessKey(id), data); err != nil {
			return nil, false, fmt.Errorf("failed to create access metadata: %w", err)
		}
	}
	f.contexts.Delete(id)
	return f.newEntry(id, creation, access), true, nil
}

// FindValue looks up the metadata of an existing session.
func (f *Factory) FindValue(ctx context.Context, id string) (*Entry, bool, error) {
	return f.lookup(ctx, id)
}

// TryValue looks up the metadata of an existing session. Metadata lookups never
// modify the cache, so it behaves like FindValue.
func (f *Factory) TryValue(ctx context.Context, id string) (*Entry, bool, error) {
	return f.lookup(ctx, id)
}

func (f *Factory) lookup(ctx context.Context, id string) (*Entry, bool, error) {
	data, found, err := f.cache.Get(ctx, creationKey(id))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read session metadata: %w", err)
	}
	if !found {
		f.contexts.Delete(id)
		return nil, false, nil
	}
	creation, err := f.creation.Unmarshal(data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal creation metadata: %w", err)
	}

	// A missing access entry means the session was never accessed.
	access := &AccessEntry{}
	data, found, err = f.cache.Get(ctx, accessKey(id))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read access metadata: %w", err)
	}
	if found {
		if access, err = f.access.Unmarshal(data); err != nil {
			return nil, false, fmt.Errorf("failed to unmarshal access metadata: %w", err)
		}
	}
	return f.newEntry(id, creation, access), true, nil
}

// Remove deletes both metadata entries. It reports whether the creation entry existed.
func (f *Factory) Remove(ctx context.Context, id string) (bool, error) {
	f.contexts.Delete(id)
	_, accessErr := f.cache.Delete(ctx, accessKey(id))
	removed, err := f.cache.Delete(ctx, creationKey(id))
	if err := errors.Join(accessErr, err); err != nil {
		return false, fmt.Errorf("failed to remove session metadata: %w", err)
	}
	return removed, nil
}

// Purge deletes both metadata entries.
func (f *Factory) Purge(ctx context.Context, id string) (bool, error) {
	return f.Remove(ctx, id)
}

// CreateSessionMetaData returns the mutable view of entry. Changes are written back on Close.
func (f *Factory) CreateSessionMetaData(id string, entry *Entry) session.ManagedMetaData {
	creation := ports.NewCacheMutator(f.cache, creationKey(id), func() ([]byte, error) {
		return f.creation.Marshal(entry.Creation)
	})
	access := ports.NewCacheMutator(f.cache, accessKey(id), func() ([]byte, error) {
		return f.access.Marshal(entry.Access)
	})
	if entry.local != nil {
		entry.local.pins.Add(1)
	}
	return NewMutableMetaData(entry, creation, access, func(ctx context.Context) error {
		err := errors.Join(creation.Flush(ctx), access.Flush(ctx))
		if entry.local != nil {
			entry.local.touch(entry)
			entry.local.pins.Add(-1)
		}
		return err
	})
}

// CreateImmutableSessionMetaData returns a read-only view of entry.
func (f *Factory) CreateImmutableSessionMetaData(id string, entry *Entry) session.ImmutableSessionMetaData {
	return NewCompositeMetaData(entry)
}

func (f *Factory) newEntry(id string, creation *CreationEntry, access *AccessEntry) *Entry {
	entry := NewEntry(creation, access)
	if f.localContext != nil {
		now := f.clock()
		f.sweep(now)
		slot, _ := f.contexts.LoadOrStore(id, newLocalContext(f.localContext))
		entry.local = slot.(*localContext)
		entry.local.touch(entry)
	}
	return entry
}

// sweep evicts the local contexts of expired sessions, at most once per sweepInterval.
// Sessions that expire in the store are never removed through the factory.
func (f *Factory) sweep(now time.Time) {
	last := f.lastSweep.Load()
	if now.UnixNano()-last < int64(f.sweepInterval) || !f.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	f.contexts.Range(func(id, slot any) bool {
		if slot.(*localContext).evictable(now) {
			f.contexts.CompareAndDelete(id, slot)
		}
		return true
	})
}

package composite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/sessionkit/internal/logging"
	"github.com/aretw0/sessionkit/pkg/ports"
	"github.com/aretw0/sessionkit/pkg/session"
)

// ErrAttributesExist is returned when stale attributes block the creation of a session.
var ErrAttributesExist = errors.New("session attributes already exist")

// MetaDataFactory maps session metadata of type M onto the cache.
type MetaDataFactory[M any] interface {
	ports.Creator[string, M, time.Duration]
	ports.Locator[string, M]
	ports.Remover[string]

	CreateSessionMetaData(id string, value M) session.ManagedMetaData
	CreateImmutableSessionMetaData(id string, value M) session.ImmutableSessionMetaData
}

// AttributesFactory maps session attributes of type A onto the cache.
type AttributesFactory[A any] interface {
	ports.Creator[string, A, any]
	ports.Locator[string, A]
	ports.Remover[string]

	// CreateSessionAttributes returns the live attributes. s is the session the
	// attributes belong to, as listeners should see it.
	CreateSessionAttributes(id string, value A, s session.ImmutableSession) session.ManagedAttributes
	CreateImmutableSessionAttributes(id string, value A) session.ImmutableSessionAttributes
	// UnbindExpired notifies the binding listeners of an expired session.
	UnbindExpired(id string, value A, s session.ImmutableSession)
}

// Entry pairs the two cache values of one session.
type Entry[M, A any] struct {
	MetaData   M
	Attributes A
}

var (
	_ ports.Creator[string, Entry[int, int], time.Duration] = (*Factory[int, int])(nil)
	_ ports.Locator[string, Entry[int, int]]                = (*Factory[int, int])(nil)
	_ ports.Remover[string]                                 = (*Factory[int, int])(nil)
)

// Factory composes a metadata factory and an attributes factory into one session store.
type Factory[M, A any] struct {
	metaData   MetaDataFactory[M]
	attributes AttributesFactory[A]
	logger     *slog.Logger
}

// FactoryOption configures the Factory.
type FactoryOption func(*factoryOptions)

type factoryOptions struct {
	logger *slog.Logger
}

// WithFactoryLogger configures a logger for orphan cleanup.
func WithFactoryLogger(logger *slog.Logger) FactoryOption {
	return func(o *factoryOptions) {
		o.logger = logger
	}
}

// NewFactory composes metaData and attributes.
func NewFactory[M, A any](metaData MetaDataFactory[M], attributes AttributesFactory[A], opts ...FactoryOption) *Factory[M, A] {
	o := factoryOptions{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Factory[M, A]{
		metaData:   metaData,
		attributes: attributes,
		logger:     o.logger,
	}
}

// CreateValue creates a session. Nothing is created when the metadata already exists.
func (f *Factory[M, A]) CreateValue(ctx context.Context, id string, timeout time.Duration) (Entry[M, A], bool, error) {
	var entry Entry[M, A]
	md, created, err := f.metaData.CreateValue(ctx, id, timeout)
	if err != nil || !created {
		return entry, false, err
	}

	attrs, created, err := f.attributes.CreateValue(ctx, id, nil)
	if err != nil {
		return entry, false, err
	}
	if !created {
		// Left behind by an earlier session with the same id.
		if _, err := f.attributes.Purge(ctx, id); err != nil {
			return entry, false, err
		}
		if attrs, created, err = f.attributes.CreateValue(ctx, id, nil); err != nil {
			return entry, false, err
		}
		if !created {
			return entry, false, fmt.Errorf("session %s: %w", id, ErrAttributesExist)
		}
	}
	return Entry[M, A]{MetaData: md, Attributes: attrs}, true, nil
}

// FindValue looks up a session. Metadata without attributes is purged.
func (f *Factory[M, A]) FindValue(ctx context.Context, id string) (Entry[M, A], bool, error) {
	entry, found, orphaned, err := f.lookup(ctx, id, f.metaData.FindValue, f.attributes.FindValue)
	if orphaned {
		f.logger.Warn("Purging orphaned session metadata", "session_id", id)
		if _, err := f.metaData.Purge(ctx, id); err != nil {
			f.logger.Warn("Failed to purge orphaned session metadata", "session_id", id, "err", err)
		}
	}
	return entry, found, err
}

// TryValue looks up a session without modifying anything.
func (f *Factory[M, A]) TryValue(ctx context.Context, id string) (Entry[M, A], bool, error) {
	entry, found, _, err := f.lookup(ctx, id, f.metaData.TryValue, f.attributes.TryValue)
	return entry, found, err
}

type lookupFunc[V any] func(ctx context.Context, id string) (V, bool, error)

func (f *Factory[M, A]) lookup(ctx context.Context, id string, findMetaData lookupFunc[M], findAttributes lookupFunc[A]) (entry Entry[M, A], found, orphaned bool, err error) {
	md, found, err := findMetaData(ctx, id)
	if err != nil || !found {
		return entry, false, false, err
	}
	attrs, found, err := findAttributes(ctx, id)
	if err != nil {
		return entry, false, false, err
	}
	if !found {
		return entry, false, true, nil
	}
	return Entry[M, A]{MetaData: md, Attributes: attrs}, true, false, nil
}

// Remove destroys an invalidated session, attributes first. It reports whether the
// metadata existed.
func (f *Factory[M, A]) Remove(ctx context.Context, id string) (bool, error) {
	if _, err := f.attributes.Remove(ctx, id); err != nil {
		return false, err
	}
	return f.metaData.Remove(ctx, id)
}

// Purge destroys a session as cleanup, attributes first. It reports whether the
// metadata existed.
func (f *Factory[M, A]) Purge(ctx context.Context, id string) (bool, error) {
	if _, err := f.attributes.Purge(ctx, id); err != nil {
		return false, err
	}
	return f.metaData.Purge(ctx, id)
}

// CreateSession returns a live session over entry. The session must be closed.
func (f *Factory[M, A]) CreateSession(id string, entry Entry[M, A]) session.Session {
	s := &compositeSession{
		id:       id,
		metaData: f.metaData.CreateSessionMetaData(id, entry.MetaData),
		remover:  f,
	}
	s.attributes = f.attributes.CreateSessionAttributes(id, entry.Attributes, sessionView{s})
	return s
}

// Expire destroys a session found expired. Binding listeners are told, activation
// listeners are not, since the session never becomes live.
func (f *Factory[M, A]) Expire(ctx context.Context, id string, entry Entry[M, A]) error {
	snapshot := f.CreateImmutableSession(id, entry)
	f.attributes.UnbindExpired(id, entry.Attributes, expiredSession{snapshot})
	if _, err := f.Remove(ctx, id); err != nil {
		return fmt.Errorf("failed to remove expired session %s: %w", id, err)
	}
	return nil
}

// expiredSession is a snapshot that is no longer valid.
type expiredSession struct {
	session.ImmutableSession
}

func (expiredSession) IsValid() bool { return false }

// CreateImmutableSession returns a detached snapshot of entry.
func (f *Factory[M, A]) CreateImmutableSession(id string, entry Entry[M, A]) session.ImmutableSession {
	return &immutableSession{
		id:         id,
		metaData:   f.metaData.CreateImmutableSessionMetaData(id, entry.MetaData),
		attributes: f.attributes.CreateImmutableSessionAttributes(id, entry.Attributes),
	}
}

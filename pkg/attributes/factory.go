package attributes

import (
	"context"
	"fmt"
	"maps"

	"github.com/aretw0/sessionkit/pkg/notify"
	"github.com/aretw0/sessionkit/pkg/ports"
	"github.com/aretw0/sessionkit/pkg/session"
)

// KeyPrefix prefixes the cache entry holding the attributes of a session.
const KeyPrefix = "attributes:"

var (
	_ ports.Creator[string, Map, any] = (*Factory)(nil)
	_ ports.Locator[string, Map]      = (*Factory)(nil)
	_ ports.Remover[string]           = (*Factory)(nil)
)

// Factory stores all attributes of a session in one cache entry.
type Factory struct {
	cache      ports.Cache
	marshaller ports.Marshaller[Map]
	notifiers  notify.NotifierFactory
	binders    notify.BinderFactory
	immutable  func(any) bool
}

// Option configures the Factory.
type Option func(*Factory)

// WithMarshaller replaces the gob encoding of attribute maps.
func WithMarshaller(m ports.Marshaller[Map]) Option {
	return func(f *Factory) {
		f.marshaller = m
	}
}

// WithNotifierFactory selects how activation events reach attribute values.
func WithNotifierFactory(factory notify.NotifierFactory) Option {
	return func(f *Factory) {
		f.notifiers = factory
	}
}

// WithBinderFactory selects how binding events reach attribute values.
func WithBinderFactory(factory notify.BinderFactory) Option {
	return func(f *Factory) {
		f.binders = factory
	}
}

// WithImmutability overrides IsImmutable, the test deciding whether reading an
// attribute marks the entry dirty.
func WithImmutability(immutable func(any) bool) Option {
	return func(f *Factory) {
		f.immutable = immutable
	}
}

// NewFactory creates an attributes factory on top of cache.
func NewFactory(cache ports.Cache, opts ...Option) *Factory {
	f := &Factory{
		cache:      cache,
		marshaller: GobMarshaller{},
		notifiers:  notify.DefaultNotifierFactory(notify.ScopeSession),
		binders:    notify.DefaultBinderFactory(),
		immutable:  IsImmutable,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func key(id string) string { return KeyPrefix + id }

// CreateValue stores an empty attribute map. The creation context is unused.
func (f *Factory) CreateValue(ctx context.Context, id string, _ any) (Map, bool, error) {
	value := Map{}
	data, err := f.marshaller.Marshal(value)
	if err != nil {
		return nil, false, err
	}
	stored, err := f.cache.PutIfAbsent(ctx, key(id), data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create session attributes: %w", err)
	}
	if !stored {
		return nil, false, nil
	}
	return value, true, nil
}

// FindValue reads the attributes of a session.
func (f *Factory) FindValue(ctx context.Context, id string) (Map, bool, error) {
	return f.lookup(ctx, id)
}

// TryValue reads the attributes of a session. Like FindValue it has no side effects.
func (f *Factory) TryValue(ctx context.Context, id string) (Map, bool, error) {
	return f.lookup(ctx, id)
}

func (f *Factory) lookup(ctx context.Context, id string) (Map, bool, error) {
	data, found, err := f.cache.Get(ctx, key(id))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read session attributes: %w", err)
	}
	if !found {
		return nil, false, nil
	}
	value, err := f.marshaller.Unmarshal(data)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Remove deletes the attribute entry.
func (f *Factory) Remove(ctx context.Context, id string) (bool, error) {
	removed, err := f.cache.Delete(ctx, key(id))
	if err != nil {
		return false, fmt.Errorf("failed to remove session attributes: %w", err)
	}
	return removed, nil
}

// Purge deletes the attribute entry.
func (f *Factory) Purge(ctx context.Context, id string) (bool, error) {
	return f.Remove(ctx, id)
}

// CreateSessionAttributes returns the live attributes of s backed by value.
// Existing sessions are activated before the attributes are returned.
func (f *Factory) CreateSessionAttributes(id string, value Map, s session.ImmutableSession) session.ManagedAttributes {
	attrs := &MutableAttributes{
		values:    value,
		valid:     s.IsValid,
		immutable: f.immutable,
	}
	if attrs.values == nil {
		attrs.values = Map{}
	}
	mutator := ports.NewCacheMutator(f.cache, key(id), func() ([]byte, error) {
		return f.marshaller.Marshal(attrs.snapshot())
	})
	attrs.mutator = mutator
	attrs.flush = mutator.Flush

	// Listeners see these attributes, not whatever s currently exposes.
	view := &listenerView{ImmutableSession: s, attributes: attrs}
	attrs.binder = f.binders(view)
	attrs.notifier = f.notifiers(view, attrs.listValues)
	if !s.MetaData().IsNew() {
		attrs.notifier.PostActivate()
	}
	return attrs
}

// UnbindExpired sends an unbound event for every attribute of an expired session, in
// name order. Nothing is activated or passivated.
func (f *Factory) UnbindExpired(id string, value Map, s session.ImmutableSession) {
	binder := f.binders(s)
	for _, name := range value.Names() {
		binder.Unbound(name, value[name])
	}
}

// CreateImmutableSessionAttributes returns a detached copy of value.
func (f *Factory) CreateImmutableSessionAttributes(id string, value Map) session.ImmutableSessionAttributes {
	return ImmutableAttributes(maps.Clone(value))
}

type listenerView struct {
	session.ImmutableSession
	attributes session.ImmutableSessionAttributes
}

func (v *listenerView) Attributes() session.ImmutableSessionAttributes {
	return v.attributes
}

package attributes

import (
	"context"
	"maps"
	"sync"

	"github.com/aretw0/sessionkit/pkg/notify"
	"github.com/aretw0/sessionkit/pkg/ports"
	"github.com/aretw0/sessionkit/pkg/session"
)

var _ session.ManagedAttributes = (*MutableAttributes)(nil)

// MutableAttributes is the attribute map of a live session. Every change marks the
// cache entry dirty, and so does reading a value that could be changed in place.
type MutableAttributes struct {
	mu     sync.RWMutex
	values Map

	valid     func() bool
	immutable func(any) bool
	mutator   ports.Mutator
	flush     func(ctx context.Context) error
	notifier  notify.Notifier
	binder    notify.Binder
}

func (a *MutableAttributes) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.values.Names()
}

func (a *MutableAttributes) Get(name string) (any, bool) {
	a.mu.RLock()
	value, ok := a.values[name]
	a.mu.RUnlock()
	if ok && !a.immutable(value) {
		a.mutator.Mutate()
	}
	return value, ok
}

func (a *MutableAttributes) Set(name string, value any) (any, error) {
	if value == nil {
		return a.Remove(name)
	}
	if !a.valid() {
		return nil, session.ErrSessionInvalid
	}

	a.mu.Lock()
	old, had := a.values[name]
	a.values[name] = value
	a.mu.Unlock()
	a.mutator.Mutate()

	if had && notify.Same(old, value) {
		return old, nil
	}
	a.binder.Bound(name, value)
	if had {
		a.binder.Unbound(name, old)
	}
	return old, nil
}

func (a *MutableAttributes) Remove(name string) (any, error) {
	if !a.valid() {
		return nil, session.ErrSessionInvalid
	}

	a.mu.Lock()
	old, had := a.values[name]
	delete(a.values, name)
	a.mu.Unlock()
	if !had {
		return nil, nil
	}
	a.mutator.Mutate()
	a.binder.Unbound(name, old)
	return old, nil
}

// UnbindAll sends an unbound event for every attribute, in name order.
// The attributes themselves are left in place.
func (a *MutableAttributes) UnbindAll() {
	current := a.snapshot()
	for _, name := range current.Names() {
		a.binder.Unbound(name, current[name])
	}
}

// Close passivates the attribute listeners and, if the session is still valid,
// writes back the entry when it is dirty.
func (a *MutableAttributes) Close(ctx context.Context) error {
	a.notifier.Close()
	if !a.valid() {
		return nil
	}
	return a.flush(ctx)
}

func (a *MutableAttributes) snapshot() Map {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return maps.Clone(a.values)
}

func (a *MutableAttributes) listValues() []any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	values := make([]any, 0, len(a.values))
	for _, name := range a.values.Names() {
		values = append(values, a.values[name])
	}
	return values
}

// ImmutableAttributes is a detached attribute snapshot.
type ImmutableAttributes Map

func (a ImmutableAttributes) Names() []string {
	return Map(a).Names()
}

func (a ImmutableAttributes) Get(name string) (any, bool) {
	value, ok := a[name]
	return value, ok
}

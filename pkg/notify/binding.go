package notify

import (
	"sync"

	"github.com/aretw0/sessionkit/pkg/session"
)

// Binder delivers binding events for one session.
type Binder interface {
	Bound(name string, value any)
	Unbound(name string, value any)
}

// BinderFactory builds the binder of a session.
type BinderFactory func(s session.ImmutableSession) Binder

// NewBinderFactory returns a factory of binding notifiers using provider.
func NewBinderFactory[C any](provider BindingProvider[C]) BinderFactory {
	return func(s session.ImmutableSession) Binder {
		return NewBindingNotifier(s, provider)
	}
}

// BindingNotifier forwards bind and unbind events to values implementing the
// binding capability. Values without it are ignored.
type BindingNotifier[C any] struct {
	provider BindingProvider[C]
	facade   func() C
}

// NewBindingNotifier creates a binding notifier for s.
func NewBindingNotifier[C any](s session.ImmutableSession, provider BindingProvider[C]) *BindingNotifier[C] {
	return &BindingNotifier[C]{
		provider: provider,
		facade:   sync.OnceValue(func() C { return provider.Facade(s) }),
	}
}

func (n *BindingNotifier[C]) Bound(name string, value any) {
	if n.provider.IsBindingListener(value) {
		n.provider.Bound(value, n.facade(), name)
	}
}

func (n *BindingNotifier[C]) Unbound(name string, value any) {
	if n.provider.IsBindingListener(value) {
		n.provider.Unbound(value, n.facade(), name)
	}
}

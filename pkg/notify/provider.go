package notify

import "github.com/aretw0/sessionkit/pkg/session"

// ActivationProvider knows which attribute values want activation events and how to
// deliver them. C is the session facade type handed to listeners, which keeps the
// notifiers independent of any particular container API.
type ActivationProvider[C any] interface {
	// Facade builds the session view passed to listeners.
	Facade(s session.ImmutableSession) C
	IsActivationListener(value any) bool
	PrePassivate(listener any, facade C)
	PostActivate(listener any, facade C)
}

// BindingProvider knows which attribute values want binding events and how to deliver them.
type BindingProvider[C any] interface {
	Facade(s session.ImmutableSession) C
	IsBindingListener(value any) bool
	Bound(listener any, facade C, name string)
	Unbound(listener any, facade C, name string)
}

var (
	_ ActivationProvider[session.ImmutableSession] = DefaultProvider{}
	_ BindingProvider[session.ImmutableSession]    = DefaultProvider{}
)

// DefaultProvider delivers events to values implementing session.ActivationListener and
// session.BindingListener, passing the immutable session itself as facade.
type DefaultProvider struct{}

func (DefaultProvider) Facade(s session.ImmutableSession) session.ImmutableSession {
	return s
}

func (DefaultProvider) IsActivationListener(value any) bool {
	_, ok := value.(session.ActivationListener)
	return ok
}

func (DefaultProvider) PrePassivate(listener any, s session.ImmutableSession) {
	listener.(session.ActivationListener).SessionWillPassivate(s)
}

func (DefaultProvider) PostActivate(listener any, s session.ImmutableSession) {
	listener.(session.ActivationListener).SessionDidActivate(s)
}

func (DefaultProvider) IsBindingListener(value any) bool {
	_, ok := value.(session.BindingListener)
	return ok
}

func (DefaultProvider) Bound(listener any, s session.ImmutableSession, name string) {
	listener.(session.BindingListener).ValueBound(s, name)
}

func (DefaultProvider) Unbound(listener any, s session.ImmutableSession, name string) {
	listener.(session.BindingListener).ValueUnbound(s, name)
}

// DefaultNotifierFactory returns notifiers of the given scope backed by DefaultProvider.
func DefaultNotifierFactory(scope Scope) NotifierFactory {
	return NewNotifierFactory[session.ImmutableSession](scope, DefaultProvider{})
}

// DefaultBinderFactory returns binding notifiers backed by DefaultProvider.
func DefaultBinderFactory() BinderFactory {
	return NewBinderFactory[session.ImmutableSession](DefaultProvider{})
}

package notify

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/aretw0/sessionkit/pkg/session"
)

// Notifier delivers passivation and activation events for one session.
type Notifier interface {
	// PrePassivate runs before the session attributes are serialized.
	PrePassivate()
	// PostActivate runs after the session attributes were deserialized.
	PostActivate()
	// Close passivates anything still active.
	Close()
}

// NotifierFactory builds the notifier of a session. values returns the current
// attribute values each time it is called.
type NotifierFactory func(s session.ImmutableSession, values func() []any) Notifier

// Scope selects how activation state is tracked.
type Scope string

const (
	// ScopeSession tracks one active flag for the whole session.
	ScopeSession Scope = "session"
	// ScopeAttribute tracks one active flag per listener instance.
	ScopeAttribute Scope = "attribute"
)

// ParseScope validates a scope name. The empty string selects ScopeSession.
func ParseScope(name string) (Scope, error) {
	switch Scope(name) {
	case "", ScopeSession:
		return ScopeSession, nil
	case ScopeAttribute:
		return ScopeAttribute, nil
	default:
		return "", fmt.Errorf("unknown notifier scope %q", name)
	}
}

// NewNotifierFactory returns a factory of notifiers of the given scope.
func NewNotifierFactory[C any](scope Scope, provider ActivationProvider[C]) NotifierFactory {
	if scope == ScopeAttribute {
		return func(s session.ImmutableSession, values func() []any) Notifier {
			return NewAttributeNotifier(s, values, provider)
		}
	}
	return func(s session.ImmutableSession, values func() []any) Notifier {
		return NewSessionNotifier(s, values, provider)
	}
}

// SessionNotifier advances a single active flag per session. A PrePassivate/PostActivate
// pair never fires twice, and a notifier that never became active does nothing.
type SessionNotifier[C any] struct {
	values   func() []any
	provider ActivationProvider[C]
	facade   func() C
	active   atomic.Bool
}

// NewSessionNotifier creates an inactive notifier.
func NewSessionNotifier[C any](s session.ImmutableSession, values func() []any, provider ActivationProvider[C]) *SessionNotifier[C] {
	return &SessionNotifier[C]{
		values:   values,
		provider: provider,
		facade:   sync.OnceValue(func() C { return provider.Facade(s) }),
	}
}

func (n *SessionNotifier[C]) PostActivate() {
	if !n.active.CompareAndSwap(false, true) {
		return
	}
	for _, v := range n.values() {
		if n.provider.IsActivationListener(v) {
			n.provider.PostActivate(v, n.facade())
		}
	}
}

func (n *SessionNotifier[C]) PrePassivate() {
	if !n.active.CompareAndSwap(true, false) {
		return
	}
	for _, v := range n.values() {
		if n.provider.IsActivationListener(v) {
			n.provider.PrePassivate(v, n.facade())
		}
	}
}

func (n *SessionNotifier[C]) Close() {
	n.PrePassivate()
}

// AttributeNotifier tracks activation per listener instance. Listeners are keyed by
// identity, so an instance stored under several names is notified once, and two equal
// but distinct instances are notified separately. Values without identity (non-reference
// kinds) share one active flag, as in session scope.
type AttributeNotifier[C any] struct {
	values   func() []any
	provider ActivationProvider[C]
	facade   func() C

	mu        sync.Mutex
	listeners map[identityKey]*trackedListener
	untracked []any // activated values without identity, nil while inactive
}

type trackedListener struct {
	value  any
	active atomic.Bool
}

// NewAttributeNotifier creates a notifier with no tracked listeners.
func NewAttributeNotifier[C any](s session.ImmutableSession, values func() []any, provider ActivationProvider[C]) *AttributeNotifier[C] {
	return &AttributeNotifier[C]{
		values:    values,
		provider:  provider,
		facade:    sync.OnceValue(func() C { return provider.Facade(s) }),
		listeners: make(map[identityKey]*trackedListener),
	}
}

func (n *AttributeNotifier[C]) PostActivate() {
	var untracked []any
	for _, v := range n.values() {
		if !n.provider.IsActivationListener(v) {
			continue
		}
		key, ok := identityOf(v)
		if !ok {
			untracked = append(untracked, v)
			continue
		}
		if n.track(key, v).active.CompareAndSwap(false, true) {
			n.provider.PostActivate(v, n.facade())
		}
	}
	if len(untracked) == 0 {
		return
	}

	n.mu.Lock()
	if n.untracked != nil {
		n.mu.Unlock()
		return
	}
	n.untracked = untracked
	n.mu.Unlock()
	for _, v := range untracked {
		n.provider.PostActivate(v, n.facade())
	}
}

func (n *AttributeNotifier[C]) PrePassivate() {
	for _, v := range n.values() {
		if !n.provider.IsActivationListener(v) {
			continue
		}
		key, ok := identityOf(v)
		if !ok {
			continue
		}
		if listener := n.lookup(key); listener != nil && listener.active.CompareAndSwap(true, false) {
			n.provider.PrePassivate(v, n.facade())
		}
	}
	n.passivateUntracked()
}

// Close passivates every listener still active, whether or not it is still
// an attribute, and forgets all listeners.
func (n *AttributeNotifier[C]) Close() {
	n.mu.Lock()
	listeners := n.listeners
	n.listeners = make(map[identityKey]*trackedListener)
	n.mu.Unlock()

	for _, listener := range listeners {
		if listener.active.CompareAndSwap(true, false) {
			n.provider.PrePassivate(listener.value, n.facade())
		}
	}
	n.passivateUntracked()
}

// passivateUntracked passivates the values without identity that were activated.
func (n *AttributeNotifier[C]) passivateUntracked() {
	n.mu.Lock()
	untracked := n.untracked
	n.untracked = nil
	n.mu.Unlock()

	for _, v := range untracked {
		n.provider.PrePassivate(v, n.facade())
	}
}

func (n *AttributeNotifier[C]) track(key identityKey, v any) *trackedListener {
	n.mu.Lock()
	defer n.mu.Unlock()
	listener, ok := n.listeners[key]
	if !ok {
		listener = &trackedListener{value: v}
		n.listeners[key] = listener
	}
	return listener
}

func (n *AttributeNotifier[C]) lookup(key identityKey) *trackedListener {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.listeners[key]
}

package notify_test

import (
	"testing"

	"github.com/aretw0/sessionkit/pkg/notify"
	"github.com/aretw0/sessionkit/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSession is the minimal immutable session listeners receive.
type stubSession struct {
	session.ImmutableSession
	id string
}

func (s stubSession) ID() string { return s.id }

// recorder implements both listener capabilities and counts callbacks.
type recorder struct {
	passivated int
	activated  int
	bound      []string
	unbound    []string
	lastID     string
}

func (r *recorder) SessionWillPassivate(s session.ImmutableSession) {
	r.passivated++
	r.lastID = s.ID()
}

func (r *recorder) SessionDidActivate(s session.ImmutableSession) {
	r.activated++
	r.lastID = s.ID()
}

func (r *recorder) ValueBound(s session.ImmutableSession, name string) {
	r.bound = append(r.bound, name)
}

func (r *recorder) ValueUnbound(s session.ImmutableSession, name string) {
	r.unbound = append(r.unbound, name)
}

// countingProvider wraps DefaultProvider and counts facade constructions.
type countingProvider struct {
	notify.DefaultProvider
	facades int
}

func (p *countingProvider) Facade(s session.ImmutableSession) session.ImmutableSession {
	p.facades++
	return s
}

func valuesOf(values ...any) func() []any {
	return func() []any { return values }
}

func TestSessionNotifier_ActivateOnce(t *testing.T) {
	listener := &recorder{}
	n := notify.NewSessionNotifier[session.ImmutableSession](stubSession{id: "s1"}, valuesOf(listener, "plain"), notify.DefaultProvider{})

	n.PostActivate()
	n.PostActivate()
	assert.Equal(t, 1, listener.activated)
	assert.Equal(t, "s1", listener.lastID)

	n.PrePassivate()
	assert.Equal(t, 1, listener.passivated)

	n.PrePassivate()
	n.Close()
	assert.Equal(t, 1, listener.passivated, "already passive notifier does nothing")
}

func TestSessionNotifier_NeverActivatedDoesNothing(t *testing.T) {
	listener := &recorder{}
	provider := &countingProvider{}
	n := notify.NewSessionNotifier[session.ImmutableSession](stubSession{id: "s1"}, valuesOf(listener), provider)

	n.PrePassivate()
	n.Close()

	assert.Zero(t, listener.passivated)
	assert.Zero(t, provider.facades, "the facade is only built when needed")
}

func TestSessionNotifier_CloseForcesPassivation(t *testing.T) {
	listener := &recorder{}
	n := notify.NewSessionNotifier[session.ImmutableSession](stubSession{id: "s1"}, valuesOf(listener), notify.DefaultProvider{})

	n.PostActivate()
	n.Close()
	n.Close()

	assert.Equal(t, 1, listener.passivated)
}

func TestSessionNotifier_FacadeBuiltOnce(t *testing.T) {
	provider := &countingProvider{}
	n := notify.NewSessionNotifier[session.ImmutableSession](stubSession{id: "s1"}, valuesOf(&recorder{}, &recorder{}), provider)

	n.PostActivate()
	n.PrePassivate()

	assert.Equal(t, 1, provider.facades)
}

func TestAttributeNotifier_SharedInstanceNotifiedOnce(t *testing.T) {
	shared := &recorder{}
	n := notify.NewAttributeNotifier[session.ImmutableSession](stubSession{id: "s1"}, valuesOf(shared, shared), notify.DefaultProvider{})

	n.PostActivate()
	n.PostActivate()
	assert.Equal(t, 1, shared.activated)

	n.PrePassivate()
	assert.Equal(t, 1, shared.passivated)
}

func TestAttributeNotifier_EqualInstancesAreDistinct(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	require.Equal(t, a, b, "the two listeners compare equal by value")

	n := notify.NewAttributeNotifier[session.ImmutableSession](stubSession{id: "s1"}, valuesOf(a, b), notify.DefaultProvider{})
	n.PostActivate()

	assert.Equal(t, 1, a.activated)
	assert.Equal(t, 1, b.activated)
}

func TestAttributeNotifier_CloseForcesPassivation(t *testing.T) {
	kept, removed := &recorder{}, &recorder{}
	values := []any{kept, removed}
	n := notify.NewAttributeNotifier[session.ImmutableSession](stubSession{id: "s1"}, func() []any { return values }, notify.DefaultProvider{})

	n.PostActivate()
	values = []any{kept}

	n.Close()
	assert.Equal(t, 1, kept.passivated)
	assert.Equal(t, 1, removed.passivated, "tracked listeners are passivated even if no longer attributes")

	n.Close()
	n.PrePassivate()
	assert.Equal(t, 1, kept.passivated)
}

func TestAttributeNotifier_NeverActivatedNeverPassivated(t *testing.T) {
	listener := &recorder{}
	n := notify.NewAttributeNotifier[session.ImmutableSession](stubSession{id: "s1"}, valuesOf(listener), notify.DefaultProvider{})

	n.PrePassivate()
	n.Close()

	assert.Zero(t, listener.passivated)
}

// eventLog counts the events of listeners stored by value.
type eventLog struct {
	activated, passivated int
}

type valueListener struct {
	name string
	log  *eventLog
}

func (l valueListener) SessionWillPassivate(s session.ImmutableSession) { l.log.passivated++ }
func (l valueListener) SessionDidActivate(s session.ImmutableSession)   { l.log.activated++ }

func TestAttributeNotifier_ValueListenersActivateOnce(t *testing.T) {
	log := &eventLog{}
	n := notify.NewAttributeNotifier[session.ImmutableSession](stubSession{id: "s1"}, valuesOf(valueListener{"a", log}), notify.DefaultProvider{})

	n.PostActivate()
	n.PostActivate()
	assert.Equal(t, 1, log.activated)

	n.PrePassivate()
	n.PrePassivate()
	assert.Equal(t, 1, log.passivated)

	n.PostActivate()
	assert.Equal(t, 2, log.activated)
	n.Close()
	assert.Equal(t, 2, log.passivated, "close passivates value listeners too")

	n.Close()
	assert.Equal(t, 2, log.passivated)
}

func TestNotifierFactory_Scopes(t *testing.T) {
	shared := &recorder{}
	values := valuesOf(shared, shared)

	sessionScoped := notify.DefaultNotifierFactory(notify.ScopeSession)(stubSession{id: "s1"}, values)
	sessionScoped.PostActivate()
	assert.Equal(t, 2, shared.activated, "session scope notifies every attribute")

	attributeScoped := notify.DefaultNotifierFactory(notify.ScopeAttribute)(stubSession{id: "s1"}, values)
	attributeScoped.PostActivate()
	assert.Equal(t, 3, shared.activated, "attribute scope notifies each instance once")
}

func TestParseScope(t *testing.T) {
	scope, err := notify.ParseScope("")
	require.NoError(t, err)
	assert.Equal(t, notify.ScopeSession, scope)

	scope, err = notify.ParseScope("attribute")
	require.NoError(t, err)
	assert.Equal(t, notify.ScopeAttribute, scope)

	_, err = notify.ParseScope("request")
	assert.Error(t, err)
}

func TestBindingNotifier(t *testing.T) {
	listener := &recorder{}
	binder := notify.DefaultBinderFactory()(stubSession{id: "s1"})

	binder.Bound("cart", listener)
	binder.Bound("ignored", "plain value")
	binder.Unbound("cart", listener)

	assert.Equal(t, []string{"cart"}, listener.bound)
	assert.Equal(t, []string{"cart"}, listener.unbound)
}

func TestSame(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := map[string]int{}

	assert.True(t, notify.Same(a, a))
	assert.False(t, notify.Same(a, b))
	assert.True(t, notify.Same(m, m))
	assert.False(t, notify.Same("x", "x"), "values without identity are never the same instance")
	assert.False(t, notify.Same(nil, nil))
}

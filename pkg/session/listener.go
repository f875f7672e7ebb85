package session

// ActivationListener is implemented by attribute values that want to know when the
// session holding them is serialized out of memory or brought back.
type ActivationListener interface {
	SessionWillPassivate(s ImmutableSession)
	SessionDidActivate(s ImmutableSession)
}

// BindingListener is implemented by attribute values that want to know when they are
// bound to or unbound from a session.
type BindingListener interface {
	ValueBound(s ImmutableSession, name string)
	ValueUnbound(s ImmutableSession, name string)
}

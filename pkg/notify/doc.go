/*
Package notify dispatches session lifecycle events to interested attribute values.

Attribute values opt in structurally: a value implementing session.ActivationListener is
told when the session is about to be serialized (passivated) and after it was deserialized
(activated); a value implementing session.BindingListener is told when it is bound to or
unbound from a session. Providers decide which capability interfaces count and which
session facade listeners see.

Activation state only ever advances through a compare-and-swap, so every passivation is
paired with exactly one activation no matter how often the notifier is invoked.
*/
package notify

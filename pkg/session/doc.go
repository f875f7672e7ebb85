/*
Package session defines the session contracts and the concurrency layer on top of them.

A Manager hands out Session handles backed by a distributed cache. Many request goroutines
may ask for the same session at once; ConcurrentManager makes sure they all share a single
handle per id, so the backing store is queried once and every caller observes the same
attribute and metadata state. The handle is reference counted and the underlying session
is only closed when the last caller closes it.

# Key Types

  - Session / ImmutableSession: live handle vs detached snapshot.
  - SessionMetaData: creation time, timeout and last access boundaries.
  - SessionAttributes: the named values stored by the application.
  - ActivationListener / BindingListener: capabilities attribute values may implement.
*/
package session

package session

import (
	"context"
	"time"
)

// ImmutableSessionMetaData exposes the bookkeeping of a session without allowing changes.
type ImmutableSessionMetaData interface {
	// IsNew reports whether the session was created by the current request and not yet closed.
	IsNew() bool
	CreationTime() time.Time
	// LastAccessStartTime is derived from the creation time, never stored as an instant.
	LastAccessStartTime() time.Time
	LastAccessEndTime() time.Time
	MaxInactiveInterval() time.Duration
	// IsExpired reports whether the session went idle for longer than its timeout.
	// A zero timeout never expires.
	IsExpired(now time.Time) bool
}

// SessionMetaData is the mutable view of the session bookkeeping.
type SessionMetaData interface {
	ImmutableSessionMetaData

	// SetLastAccess records the boundaries of the last request that touched the session.
	SetLastAccess(start, end time.Time)

	// SetMaxInactiveInterval changes the session timeout. Negative values are stored as zero.
	SetMaxInactiveInterval(timeout time.Duration)
}

// ImmutableSessionAttributes is a read-only view of the session attributes.
type ImmutableSessionAttributes interface {
	// Names returns the attribute names in lexical order.
	Names() []string
	Get(name string) (any, bool)
}

// SessionAttributes is the mutable view of the session attributes.
type SessionAttributes interface {
	ImmutableSessionAttributes

	// Set binds value to name and returns the previous value, if any.
	// Setting a nil value is equivalent to Remove.
	Set(name string, value any) (any, error)

	// Remove unbinds name and returns the removed value, if any.
	Remove(name string) (any, error)
}

// ImmutableSession is a detached, point-in-time view of a session.
type ImmutableSession interface {
	ID() string
	IsValid() bool
	MetaData() ImmutableSessionMetaData
	Attributes() ImmutableSessionAttributes
}

// Session is a live handle to a session. Handles must be closed.
type Session interface {
	ID() string
	IsValid() bool
	MetaData() SessionMetaData
	Attributes() SessionAttributes

	// LocalContext returns node-local state attached to the session. It is never replicated.
	LocalContext() any

	// Invalidate destroys the session. It returns ErrSessionInvalid if the session
	// was already invalid.
	Invalidate(ctx context.Context) error

	// Close releases the handle and flushes pending changes to the backing store.
	Close(ctx context.Context) error
}

// Manager finds and creates sessions.
// Lookups return a nil session and a nil error when the session does not exist.
type Manager interface {
	FindSession(ctx context.Context, id string) (Session, error)
	CreateSession(ctx context.Context, id string) (Session, error)
	FindImmutableSession(ctx context.Context, id string) (ImmutableSession, error)
	CreateIdentifier() string
}

// ManagedMetaData is the metadata owned by one live session: the mutable bookkeeping
// plus validity and write-back.
type ManagedMetaData interface {
	SessionMetaData

	IsValid() bool
	// Invalidate reports whether this call transitioned the session to invalid.
	Invalidate() bool
	LocalContext() any
	// Close writes back pending changes.
	Close(ctx context.Context) error
}

// ManagedAttributes is the attribute map owned by one live session.
type ManagedAttributes interface {
	SessionAttributes

	// UnbindAll notifies every bound value that it left the session.
	UnbindAll()
	// Close passivates listeners and writes back pending changes.
	Close(ctx context.Context) error
}

package metadata

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTimeout is the session timeout assumed when none is recorded.
const DefaultTimeout = 30 * time.Minute

// CreationEntry holds the metadata fixed at creation time plus the timeout.
// The valid and new flags are node-local and never replicated.
type CreationEntry struct {
	creationTime time.Time
	timeout      atomic.Int64
	isNew        atomic.Bool
	valid        atomic.Bool
}

// NewCreationEntry creates a valid entry. The creation time is kept with millisecond precision.
func NewCreationEntry(creationTime time.Time) *CreationEntry {
	e := &CreationEntry{
		creationTime: time.UnixMilli(creationTime.UnixMilli()),
	}
	e.timeout.Store(int64(DefaultTimeout))
	e.valid.Store(true)
	return e
}

func (e *CreationEntry) CreationTime() time.Time {
	return e.creationTime
}

func (e *CreationEntry) Timeout() time.Duration {
	return time.Duration(e.timeout.Load())
}

// SetTimeout stores the timeout, clamping negative values to zero.
func (e *CreationEntry) SetTimeout(timeout time.Duration) {
	e.timeout.Store(int64(max(timeout, 0)))
}

func (e *CreationEntry) IsNew() bool {
	return e.isNew.Load()
}

// MarkNew flags the entry as created by the current request.
func (e *CreationEntry) MarkNew() {
	e.isNew.Store(true)
}

// ClearNew resets the new flag and reports whether it was set.
func (e *CreationEntry) ClearNew() bool {
	return e.isNew.CompareAndSwap(true, false)
}

func (e *CreationEntry) IsValid() bool {
	return e.valid.Load()
}

// Invalidate marks the entry invalid. Only the call performing the transition returns true.
func (e *CreationEntry) Invalidate() bool {
	return e.valid.CompareAndSwap(true, false)
}

// AccessEntry records the last access relative to the creation time rather than as
// absolute instants. Both durations are never negative.
type AccessEntry struct {
	mu            sync.RWMutex
	sinceCreation time.Duration
	lastAccess    time.Duration
}

// NewAccessEntry creates an access entry. Negative durations are clamped to zero.
func NewAccessEntry(sinceCreation, lastAccess time.Duration) *AccessEntry {
	e := &AccessEntry{}
	e.SetLastAccess(sinceCreation, lastAccess)
	return e
}

// SinceCreation is the time between creation and the start of the last access.
func (e *AccessEntry) SinceCreation() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sinceCreation
}

// LastAccess is the duration of the last access.
func (e *AccessEntry) LastAccess() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastAccess
}

// SetLastAccess stores both durations atomically with respect to readers.
func (e *AccessEntry) SetLastAccess(sinceCreation, lastAccess time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinceCreation = max(sinceCreation, 0)
	e.lastAccess = max(lastAccess, 0)
}

// Entry pairs the creation and access entries of one session with its local context slot.
type Entry struct {
	Creation *CreationEntry
	Access   *AccessEntry
	local    *localContext
}

// NewEntry composes an entry without a local context.
func NewEntry(creation *CreationEntry, access *AccessEntry) *Entry {
	return &Entry{Creation: creation, Access: access}
}

// LocalContext returns the node-local context of the session, creating it on first use.
// It returns nil when no local context factory was configured.
func (e *Entry) LocalContext() any {
	if e.local == nil {
		return nil
	}
	return e.local.get()
}

// localContext is the per-node slot of a session. A slot is evictable once no
// mutable view pins it and the session it belongs to has expired.
type localContext struct {
	get     func() any
	pins    atomic.Int32
	expires atomic.Int64 // unix nanos, 0 for never
}

func newLocalContext(factory func() any) *localContext {
	return &localContext{get: sync.OnceValue(factory)}
}

// touch records when the session of entry expires.
func (c *localContext) touch(entry *Entry) {
	md := NewCompositeMetaData(entry)
	var expires int64
	if timeout := md.MaxInactiveInterval(); timeout > 0 {
		expires = md.LastAccessEndTime().Add(timeout).UnixNano()
	}
	c.expires.Store(expires)
}

func (c *localContext) evictable(now time.Time) bool {
	expires := c.expires.Load()
	return c.pins.Load() <= 0 && expires != 0 && expires < now.UnixNano()
}

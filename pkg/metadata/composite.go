package metadata

import (
	"time"

	"github.com/aretw0/sessionkit/pkg/session"
)

var _ session.SessionMetaData = (*CompositeMetaData)(nil)

// CompositeMetaData merges a creation entry and an access entry behind the
// session.SessionMetaData contract.
type CompositeMetaData struct {
	creation *CreationEntry
	access   *AccessEntry
}

// NewCompositeMetaData creates the metadata view of entry.
func NewCompositeMetaData(entry *Entry) *CompositeMetaData {
	return &CompositeMetaData{
		creation: entry.Creation,
		access:   entry.Access,
	}
}

func (m *CompositeMetaData) IsNew() bool {
	return m.creation.IsNew()
}

func (m *CompositeMetaData) IsValid() bool {
	return m.creation.IsValid()
}

// Invalidate reports whether this call is the one that invalidated the session.
func (m *CompositeMetaData) Invalidate() bool {
	return m.creation.Invalidate()
}

func (m *CompositeMetaData) CreationTime() time.Time {
	return m.creation.CreationTime()
}

func (m *CompositeMetaData) LastAccessStartTime() time.Time {
	return m.creation.CreationTime().Add(m.access.SinceCreation())
}

func (m *CompositeMetaData) LastAccessEndTime() time.Time {
	return m.LastAccessStartTime().Add(m.access.LastAccess())
}

func (m *CompositeMetaData) MaxInactiveInterval() time.Duration {
	return m.creation.Timeout()
}

func (m *CompositeMetaData) IsExpired(now time.Time) bool {
	timeout := m.MaxInactiveInterval()
	return timeout > 0 && m.LastAccessEndTime().Add(timeout).Before(now)
}

// SetLastAccess stores the access as durations relative to the creation time.
func (m *CompositeMetaData) SetLastAccess(start, end time.Time) {
	creation := m.creation.CreationTime()
	var sinceCreation time.Duration
	if !start.Equal(creation) {
		sinceCreation = start.Sub(creation)
	}
	m.access.SetLastAccess(sinceCreation, end.Sub(start))
}

func (m *CompositeMetaData) SetMaxInactiveInterval(timeout time.Duration) {
	m.creation.SetTimeout(timeout)
}

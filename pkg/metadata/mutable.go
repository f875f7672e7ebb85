package metadata

import (
	"context"
	"time"

	"github.com/aretw0/sessionkit/pkg/ports"
	"github.com/aretw0/sessionkit/pkg/session"
)

var _ session.ManagedMetaData = (*MutableMetaData)(nil)

// MutableMetaData wraps a CompositeMetaData so that every state change is followed by
// a call to the mutator of the entry it touched. Reads never reach the mutators.
type MutableMetaData struct {
	*CompositeMetaData
	entry    *Entry
	creation ports.Mutator
	access   ports.Mutator
	flush    func(ctx context.Context) error
}

// NewMutableMetaData wraps entry. flush is invoked on Close to write back dirty entries
// and may be nil.
func NewMutableMetaData(entry *Entry, creation, access ports.Mutator, flush func(ctx context.Context) error) *MutableMetaData {
	return &MutableMetaData{
		CompositeMetaData: NewCompositeMetaData(entry),
		entry:             entry,
		creation:          creation,
		access:            access,
		flush:             flush,
	}
}

func (m *MutableMetaData) SetMaxInactiveInterval(timeout time.Duration) {
	m.CompositeMetaData.SetMaxInactiveInterval(timeout)
	m.creation.Mutate()
}

func (m *MutableMetaData) SetLastAccess(start, end time.Time) {
	m.CompositeMetaData.SetLastAccess(start, end)
	m.access.Mutate()
}

// LocalContext returns the node-local context of the session.
func (m *MutableMetaData) LocalContext() any {
	return m.entry.LocalContext()
}

// Close ends the first request of a new session and writes back dirty entries.
// Invalid sessions are not written back.
func (m *MutableMetaData) Close(ctx context.Context) error {
	m.entry.Creation.ClearNew()
	if !m.IsValid() || m.flush == nil {
		return nil
	}
	return m.flush(ctx)
}

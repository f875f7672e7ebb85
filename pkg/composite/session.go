package composite

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/sessionkit/pkg/ports"
	"github.com/aretw0/sessionkit/pkg/session"
)

// compositeSession delegates validity to its metadata and attribute changes to its
// attributes.
type compositeSession struct {
	id         string
	metaData   session.ManagedMetaData
	attributes session.ManagedAttributes
	remover    ports.Remover[string]
}

func (s *compositeSession) ID() string {
	return s.id
}

func (s *compositeSession) IsValid() bool {
	return s.metaData.IsValid()
}

func (s *compositeSession) MetaData() session.SessionMetaData {
	return s.metaData
}

func (s *compositeSession) Attributes() session.SessionAttributes {
	return s.attributes
}

func (s *compositeSession) LocalContext() any {
	return s.metaData.LocalContext()
}

func (s *compositeSession) Invalidate(ctx context.Context) error {
	if !s.metaData.Invalidate() {
		return session.ErrSessionInvalid
	}
	s.attributes.UnbindAll()
	if _, err := s.remover.Remove(ctx, s.id); err != nil {
		return fmt.Errorf("failed to remove session %s: %w", s.id, err)
	}
	return nil
}

func (s *compositeSession) Close(ctx context.Context) error {
	return errors.Join(s.attributes.Close(ctx), s.metaData.Close(ctx))
}

// sessionView is the read-only face of a live session.
type sessionView struct {
	s *compositeSession
}

func (v sessionView) ID() string                                     { return v.s.id }
func (v sessionView) IsValid() bool                                  { return v.s.IsValid() }
func (v sessionView) MetaData() session.ImmutableSessionMetaData     { return v.s.metaData }
func (v sessionView) Attributes() session.ImmutableSessionAttributes { return v.s.attributes }

type immutableSession struct {
	id         string
	metaData   session.ImmutableSessionMetaData
	attributes session.ImmutableSessionAttributes
}

func (s *immutableSession) ID() string                                     { return s.id }
func (s *immutableSession) IsValid() bool                                  { return true }
func (s *immutableSession) MetaData() session.ImmutableSessionMetaData     { return s.metaData }
func (s *immutableSession) Attributes() session.ImmutableSessionAttributes { return s.attributes }

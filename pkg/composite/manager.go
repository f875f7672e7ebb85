package composite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/sessionkit/internal/logging"
	"github.com/aretw0/sessionkit/pkg/observability"
	"github.com/aretw0/sessionkit/pkg/session"
	"github.com/google/uuid"
)

// DefaultTimeout is the idle timeout given to new sessions.
const DefaultTimeout = 30 * time.Minute

var _ session.Manager = (*Manager[int, int])(nil)

// Manager is the single-node session manager over a composite Factory.
// It hides expired sessions and removes them when found.
type Manager[M, A any] struct {
	factory        *Factory[M, A]
	defaultTimeout time.Duration
	identifiers    func() string
	clock          func() time.Time
	metrics        *observability.Recorder
	logger         *slog.Logger
}

// Option configures the Manager.
type Option func(*managerOptions)

type managerOptions struct {
	defaultTimeout time.Duration
	identifiers    func() string
	clock          func() time.Time
	metrics        *observability.Recorder
	logger         *slog.Logger
}

// WithDefaultTimeout sets the idle timeout of new sessions.
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(o *managerOptions) {
		o.defaultTimeout = timeout
	}
}

// WithIdentifierFactory replaces the random UUID session ids.
func WithIdentifierFactory(identifiers func() string) Option {
	return func(o *managerOptions) {
		o.identifiers = identifiers
	}
}

// WithClock overrides the time source used for expiration.
func WithClock(clock func() time.Time) Option {
	return func(o *managerOptions) {
		o.clock = clock
	}
}

// WithMetrics records session events.
func WithMetrics(recorder *observability.Recorder) Option {
	return func(o *managerOptions) {
		o.metrics = recorder
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(o *managerOptions) {
		o.logger = logger
	}
}

// NewManager creates a manager over factory.
func NewManager[M, A any](factory *Factory[M, A], opts ...Option) *Manager[M, A] {
	o := managerOptions{
		defaultTimeout: DefaultTimeout,
		identifiers:    uuid.NewString,
		clock:          time.Now,
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Manager[M, A]{
		factory:        factory,
		defaultTimeout: o.defaultTimeout,
		identifiers:    o.identifiers,
		clock:          o.clock,
		metrics:        o.metrics,
		logger:         o.logger,
	}
}

// CreateIdentifier returns a new session id.
func (m *Manager[M, A]) CreateIdentifier() string {
	return m.identifiers()
}

// CreateSession creates a session. It fails with session.ErrSessionExists when the id is taken.
func (m *Manager[M, A]) CreateSession(ctx context.Context, id string) (session.Session, error) {
	start := time.Now()
	entry, created, err := m.factory.CreateValue(ctx, id, m.defaultTimeout)
	m.metrics.ObserveSince("create", start)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, fmt.Errorf("session %s: %w", id, session.ErrSessionExists)
	}
	m.metrics.Event(observability.EventCreated)
	return m.factory.CreateSession(id, entry), nil
}

// FindSession returns the live session for id, or nil if it does not exist or expired.
// Expired sessions are invalidated on the way.
func (m *Manager[M, A]) FindSession(ctx context.Context, id string) (session.Session, error) {
	start := time.Now()
	entry, found, err := m.factory.FindValue(ctx, id)
	m.metrics.ObserveSince("find", start)
	if err != nil {
		return nil, err
	}
	if !found {
		m.metrics.Event(observability.EventNotFound)
		return nil, nil
	}

	if !m.factory.CreateImmutableSession(id, entry).MetaData().IsExpired(m.clock()) {
		m.metrics.Event(observability.EventFound)
		return m.factory.CreateSession(id, entry), nil
	}

	m.logger.Debug("Removing expired session", "session_id", id)
	m.metrics.Event(observability.EventExpired)
	if err := m.factory.Expire(ctx, id, entry); err != nil {
		m.logger.Warn("Failed to remove expired session", "session_id", id, "err", err)
	}
	return nil, nil
}

// FindImmutableSession returns a snapshot of the session, or nil if it does not exist
// or expired. It never modifies the store.
func (m *Manager[M, A]) FindImmutableSession(ctx context.Context, id string) (session.ImmutableSession, error) {
	entry, found, err := m.factory.TryValue(ctx, id)
	if err != nil || !found {
		return nil, err
	}
	s := m.factory.CreateImmutableSession(id, entry)
	if s.MetaData().IsExpired(m.clock()) {
		return nil, nil
	}
	return s, nil
}

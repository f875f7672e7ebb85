package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/sessionkit/internal/logging"
	"github.com/aretw0/sessionkit/pkg/observability"
	"github.com/aretw0/sessionkit/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed session lock outlives a crashed node.
const DefaultLockTTL = 30 * time.Second

// sharedEntry is the in-flight or resolved session of one id, shared by every handle.
type sharedEntry struct {
	done    chan struct{} // closed once session and err are set
	session Session
	err     error

	refs   int              // guarded by ConcurrentManager.mu
	unlock ports.UnlockFunc // releases the distributed lock (if any)
}

var _ Manager = (*ConcurrentManager)(nil)

// ConcurrentManager decorates a Manager so that concurrent callers asking for the same
// session id share one lookup and one Session. The decorated session is closed when the
// last handle referencing it is closed.
type ConcurrentManager struct {
	manager Manager

	mu       sync.Mutex              // Global lock for the map
	sessions map[string]*sharedEntry // Map of shared sessions

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	metrics *observability.Recorder
	logger  *slog.Logger // Logger for internal events (like deferred errors)
}

// Option configures the ConcurrentManager.
type Option func(*ConcurrentManager)

// WithLocker keeps each shared session locked cluster-wide while this node holds it.
// A non-positive ttl selects DefaultLockTTL.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(m *ConcurrentManager) {
		m.locker = locker
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithMetrics records shared sessions and lookup races.
func WithMetrics(recorder *observability.Recorder) Option {
	return func(m *ConcurrentManager) {
		m.metrics = recorder
	}
}

// WithLogger configures a logger for the ConcurrentManager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *ConcurrentManager) {
		m.logger = logger
	}
}

// NewConcurrentManager decorates manager.
func NewConcurrentManager(manager Manager, opts ...Option) *ConcurrentManager {
	m := &ConcurrentManager{
		manager:  manager,
		sessions: make(map[string]*sharedEntry),
		lockTTL:  DefaultLockTTL,
		logger:   logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FindSession returns a handle to the session, or nil if it does not exist. A session
// invalidated while the lookup was in flight is reported as missing.
func (m *ConcurrentManager) FindSession(ctx context.Context, id string) (Session, error) {
	s, err := m.share(ctx, id, m.manager.FindSession)
	if err != nil || s == nil {
		return nil, err
	}
	if !s.IsValid() {
		m.metrics.Event(observability.EventRaced)
		if err := s.Close(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return s, nil
}

// CreateSession creates a session and returns a handle to it. A caller racing with
// an in-flight lookup of the same id shares the session that lookup found, or creates
// its own once the lookup comes back empty. It never returns a nil session without error.
func (m *ConcurrentManager) CreateSession(ctx context.Context, id string) (Session, error) {
	for {
		s, err := m.share(ctx, id, m.create)
		if err != nil || s != nil {
			return s, err
		}
		// Joined a lookup that found nothing; its entry is already unlinked.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

func (m *ConcurrentManager) create(ctx context.Context, id string) (Session, error) {
	s, err := m.manager.CreateSession(ctx, id)
	if err == nil && s == nil {
		return nil, fmt.Errorf("session %s was not created", id)
	}
	return s, err
}

// FindImmutableSession is not shared; snapshots are independent.
func (m *ConcurrentManager) FindImmutableSession(ctx context.Context, id string) (ImmutableSession, error) {
	return m.manager.FindImmutableSession(ctx, id)
}

func (m *ConcurrentManager) CreateIdentifier() string {
	return m.manager.CreateIdentifier()
}

// Shared reports how many session ids currently have live handles.
func (m *ConcurrentManager) Shared() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// share joins the entry of id, or creates it and resolves it with fn.
func (m *ConcurrentManager) share(ctx context.Context, id string, fn func(context.Context, string) (Session, error)) (Session, error) {
	m.mu.Lock()
	entry, joined := m.sessions[id]
	if !joined {
		entry = &sharedEntry{done: make(chan struct{})}
		m.sessions[id] = entry
	}
	entry.refs++
	m.mu.Unlock()

	if joined {
		select {
		case <-entry.done:
		case <-ctx.Done():
			go m.abandon(context.WithoutCancel(ctx), id, entry)
			return nil, ctx.Err()
		}
	} else {
		m.resolve(ctx, id, entry, fn)
	}

	if entry.err != nil || entry.session == nil {
		if err := m.release(ctx, id, entry); err != nil {
			return nil, err
		}
		return nil, entry.err
	}
	return &sharedHandle{Session: entry.session, id: id, entry: entry, manager: m}, nil
}

// resolve runs fn for a new entry. Entries without a session are unlinked so the next
// caller starts over.
func (m *ConcurrentManager) resolve(ctx context.Context, id string, entry *sharedEntry, fn func(context.Context, string) (Session, error)) {
	defer close(entry.done)

	var unlock ports.UnlockFunc
	if m.locker != nil {
		var err error
		if unlock, err = m.locker.Lock(ctx, id, m.lockTTL); err != nil {
			entry.err = fmt.Errorf("failed to acquire distributed lock: %w", err)
			m.unlink(id, entry)
			return
		}
	}

	entry.session, entry.err = fn(ctx, id)
	if entry.err != nil || entry.session == nil {
		entry.session = nil
		m.unlink(id, entry)
		m.unlock(ctx, id, unlock)
		return
	}
	entry.unlock = unlock
	m.metrics.SessionShared()
}

// abandon drops the reference of a caller that stopped waiting.
func (m *ConcurrentManager) abandon(ctx context.Context, id string, entry *sharedEntry) {
	<-entry.done
	if err := m.release(ctx, id, entry); err != nil {
		m.logger.Warn("Failed to close abandoned session", "session_id", id, "err", err)
	}
}

// unlink detaches entry from id, so later callers do not join it.
func (m *ConcurrentManager) unlink(id string, entry *sharedEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[id] == entry {
		delete(m.sessions, id)
	}
}

// release drops one reference. The last reference closes the session and releases
// the distributed lock.
func (m *ConcurrentManager) release(ctx context.Context, id string, entry *sharedEntry) error {
	m.mu.Lock()
	entry.refs--
	last := entry.refs <= 0
	if last && m.sessions[id] == entry {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !last || entry.session == nil {
		return nil
	}
	m.metrics.SessionReleased()
	err := entry.session.Close(ctx)
	m.unlock(ctx, id, entry.unlock)
	return err
}

func (m *ConcurrentManager) unlock(ctx context.Context, id string, unlock ports.UnlockFunc) {
	if unlock == nil {
		return
	}
	if err := unlock(ctx); err != nil {
		m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
			"session_id", id,
			"err", err,
		)
	}
}

// sharedHandle is one caller's reference to a shared session.
type sharedHandle struct {
	Session
	id      string
	entry   *sharedEntry
	manager *ConcurrentManager
	closed  atomic.Bool
}

// Close drops this handle's reference. Only the first call has an effect.
func (h *sharedHandle) Close(ctx context.Context) error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	return h.manager.release(ctx, h.id, h.entry)
}

// Invalidate invalidates the session and closes this handle. Other handles keep the
// invalid session until they are closed, but no new caller can reach it.
func (h *sharedHandle) Invalidate(ctx context.Context) error {
	err := h.Session.Invalidate(ctx)
	if err == nil {
		h.manager.metrics.Event(observability.EventInvalidated)
	}
	h.manager.unlink(h.id, h.entry)
	if closeErr := h.Close(ctx); closeErr != nil {
		return errors.Join(err, closeErr)
	}
	return err
}

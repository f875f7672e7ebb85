package sessionkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/sessionkit/internal/logging"
	"github.com/aretw0/sessionkit/pkg/adapters/memory"
	"github.com/aretw0/sessionkit/pkg/adapters/redis"
	"github.com/aretw0/sessionkit/pkg/attributes"
	"github.com/aretw0/sessionkit/pkg/composite"
	"github.com/aretw0/sessionkit/pkg/metadata"
	"github.com/aretw0/sessionkit/pkg/notify"
	"github.com/aretw0/sessionkit/pkg/observability"
	"github.com/aretw0/sessionkit/pkg/persistence/middleware"
	"github.com/aretw0/sessionkit/pkg/ports"
	"github.com/aretw0/sessionkit/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"
)

// Store is a cache backend that opens its own batches.
type Store interface {
	ports.Cache
	ports.Batcher
}

// Kit is a ready-to-use session stack: a shared-handle manager over the composite
// session factory, backed by one store.
type Kit struct {
	// Manager hands out sessions. Handles of the same id are shared.
	Manager *session.ConcurrentManager
	// Batcher opens the batch a request should run in.
	Batcher ports.Batcher
	// Cache is the store as seen by the factories, encryption included.
	Cache ports.Cache

	store  Store
	client backend.UniversalClient
}

type options struct {
	store        Store
	client       backend.UniversalClient
	redisOpts    []redis.Option
	locking      bool
	lockTTL      time.Duration
	encryption   *middleware.EncryptionConfig
	scope        notify.Scope
	timeout      time.Duration
	registerer   prometheus.Registerer
	localContext func() any
	identifiers  func() string
	clock        func() time.Time
	logger       *slog.Logger
}

// Option configures New.
type Option func(*options)

// WithStore selects the backing store. The default is a fresh memory store.
func WithStore(store Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithRedis backs sessions with Redis through client. Kit.Close closes the client.
func WithRedis(client backend.UniversalClient, opts ...redis.Option) Option {
	return func(o *options) {
		o.client = client
		o.redisOpts = opts
	}
}

// WithLocking locks each session id cluster-wide while this node holds it.
// It requires WithRedis.
func WithLocking(ttl time.Duration) Option {
	return func(o *options) {
		o.locking = true
		o.lockTTL = ttl
	}
}

// WithEncryption encrypts every stored entry with AES-256-GCM.
func WithEncryption(activeKey []byte, fallbackKeys ...[]byte) Option {
	return func(o *options) {
		o.encryption = &middleware.EncryptionConfig{
			ActiveKey:    activeKey,
			FallbackKeys: fallbackKeys,
		}
	}
}

// WithNotifierScope selects how activation listeners are tracked.
func WithNotifierScope(scope notify.Scope) Option {
	return func(o *options) {
		o.scope = scope
	}
}

// WithDefaultTimeout sets the idle timeout of new sessions.
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// WithMetrics registers session metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithLocalContext attaches node-local state, built on first use, to each session.
func WithLocalContext(factory func() any) Option {
	return func(o *options) {
		o.localContext = factory
	}
}

// WithIdentifierFactory replaces the random UUID session ids.
func WithIdentifierFactory(identifiers func() string) Option {
	return func(o *options) {
		o.identifiers = identifiers
	}
}

// WithClock overrides the time source of creation and expiration.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New assembles a Kit.
func New(opts ...Option) (*Kit, error) {
	o := options{
		scope:   notify.ScopeSession,
		timeout: composite.DefaultTimeout,
		clock:   time.Now,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	store := o.store
	if o.client != nil {
		store = redis.NewFromClient(o.client, o.redisOpts...)
	}
	if store == nil {
		store = memory.NewStore()
	}
	if o.locking && o.client == nil {
		return nil, errors.New("session locking requires a redis store")
	}

	var cache ports.Cache = store
	if o.encryption != nil {
		if len(o.encryption.ActiveKey) != 32 {
			return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(o.encryption.ActiveKey))
		}
		cache = middleware.Chain(cache, middleware.NewEncryptionMiddleware(*o.encryption))
	}

	var metrics *observability.Recorder
	if o.registerer != nil {
		metrics = observability.NewRecorder(o.registerer)
	}

	metaDataOpts := []metadata.Option{
		metadata.WithClock(o.clock),
		metadata.WithLogger(o.logger),
	}
	if o.localContext != nil {
		metaDataOpts = append(metaDataOpts, metadata.WithLocalContext(o.localContext))
	}
	factory := composite.NewFactory[*metadata.Entry, attributes.Map](
		metadata.NewFactory(cache, metaDataOpts...),
		attributes.NewFactory(cache, attributes.WithNotifierFactory(notify.DefaultNotifierFactory(o.scope))),
		composite.WithFactoryLogger(o.logger),
	)

	managerOpts := []composite.Option{
		composite.WithDefaultTimeout(o.timeout),
		composite.WithClock(o.clock),
		composite.WithMetrics(metrics),
		composite.WithLogger(o.logger),
	}
	if o.identifiers != nil {
		managerOpts = append(managerOpts, composite.WithIdentifierFactory(o.identifiers))
	}

	sharedOpts := []session.Option{
		session.WithMetrics(metrics),
		session.WithLogger(o.logger),
	}
	if o.locking {
		prefix := redis.DefaultPrefix
		if c, ok := store.(*redis.Cache); ok {
			prefix = c.Prefix()
		}
		sharedOpts = append(sharedOpts, session.WithLocker(redis.NewLocker(o.client, prefix), o.lockTTL))
	}

	return &Kit{
		Manager: session.NewConcurrentManager(composite.NewManager(factory, managerOpts...), sharedOpts...),
		Batcher: store,
		Cache:   cache,
		store:   store,
		client:  o.client,
	}, nil
}

// ListSessions returns the ids of the stored sessions, expired ones included
// until they are found or evicted.
func (k *Kit) ListSessions(ctx context.Context) ([]string, error) {
	lister, ok := k.store.(ports.KeyLister)
	if !ok {
		return nil, errors.New("store cannot list sessions")
	}
	return lister.Keys(ctx, metadata.CreationKeyPrefix)
}

// InspectSession returns a snapshot of a live session, or nil. It never modifies the store.
func (k *Kit) InspectSession(ctx context.Context, id string) (session.ImmutableSession, error) {
	return k.Manager.FindImmutableSession(ctx, id)
}

// RemoveSession invalidates a session. It reports false when the session does not exist.
func (k *Kit) RemoveSession(ctx context.Context, id string) (removed bool, err error) {
	ctx, batch, err := k.Batcher.CreateBatch(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		err = errors.Join(err, batch.Close(ctx))
	}()

	s, err := k.Manager.FindSession(ctx, id)
	if err != nil || s == nil {
		return false, err
	}
	if err := s.Invalidate(ctx); err != nil {
		return false, errors.Join(err, s.Close(ctx))
	}
	return true, s.Close(ctx)
}

// Close releases the Redis client, if any.
func (k *Kit) Close() error {
	if k.client == nil {
		return nil
	}
	return k.client.Close()
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/sessionkit/internal/logging"
	"github.com/aretw0/sessionkit/pkg/attributes"
	"github.com/aretw0/sessionkit/pkg/ports"
	"github.com/aretw0/sessionkit/pkg/session"
	"github.com/go-chi/chi/v5"
)

// DefaultCookieName names the cookie carrying the session id.
const DefaultCookieName = "JSESSIONID"

// Server binds sessions to HTTP requests and serves a small session API.
type Server struct {
	manager session.Manager
	batcher ports.Batcher
	masker  *attributes.Masker
	cookie  string
	maxSize int64
	clock   func() time.Time
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithCookieName overrides DefaultCookieName.
func WithCookieName(name string) Option {
	return func(s *Server) {
		s.cookie = name
	}
}

// WithMasker hides matching attributes in GET /session responses.
func WithMasker(masker *attributes.Masker) Option {
	return func(s *Server) {
		s.masker = masker
	}
}

// WithMaxValueSize overrides DefaultMaxValueSize.
func WithMaxValueSize(size int64) Option {
	return func(s *Server) {
		s.maxSize = size
	}
}

// WithClock overrides the time source used for access times.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		s.clock = clock
	}
}

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a server over manager. Every request runs inside one batch of batcher.
func NewServer(manager session.Manager, batcher ports.Batcher, opts ...Option) *Server {
	s := &Server{
		manager: manager,
		batcher: batcher,
		cookie:  DefaultCookieName,
		maxSize: DefaultMaxValueSize,
		clock:   time.Now,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewHandler creates the session API handler.
func NewHandler(manager session.Manager, batcher ports.Batcher, opts ...Option) http.Handler {
	return NewServer(manager, batcher, opts...).Routes()
}

// Routes mounts the session API behind the session middleware.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Group(func(r chi.Router) {
		r.Use(s.Middleware)
		r.Get("/session", s.GetSession)
		r.Put("/session/attributes/{name}", s.PutAttribute)
		r.Delete("/session/attributes/{name}", s.DeleteAttribute)
		r.Post("/session/invalidate", s.InvalidateSession)
	})
	return r
}

type bindingKey struct{}

// binding is the session state of one request.
type binding struct {
	server  *Server
	ctx     context.Context
	w       http.ResponseWriter
	id      string
	start   time.Time
	looked  bool
	session session.Session
}

// Middleware opens a batch for the request and makes the request session available
// through FromRequest. The session handle is closed before the batch commits.
func (s *Server) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock()
		ctx, batch, err := s.batcher.CreateBatch(r.Context())
		if err != nil {
			http.Error(w, "Session store unavailable", http.StatusServiceUnavailable)
			s.logger.Error("Failed to open batch", "err", err)
			return
		}

		b := &binding{server: s, w: w, start: start}
		if c, err := r.Cookie(s.cookie); err == nil && c.Value != "" {
			b.id = c.Value
		}
		b.ctx = context.WithValue(ctx, bindingKey{}, b)

		defer func() {
			b.finish()
			if err := batch.Close(ctx); err != nil {
				s.logger.Error("Failed to commit session batch", "session_id", b.id, "err", err)
			}
		}()
		next.ServeHTTP(w, r.WithContext(b.ctx))
	})
}

// FromRequest returns the session of the request. Without a session, it returns nil
// unless create is set, in which case a session is created and its cookie written.
func FromRequest(r *http.Request, create bool) (session.Session, error) {
	b, ok := r.Context().Value(bindingKey{}).(*binding)
	if !ok {
		return nil, errors.New("request is not bound to a session")
	}
	return b.get(create)
}

// Invalidate destroys the request session and expires its cookie.
// It returns false when the request has no session.
func Invalidate(r *http.Request) (bool, error) {
	b, ok := r.Context().Value(bindingKey{}).(*binding)
	if !ok {
		return false, errors.New("request is not bound to a session")
	}
	s, err := b.get(false)
	if err != nil || s == nil {
		return false, err
	}
	b.session = nil
	b.expireCookie()

	err = s.Invalidate(b.ctx)
	if closeErr := s.Close(b.ctx); closeErr != nil {
		b.server.logger.Warn("Failed to close invalidated session", "session_id", s.ID(), "err", closeErr)
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *binding) get(create bool) (session.Session, error) {
	if b.session == nil && !b.looked && b.id != "" {
		b.looked = true
		s, err := b.server.manager.FindSession(b.ctx, b.id)
		if err != nil {
			return nil, err
		}
		b.session = s
	}
	if b.session != nil || !create {
		return b.session, nil
	}

	id := b.server.manager.CreateIdentifier()
	s, err := b.server.manager.CreateSession(b.ctx, id)
	if err != nil {
		return nil, err
	}
	b.id, b.looked, b.session = id, true, s
	http.SetCookie(b.w, &http.Cookie{
		Name:     b.server.cookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return s, nil
}

func (b *binding) expireCookie() {
	http.SetCookie(b.w, &http.Cookie{
		Name:     b.server.cookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// finish records the access and releases the handle.
func (b *binding) finish() {
	s := b.session
	if s == nil {
		return
	}
	b.session = nil
	if s.IsValid() {
		md := s.MetaData()
		start := b.start
		if md.IsNew() {
			start = md.CreationTime()
		}
		md.SetLastAccess(start, b.server.clock())
	}
	if err := s.Close(b.ctx); err != nil {
		b.server.logger.Error("Failed to close session", "session_id", s.ID(), "err", err)
	}
}

// View is the JSON form of a session.
type View struct {
	ID                  string         `json:"id"`
	New                 bool           `json:"new"`
	CreationTime        time.Time      `json:"creation_time"`
	LastAccessStartTime time.Time      `json:"last_access_start_time"`
	LastAccessEndTime   time.Time      `json:"last_access_end_time"`
	MaxInactiveInterval string         `json:"max_inactive_interval"`
	Attributes          map[string]any `json:"attributes"`
}

// NewView renders a session, hiding the attributes masker matches. masker may be nil.
func NewView(id string, md session.ImmutableSessionMetaData, attrs session.ImmutableSessionAttributes, masker *attributes.Masker) View {
	values := make(map[string]any)
	for _, name := range attrs.Names() {
		if v, ok := attrs.Get(name); ok {
			values[name] = v
		}
	}
	return View{
		ID:                  id,
		New:                 md.IsNew(),
		CreationTime:        md.CreationTime(),
		LastAccessStartTime: md.LastAccessStartTime(),
		LastAccessEndTime:   md.LastAccessEndTime(),
		MaxInactiveInterval: md.MaxInactiveInterval().String(),
		Attributes:          masker.Mask(values),
	}
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetSession handles the GET /session request.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := FromRequest(r, false)
	if err != nil {
		s.fail(w, "GetSession", err)
		return
	}
	if sess == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no session"})
		return
	}
	s.writeJSON(w, http.StatusOK, NewView(sess.ID(), sess.MetaData(), sess.Attributes(), s.masker))
}

// PutAttribute handles the PUT /session/attributes/{name} request. The body is the JSON value.
func (s *Server) PutAttribute(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := validateName(name); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		s.logger.Warn("PutAttribute: Name rejected", "err", err, "size", len(name))
		return
	}

	var value any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxSize)).Decode(&value); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Attribute value too large", http.StatusRequestEntityTooLarge)
			s.logger.Warn("PutAttribute: Value rejected", "err", err, "limit", tooLarge.Limit)
			return
		}
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("PutAttribute: Invalid request body", "err", err)
		return
	}

	sess, err := FromRequest(r, true)
	if err != nil {
		s.fail(w, "PutAttribute", err)
		return
	}
	previous, err := sess.Attributes().Set(name, value)
	if err != nil {
		s.fail(w, "PutAttribute", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"previous": previous})
}

// DeleteAttribute handles the DELETE /session/attributes/{name} request.
func (s *Server) DeleteAttribute(w http.ResponseWriter, r *http.Request) {
	sess, err := FromRequest(r, false)
	if err != nil {
		s.fail(w, "DeleteAttribute", err)
		return
	}
	if sess == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no session"})
		return
	}
	previous, err := sess.Attributes().Remove(chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, "DeleteAttribute", err)
		return
	}
	if previous == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such attribute"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"previous": previous})
}

// InvalidateSession handles the POST /session/invalidate request.
func (s *Server) InvalidateSession(w http.ResponseWriter, r *http.Request) {
	invalidated, err := Invalidate(r)
	if err != nil {
		s.fail(w, "InvalidateSession", err)
		return
	}
	if !invalidated {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no session"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, session.ErrSessionInvalid) {
		status = http.StatusConflict
	}
	http.Error(w, err.Error(), status)
	s.logger.Error(op+" failed", "err", err)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

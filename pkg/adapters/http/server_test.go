package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/sessionkit"
	sessionhttp "github.com/aretw0/sessionkit/pkg/adapters/http"
	"github.com/aretw0/sessionkit/pkg/attributes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// browser replays the session cookie like a client would.
type browser struct {
	t       *testing.T
	handler http.Handler
	cookie  *http.Cookie
}

func (b *browser) do(method, path, body string) *httptest.ResponseRecorder {
	b.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if b.cookie != nil {
		req.AddCookie(&http.Cookie{Name: b.cookie.Name, Value: b.cookie.Value})
	}
	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.Name != sessionhttp.DefaultCookieName {
			continue
		}
		if c.MaxAge < 0 {
			b.cookie = nil
		} else {
			b.cookie = c
		}
	}
	return rec
}

func (b *browser) view() sessionhttp.View {
	b.t.Helper()
	rec := b.do(http.MethodGet, "/session", "")
	require.Equal(b.t, http.StatusOK, rec.Code, rec.Body.String())
	var v sessionhttp.View
	require.NoError(b.t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func newBrowser(t *testing.T, opts ...sessionhttp.Option) *browser {
	t.Helper()
	kit, err := sessionkit.New()
	require.NoError(t, err)
	return &browser{t: t, handler: sessionhttp.NewHandler(kit.Manager, kit.Batcher, opts...)}
}

func TestHealth(t *testing.T) {
	b := newBrowser(t)
	rec := b.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGetSession_NoSession(t *testing.T) {
	b := newBrowser(t)
	rec := b.do(http.MethodGet, "/session", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Nil(t, b.cookie, "reading never creates a session")
}

func TestPutAttribute_CreatesSession(t *testing.T) {
	b := newBrowser(t)

	rec := b.do(http.MethodPut, "/session/attributes/user", `"alice"`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, b.cookie)
	assert.True(t, b.cookie.HttpOnly)

	v := b.view()
	assert.Equal(t, b.cookie.Value, v.ID)
	assert.False(t, v.New, "the session is no longer new once its first request completed")
	assert.Equal(t, "alice", v.Attributes["user"])
	assert.Equal(t, "30m0s", v.MaxInactiveInterval)

	rec = b.do(http.MethodPut, "/session/attributes/user", `"bob"`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"previous":"alice"}`, rec.Body.String())
}

func TestPutAttribute_StructuredValues(t *testing.T) {
	b := newBrowser(t)
	rec := b.do(http.MethodPut, "/session/attributes/cart", `{"items":["book","pen"],"total":12.5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	v := b.view()
	assert.Equal(t, map[string]any{"items": []any{"book", "pen"}, "total": 12.5}, v.Attributes["cart"])
}

func TestPutAttribute_InvalidBody(t *testing.T) {
	b := newBrowser(t)
	rec := b.do(http.MethodPut, "/session/attributes/user", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, b.cookie)
}

func TestDeleteAttribute(t *testing.T) {
	b := newBrowser(t)
	b.do(http.MethodPut, "/session/attributes/user", `"alice"`)

	rec := b.do(http.MethodDelete, "/session/attributes/user", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"previous":"alice"}`, rec.Body.String())

	rec = b.do(http.MethodDelete, "/session/attributes/user", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, b.view().Attributes)
}

func TestInvalidateSession(t *testing.T) {
	b := newBrowser(t)
	b.do(http.MethodPut, "/session/attributes/user", `"alice"`)
	stale := b.cookie

	rec := b.do(http.MethodPost, "/session/invalidate", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, b.cookie, "the cookie is expired")

	b.cookie = stale
	rec = b.do(http.MethodGet, "/session", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = b.do(http.MethodPost, "/session/invalidate", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSession_Masked(t *testing.T) {
	masker, err := attributes.NewMasker([]string{"(?i)password"})
	require.NoError(t, err)
	b := newBrowser(t, sessionhttp.WithMasker(masker))

	b.do(http.MethodPut, "/session/attributes/Password", `"hunter2"`)
	b.do(http.MethodPut, "/session/attributes/user", `"alice"`)

	v := b.view()
	assert.Equal(t, attributes.Masked, v.Attributes["Password"])
	assert.Equal(t, "alice", v.Attributes["user"])
}

func TestMiddleware_RecordsLastAccess(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	kit, err := sessionkit.New(sessionkit.WithClock(clock))
	require.NoError(t, err)
	b := &browser{t: t, handler: sessionhttp.NewHandler(kit.Manager, kit.Batcher, sessionhttp.WithClock(clock))}

	b.do(http.MethodPut, "/session/attributes/user", `"alice"`)

	now = now.Add(time.Minute)
	v := b.view()
	assert.True(t, v.CreationTime.Equal(v.LastAccessStartTime), "a new session's access starts at its creation")

	now = now.Add(time.Minute)
	v = b.view()
	assert.True(t, v.LastAccessStartTime.Equal(v.CreationTime.Add(time.Minute)), "got %s", v.LastAccessStartTime)
	assert.True(t, v.LastAccessEndTime.Equal(v.LastAccessStartTime))
}

func TestFromRequest_Unbound(t *testing.T) {
	_, err := sessionhttp.FromRequest(httptest.NewRequest(http.MethodGet, "/", nil), true)
	assert.Error(t, err)
}

func TestWithCookieName(t *testing.T) {
	kit, err := sessionkit.New()
	require.NoError(t, err)
	handler := sessionhttp.NewHandler(kit.Manager, kit.Batcher, sessionhttp.WithCookieName("SID"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/session/attributes/a", strings.NewReader("1")))
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "SID", cookies[0].Name)
}

func TestPutAttribute_RejectsNames(t *testing.T) {
	b := newBrowser(t)
	for _, path := range []string{
		"/session/attributes/bell%07",
		"/session/attributes/" + strings.Repeat("n", sessionhttp.MaxNameSize+1),
	} {
		rec := b.do(http.MethodPut, path, `"x"`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
	assert.Nil(t, b.cookie)
}

func TestPutAttribute_ValueTooLarge(t *testing.T) {
	b := newBrowser(t, sessionhttp.WithMaxValueSize(16))
	rec := b.do(http.MethodPut, "/session/attributes/blob", `"`+strings.Repeat("a", 32)+`"`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = b.do(http.MethodPut, "/session/attributes/blob", `"small"`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

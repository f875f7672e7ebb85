package composite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/sessionkit/pkg/adapters/memory"
	"github.com/aretw0/sessionkit/pkg/attributes"
	"github.com/aretw0/sessionkit/pkg/composite"
	"github.com/aretw0/sessionkit/pkg/metadata"
	"github.com/aretw0/sessionkit/pkg/ports"
	"github.com/aretw0/sessionkit/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newFactory(cache ports.Cache, clock func() time.Time) *composite.Factory[*metadata.Entry, attributes.Map] {
	return composite.NewFactory[*metadata.Entry, attributes.Map](
		metadata.NewFactory(cache, metadata.WithClock(clock)),
		attributes.NewFactory(cache),
	)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func exists(t *testing.T, store *memory.Store, key string) bool {
	t.Helper()
	_, found, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	return found
}

func TestFactory_CreateValue(t *testing.T) {
	store := memory.NewStore()
	factory := newFactory(store, fixedClock(epoch))
	ctx := context.Background()

	entry, created, err := factory.CreateValue(ctx, "s1", time.Hour)
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, time.Hour, entry.MetaData.Creation.Timeout())
	assert.Empty(t, entry.Attributes)
	assert.True(t, exists(t, store, "creation:s1"))
	assert.True(t, exists(t, store, "attributes:s1"))

	_, created, err = factory.CreateValue(ctx, "s1", time.Hour)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestFactory_CreateValueReplacesStaleAttributes(t *testing.T) {
	store := memory.NewStore()
	factory := newFactory(store, fixedClock(epoch))
	ctx := context.Background()

	data, err := attributes.GobMarshaller{}.Marshal(attributes.Map{"stale": "yes"})
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "attributes:s1", data))

	entry, created, err := factory.CreateValue(ctx, "s1", time.Hour)
	require.NoError(t, err)
	require.True(t, created)
	assert.Empty(t, entry.Attributes)

	found, ok, err := factory.FindValue(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, found.Attributes)
}

func TestFactory_OrphanedMetaData(t *testing.T) {
	store := memory.NewStore()
	factory := newFactory(store, fixedClock(epoch))
	ctx := context.Background()

	_, _, err := factory.CreateValue(ctx, "s1", time.Hour)
	require.NoError(t, err)
	_, err = store.Delete(ctx, "attributes:s1")
	require.NoError(t, err)

	_, found, err := factory.TryValue(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.True(t, exists(t, store, "creation:s1"), "read-only lookups leave orphans alone")

	_, found, err = factory.FindValue(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.False(t, exists(t, store, "creation:s1"), "orphaned metadata is purged")
	assert.False(t, exists(t, store, "access:s1"))
}

func TestFactory_Remove(t *testing.T) {
	store := memory.NewStore()
	factory := newFactory(store, fixedClock(epoch))
	ctx := context.Background()

	_, _, err := factory.CreateValue(ctx, "s1", time.Hour)
	require.NoError(t, err)

	removed, err := factory.Remove(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Zero(t, store.Len())

	removed, err = factory.Purge(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, removed)
}

var errBackend = errors.New("backend down")

type failingCache struct {
	ports.Cache
}

func (failingCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, errBackend
}

func TestFactory_StoreErrorsPropagate(t *testing.T) {
	factory := newFactory(failingCache{Cache: memory.NewStore()}, fixedClock(epoch))

	_, _, err := factory.FindValue(context.Background(), "s1")
	assert.ErrorIs(t, err, errBackend)

	_, _, err = factory.TryValue(context.Background(), "s1")
	assert.ErrorIs(t, err, errBackend)
}

// Listener records binding events.
type Listener struct {
	Events []string
}

func (l *Listener) ValueBound(s session.ImmutableSession, name string) {
	l.Events = append(l.Events, "bound:"+name)
}

func (l *Listener) ValueUnbound(s session.ImmutableSession, name string) {
	l.Events = append(l.Events, "unbound:"+name)
}

func TestSession_Lifecycle(t *testing.T) {
	store := memory.NewStore()
	factory := newFactory(store, fixedClock(epoch))
	ctx := context.Background()

	entry, _, err := factory.CreateValue(ctx, "s1", time.Hour)
	require.NoError(t, err)

	s := factory.CreateSession("s1", entry)
	assert.Equal(t, "s1", s.ID())
	assert.True(t, s.IsValid())
	assert.True(t, s.MetaData().IsNew())
	_, err = s.Attributes().Set("user", "alice")
	require.NoError(t, err)
	s.MetaData().SetLastAccess(epoch, epoch.Add(2*time.Second))
	require.NoError(t, s.Close(ctx))

	entry, found, err := factory.FindValue(ctx, "s1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, attributes.Map{"user": "alice"}, entry.Attributes)

	s = factory.CreateSession("s1", entry)
	assert.False(t, s.MetaData().IsNew())
	assert.True(t, s.MetaData().LastAccessEndTime().Equal(epoch.Add(2*time.Second)))
	require.NoError(t, s.Close(ctx))
}

func TestSession_Invalidate(t *testing.T) {
	store := memory.NewStore()
	factory := newFactory(store, fixedClock(epoch))
	ctx := context.Background()

	entry, _, err := factory.CreateValue(ctx, "s1", time.Hour)
	require.NoError(t, err)

	listener := &Listener{}
	s := factory.CreateSession("s1", entry)
	_, err = s.Attributes().Set("listener", listener)
	require.NoError(t, err)

	require.NoError(t, s.Invalidate(ctx))
	assert.False(t, s.IsValid())
	assert.Equal(t, []string{"bound:listener", "unbound:listener"}, listener.Events)
	assert.ErrorIs(t, s.Invalidate(ctx), session.ErrSessionInvalid)

	_, err = s.Attributes().Set("other", "x")
	assert.ErrorIs(t, err, session.ErrSessionInvalid)

	require.NoError(t, s.Close(ctx))
	assert.Zero(t, store.Len(), "an invalidated session is never written back")
}

func TestFactory_CreateImmutableSession(t *testing.T) {
	store := memory.NewStore()
	factory := newFactory(store, fixedClock(epoch))
	ctx := context.Background()

	entry, _, err := factory.CreateValue(ctx, "s1", time.Hour)
	require.NoError(t, err)
	entry.Attributes["k"] = "v"

	snapshot := factory.CreateImmutableSession("s1", entry)
	entry.Attributes["k"] = "changed"

	assert.Equal(t, "s1", snapshot.ID())
	assert.True(t, snapshot.IsValid())
	assert.True(t, snapshot.MetaData().CreationTime().Equal(epoch))
	v, ok := snapshot.Attributes().Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

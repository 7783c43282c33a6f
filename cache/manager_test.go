package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/schoolcache/testutil"
)

var standard = Config{TTL: 900 * time.Second, PersistLocally: true, Priority: PriorityMedium}

type classRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *testutil.FaultyStore, *testutil.ManualClock) {
	t.Helper()
	store := testutil.NewFaultyStore()
	clock := testutil.NewManualClock(time.Unix(1_700_000_000, 0))
	m, err := NewManager(store, append([]Option{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)
	return m, store, clock
}

func TestNewManager_RequiresStore(t *testing.T) {
	_, err := NewManager(nil)
	assert.Error(t, err)
}

func TestManager_TeacherClassesExpiry(t *testing.T) {
	ctx := context.Background()
	m, store, clock := newTestManager(t)
	scope := ForUser("t1")
	classes := []classRef{{ID: "c1", Name: "Class X"}}

	m.Set(ctx, "teacher_classes", classes, standard, scope)

	got, ok := GetAs[[]classRef](ctx, m, "teacher_classes", standard, scope)
	require.True(t, ok)
	assert.Equal(t, classes, got)

	clock.Advance(901 * time.Second)

	stats := m.GetStats(ctx)
	assert.Equal(t, 1, stats.TotalKeys)
	assert.Equal(t, 1, stats.ExpiredKeys, "stats report the entry as expired before any sweep")

	_, ok = m.Get(ctx, "teacher_classes", standard, scope)
	assert.False(t, ok)
	_, present := store.Peek("schoolcache:teacher_classes:user:t1")
	assert.False(t, present, "expired entry is deleted on read")
	assert.Equal(t, 0, m.GetStats(ctx).TotalKeys)
}

func TestManager_ExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	m, _, clock := newTestManager(t)

	m.Set(ctx, "k", 1, standard, Scope{})
	clock.Advance(900*time.Second - time.Millisecond)
	_, ok := m.Get(ctx, "k", standard, Scope{})
	assert.True(t, ok)

	clock.Advance(time.Millisecond)
	_, ok = m.Get(ctx, "k", standard, Scope{})
	assert.False(t, ok)
}

func TestManager_ShorterReadTTL(t *testing.T) {
	ctx := context.Background()
	m, _, clock := newTestManager(t)

	m.Set(ctx, "k", "v", standard, Scope{})
	clock.Advance(2 * time.Minute)

	_, ok := m.Get(ctx, "k", Config{TTL: time.Hour, PersistLocally: true}, Scope{})
	assert.True(t, ok, "a longer read policy cannot extend the stored window")

	_, ok = m.Get(ctx, "k", Config{TTL: time.Minute, PersistLocally: true}, Scope{})
	assert.False(t, ok)
}

func TestManager_NamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	m.Set(ctx, "k", "for-a", standard, ForUser("A"))
	_, ok := m.Get(ctx, "k", standard, ForUser("B"))
	assert.False(t, ok)
	_, ok = m.Get(ctx, "k", standard, Scope{})
	assert.False(t, ok)

	m.Set(ctx, "k", "s1", standard, Scope{SchoolID: "s1"})
	raw, ok := m.Get(ctx, "k", standard, Scope{SchoolID: "s1"})
	require.True(t, ok)
	assert.JSONEq(t, `"s1"`, string(raw))
	_, ok = m.Get(ctx, "k", standard, Scope{SchoolID: "s2"})
	assert.False(t, ok)
}

func TestManager_SetSkips(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestManager(t)

	m.Set(ctx, "session", 1, Config{TTL: time.Minute, PersistLocally: false}, Scope{})
	m.Set(ctx, "zero", 1, Config{PersistLocally: true}, Scope{})
	m.Set(ctx, "", 1, standard, Scope{})
	m.Set(ctx, "chan", make(chan int), standard, Scope{})

	assert.Equal(t, 0, store.Len())
	assert.Equal(t, 0, store.Calls(testutil.OpSet))
}

func TestManager_NullIsAValue(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	m.Set(ctx, "empty", nil, standard, Scope{})
	raw, ok := m.Get(ctx, "empty", standard, Scope{})
	require.True(t, ok)
	assert.Equal(t, "null", string(raw))
}

func TestManager_OverwriteRefreshesTimestamp(t *testing.T) {
	ctx := context.Background()
	m, _, clock := newTestManager(t)

	m.Set(ctx, "k", 1, standard, Scope{})
	clock.Advance(800 * time.Second)
	m.Set(ctx, "k", 2, standard, Scope{})
	clock.Advance(800 * time.Second)

	raw, ok := m.Get(ctx, "k", standard, Scope{})
	require.True(t, ok)
	assert.Equal(t, "2", string(raw))
}

func TestManager_CorruptAndForeignVersion(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestManager(t)

	store.Inject("schoolcache:bad", "{not json")
	_, ok := m.Get(ctx, "bad", standard, Scope{})
	assert.False(t, ok)
	_, present := store.Peek("schoolcache:bad")
	assert.False(t, present)

	old, err := NewManager(store, WithSchemaVersion("0"))
	require.NoError(t, err)
	old.Set(ctx, "k", 1, standard, Scope{})
	_, ok = m.Get(ctx, "k", standard, Scope{})
	assert.False(t, ok)
	assert.Equal(t, int64(2), m.Counters().Expired)
}

func TestGetAs_TypeMismatchRemoves(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestManager(t)

	m.Set(ctx, "k", "a string", standard, Scope{})
	_, ok := GetAs[[]classRef](ctx, m, "k", standard, Scope{})
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestManager_StoreFaultsDegrade(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestManager(t)
	boom := errors.New("storage exploded")

	m.Set(ctx, "k", 1, standard, ForUser("t1"))

	for _, op := range []testutil.Op{
		testutil.OpGet, testutil.OpSet, testutil.OpRemove, testutil.OpKeys,
		testutil.OpMultiGet, testutil.OpMultiSet, testutil.OpMultiRemove,
	} {
		store.FailOn(op, boom)
	}

	assert.NotPanics(t, func() {
		_, ok := m.Get(ctx, "k", standard, ForUser("t1"))
		assert.False(t, ok)
		m.Set(ctx, "k", 2, standard, Scope{})
		m.Remove(ctx, "k", Scope{})
		assert.Equal(t, 0, m.ClearUserCache(ctx, "t1"))
		assert.Equal(t, 0, m.ClearAll(ctx))
		assert.Equal(t, 0, m.ClearPattern(ctx, "k", Scope{}))
		assert.Equal(t, Stats{IsOnline: true}, m.GetStats(ctx))
		assert.Equal(t, CleanupResult{}, m.CleanupExpired(ctx))
		assert.Equal(t, 0, m.BatchSet(ctx, []BatchItem{{Key: "a", Data: 1, Config: standard}}))
		res := m.BatchGet(ctx, []BatchKey{{Key: "a", Config: standard}})
		assert.False(t, res[0].Found)
	})
	assert.Positive(t, m.Counters().StoreErrors)

	store.Heal()
	_, ok := m.Get(ctx, "k", standard, ForUser("t1"))
	assert.True(t, ok, "data written before the outage is still served")
}

func TestManager_RemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestManager(t)

	m.Set(ctx, "k", 1, standard, Scope{})
	m.Remove(ctx, "k", Scope{})
	m.Remove(ctx, "k", Scope{})
	assert.Equal(t, 0, store.Len())
}

func TestManager_ClearUserCache(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestManager(t)

	m.Set(ctx, "classes", 1, standard, ForUser("t1"))
	m.Set(ctx, "classes", 1, standard, Scope{UserID: "t1", SchoolID: "s1"})
	m.Set(ctx, "assignments", 1, standard, ForUser("t1"))
	m.Set(ctx, "classes", 1, standard, ForUser("t10"))
	m.Set(ctx, "classes", 1, standard, Scope{})
	store.Inject("other:classes:user:t1", "x")

	assert.Equal(t, 3, m.ClearUserCache(ctx, "t1"))

	_, ok := m.Get(ctx, "classes", standard, ForUser("t10"))
	assert.True(t, ok)
	_, ok = m.Get(ctx, "classes", standard, Scope{})
	assert.True(t, ok)
	_, ok = store.Peek("other:classes:user:t1")
	assert.True(t, ok, "foreign namespaces are untouched")

	assert.Equal(t, 0, m.ClearUserCache(ctx, ""))
}

func TestManager_ClearPattern(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	m.Set(ctx, "class:1:students", 1, standard, Scope{SchoolID: "s1"})
	m.Set(ctx, "class:1:grades", 1, standard, Scope{SchoolID: "s1"})
	m.Set(ctx, "class:1:students", 1, standard, Scope{SchoolID: "s2"})
	m.Set(ctx, "class:2:students", 1, standard, Scope{SchoolID: "s1"})

	assert.Equal(t, 2, m.ClearPattern(ctx, "class:1:", Scope{SchoolID: "s1"}))
	_, ok := m.Get(ctx, "class:1:students", standard, Scope{SchoolID: "s2"})
	assert.True(t, ok)
	assert.Equal(t, 2, m.ClearPattern(ctx, "class:", Scope{}))
}

func TestManager_ClearAllKeepsForeignKeys(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestManager(t, WithNamespace("app"))

	m.Set(ctx, "a", 1, standard, Scope{})
	m.Set(ctx, "b", 1, standard, ForUser("u"))
	store.Inject("settings:theme", "dark")

	assert.Equal(t, 2, m.ClearAll(ctx))
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, "app", m.Namespace())
	assert.Equal(t, "app:a:user:u", m.KeyFor("a", ForUser("u")))
}

func TestManager_Counters(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)

	m.Set(ctx, "k", json.RawMessage(`{"a":1}`), standard, Scope{})
	m.Get(ctx, "k", standard, Scope{})
	m.Get(ctx, "missing", standard, Scope{})

	c := m.Counters()
	assert.Equal(t, int64(1), c.Hits)
	assert.Equal(t, int64(1), c.Misses)
	assert.Equal(t, int64(1), c.Sets)
	assert.InDelta(t, 0.5, c.HitRatio, 0.001)
}

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/schoolcache/testutil"
)

func TestManager_BatchRoundTripPreservesOrder(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestManager(t)
	store.ShuffleMultiGet(true)

	var items []BatchItem
	var keys []BatchKey
	for i := 0; i < 20; i++ {
		k := fmt.Sprintf("student:%d", i)
		items = append(items, BatchItem{Key: k, Data: i, Config: standard, Scope: Scope{SchoolID: "s1"}})
		keys = append(keys, BatchKey{Key: k, Config: standard, Scope: Scope{SchoolID: "s1"}})
	}
	items = append(items, BatchItem{Key: "skipped", Data: 1, Config: Config{TTL: time.Minute}})

	assert.Equal(t, 20, m.BatchSet(ctx, items))
	assert.Equal(t, 1, store.Calls(testutil.OpMultiSet))

	keys = append([]BatchKey{{Key: "missing", Config: standard}}, keys...)
	results := m.BatchGet(ctx, keys)
	require.Len(t, results, 21)
	assert.False(t, results[0].Found)
	for i, r := range results[1:] {
		assert.Equal(t, fmt.Sprintf("student:%d", i), r.Key)
		require.True(t, r.Found)
		assert.Equal(t, fmt.Sprint(i), string(r.Data))
	}
	assert.Equal(t, 1, store.Calls(testutil.OpMultiGet))
}

func TestManager_BatchGetIsolatesCorruptEntry(t *testing.T) {
	ctx := context.Background()
	m, store, clock := newTestManager(t)

	m.BatchSet(ctx, []BatchItem{
		{Key: "a", Data: "A", Config: standard},
		{Key: "c", Data: "C", Config: Config{TTL: time.Second, PersistLocally: true}},
	})
	store.Inject("schoolcache:b", "garbage")
	clock.Advance(2 * time.Second)

	results := m.BatchGet(ctx, []BatchKey{
		{Key: "a", Config: standard},
		{Key: "b", Config: standard},
		{Key: "c", Config: standard},
		{Key: "", Config: standard},
	})
	require.Len(t, results, 4)
	assert.True(t, results[0].Found)
	assert.JSONEq(t, `"A"`, string(results[0].Data))
	assert.False(t, results[1].Found)
	assert.False(t, results[2].Found)
	assert.False(t, results[3].Found)

	assert.Equal(t, 1, store.Len(), "corrupt and expired entries are removed")
}

func TestManager_BatchEmpty(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestManager(t)

	assert.Equal(t, 0, m.BatchSet(ctx, nil))
	assert.Empty(t, m.BatchGet(ctx, nil))
	assert.Equal(t, 0, store.Calls(testutil.OpMultiGet))
}

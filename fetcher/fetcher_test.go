package fetcher

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/schoolcache/cache"
	"github.com/c360/schoolcache/errors"
	"github.com/c360/schoolcache/metric"
	"github.com/c360/schoolcache/pkg/retry"
	"github.com/c360/schoolcache/testutil"
)

var standard = cache.Config{TTL: 15 * time.Minute, PersistLocally: true, Priority: cache.PriorityMedium}

func newTestFetcher(t *testing.T, opts ...Option) (*Fetcher, *testutil.ManualClock) {
	t.Helper()
	clock := testutil.NewManualClock(time.Unix(1_700_000_000, 0))
	m, err := cache.NewManager(testutil.NewFaultyStore(), cache.WithClock(clock.Now))
	require.NoError(t, err)
	f, err := New(m, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f, clock
}

type countingRemote[T any] struct {
	calls atomic.Int32
	value T
	err   error
}

func (r *countingRemote[T]) fetch(context.Context) (T, error) {
	r.calls.Add(1)
	if r.err != nil {
		var zero T
		return zero, r.err
	}
	return r.value, nil
}

func TestNew_RequiresManager(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestFetch_MissThenHit(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFetcher(t)
	remote := &countingRemote[[]string]{value: []string{"Class X"}}
	req := Request{Key: "teacher_classes", Scope: cache.ForUser("t1"), Config: standard}

	first := Fetch(ctx, f, req, remote.fetch)
	require.NoError(t, first.Err)
	assert.False(t, first.FromCache)
	assert.Equal(t, []string{"Class X"}, first.Data)
	assert.Empty(t, first.Error())

	second := Fetch(ctx, f, req, remote.fetch)
	assert.True(t, second.FromCache)
	assert.Equal(t, []string{"Class X"}, second.Data)
	assert.Equal(t, int32(1), remote.calls.Load(), "remote is never invoked on a hit")
}

func TestFetch_ExpiryRefetches(t *testing.T) {
	ctx := context.Background()
	f, clock := newTestFetcher(t)
	remote := &countingRemote[int]{value: 7}
	req := Request{Key: "k", Config: standard}

	Fetch(ctx, f, req, remote.fetch)
	clock.Advance(16 * time.Minute)
	res := Fetch(ctx, f, req, remote.fetch)
	assert.False(t, res.FromCache)
	assert.Equal(t, int32(2), remote.calls.Load())
}

func TestFetch_ForceRefreshBypassesCache(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFetcher(t)
	req := Request{Key: "k", Config: standard}

	Fetch(ctx, f, req, (&countingRemote[string]{value: "old"}).fetch)

	req.ForceRefresh = true
	fresh := &countingRemote[string]{value: "new"}
	res := Fetch(ctx, f, req, fresh.fetch)
	assert.False(t, res.FromCache)
	assert.Equal(t, "new", res.Data)
	assert.Equal(t, int32(1), fresh.calls.Load())

	req.ForceRefresh = false
	cached := Fetch(ctx, f, req, fresh.fetch)
	assert.True(t, cached.FromCache)
	assert.Equal(t, "new", cached.Data)
}

func TestFetch_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFetcher(t)
	req := Request{Key: "k", Config: standard}

	failing := &countingRemote[string]{err: stderrors.New("backend down")}
	res := Fetch(ctx, f, req, failing.fetch)
	assert.Equal(t, "backend down", res.Error())
	assert.Empty(t, res.Data)
	assert.False(t, res.FromCache)

	Fetch(ctx, f, req, failing.fetch)
	assert.Equal(t, int32(2), failing.calls.Load(), "errors never short-circuit later calls")

	Fetch(ctx, f, req, (&countingRemote[string]{value: "good"}).fetch)
	req.ForceRefresh = true
	forced := Fetch(ctx, f, req, failing.fetch)
	assert.Error(t, forced.Err)

	req.ForceRefresh = false
	stale := Fetch(ctx, f, req, failing.fetch)
	assert.True(t, stale.FromCache)
	assert.Equal(t, "good", stale.Data, "a failed refresh leaves the prior value servable")
}

func TestFetch_EmptyResultIsCached(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFetcher(t)
	req := Request{Key: "grades", Config: standard}

	remote := &countingRemote[[]int]{value: nil}
	Fetch(ctx, f, req, remote.fetch)
	res := Fetch(ctx, f, req, remote.fetch)
	assert.True(t, res.FromCache)
	assert.Nil(t, res.Data)
	assert.Equal(t, int32(1), remote.calls.Load())
}

func TestFetch_SessionPresetNeverPersists(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFetcher(t)
	req := Request{Key: "screen", Config: cache.DefaultPresets().Get(cache.PresetSession)}

	remote := &countingRemote[int]{value: 1}
	Fetch(ctx, f, req, remote.fetch)
	Fetch(ctx, f, req, remote.fetch)
	assert.Equal(t, int32(2), remote.calls.Load())
}

func TestFetch_Deduplication(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFetcher(t, WithDeduplication())
	req := Request{Key: "k", Config: standard}

	release := make(chan struct{})
	var calls atomic.Int32
	remote := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]Result[int], 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Fetch(ctx, f, req, remote)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, 42, r.Data)
	}
}

func TestFetch_ForceRefreshBypassesInFlightCall(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFetcher(t, WithDeduplication())
	req := Request{Key: "k", Config: standard}

	started := make(chan struct{})
	release := make(chan struct{})
	slow := func(context.Context) (int, error) {
		close(started)
		<-release
		return 1, nil
	}

	done := make(chan Result[int], 1)
	go func() { done <- Fetch(ctx, f, req, slow) }()
	<-started

	fresh := &countingRemote[int]{value: 2}
	forced := req
	forced.ForceRefresh = true
	res := Fetch(ctx, f, forced, fresh.fetch)
	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.Data)
	assert.Equal(t, int32(1), fresh.calls.Load())

	close(release)
	assert.Equal(t, 1, (<-done).Data)

	cached := Fetch(ctx, f, req, fresh.fetch)
	assert.True(t, cached.FromCache)
	assert.Equal(t, 2, cached.Data, "the older shared call does not overwrite the refresh")
}

func TestFetch_SharedCallOutlivesStartingCaller(t *testing.T) {
	f, _ := newTestFetcher(t, WithDeduplication())
	req := Request{Key: "k", Config: standard}

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	remote := func(ctx context.Context) (int, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		select {
		case <-release:
			return 42, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leader := make(chan Result[int], 1)
	go func() { leader <- Fetch(leaderCtx, f, req, remote) }()
	<-started

	follower := make(chan Result[int], 1)
	go func() { follower <- Fetch(context.Background(), f, req, remote) }()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, (<-leader).Err, context.Canceled)

	close(release)
	res := <-follower
	require.NoError(t, res.Err)
	assert.Equal(t, 42, res.Data)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_RetryTransient(t *testing.T) {
	ctx := context.Background()
	f, _ := newTestFetcher(t, WithRetry(retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}))

	var calls atomic.Int32
	flaky := func(context.Context) (string, error) {
		if calls.Add(1) < 3 {
			return "", errors.ErrConnectionTimeout
		}
		return "ok", nil
	}
	res := Fetch(ctx, f, Request{Key: "flaky", Config: standard}, flaky)
	require.NoError(t, res.Err)
	assert.Equal(t, "ok", res.Data)
	assert.Equal(t, int32(3), calls.Load())

	calls.Store(0)
	invalid := func(context.Context) (string, error) {
		calls.Add(1)
		return "", errors.WrapInvalid(errors.ErrInvalidData, "test", "remote", "bad request")
	}
	res = Fetch(ctx, f, Request{Key: "invalid", Config: standard}, invalid)
	assert.Error(t, res.Err)
	assert.Equal(t, int32(1), calls.Load(), "invalid errors are not retried")
}

func TestFetch_Metrics(t *testing.T) {
	ctx := context.Background()
	reg := metric.NewMetricsRegistry()
	f, _ := newTestFetcher(t, WithMetrics(reg, "fetch_test"))
	req := Request{Key: "k", Config: standard}

	Fetch(ctx, f, req, (&countingRemote[int]{err: stderrors.New("x")}).fetch)
	Fetch(ctx, f, req, (&countingRemote[int]{value: 1}).fetch)
	Fetch(ctx, f, req, (&countingRemote[int]{value: 1}).fetch)

	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.hits))
	assert.Equal(t, 2.0, promtest.ToFloat64(f.metrics.misses))
	assert.Equal(t, 2.0, promtest.ToFloat64(f.metrics.remoteCalls))
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.remoteErrors))
}

package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/c360/schoolcache/metric"
)

type testWork struct {
	id   int
	fail bool
}

func TestNewPool_Defaults(t *testing.T) {
	noop := func(context.Context, testWork) error { return nil }

	pool := NewPool(5, 100, noop)
	assert.Equal(t, 5, pool.workers)
	assert.Equal(t, 100, pool.queueSize)

	pool = NewPool(0, 0, noop)
	assert.Equal(t, 10, pool.workers)
	assert.Equal(t, 1000, pool.queueSize)

	assert.PanicsWithValue(t, ErrNilProcessor, func() {
		NewPool[testWork](1, 1, nil)
	})
}

func TestPool_Lifecycle(t *testing.T) {
	pool := NewPool(2, 10, func(context.Context, testWork) error { return nil })

	assert.ErrorIs(t, pool.Submit(testWork{}), ErrPoolNotStarted)

	ctx := context.Background()
	require.NoError(t, pool.Start(ctx))
	assert.ErrorIs(t, pool.Start(ctx), ErrPoolAlreadyStarted)

	require.NoError(t, pool.Stop(time.Second))
	assert.ErrorIs(t, pool.Submit(testWork{}), ErrPoolStopped)
	assert.ErrorIs(t, pool.SubmitWait(ctx, testWork{}), ErrPoolStopped)
	assert.NoError(t, pool.Stop(time.Second))
}

func TestPool_StopDrainsQueuedWork(t *testing.T) {
	var done atomic.Int64
	pool := NewPool(2, 50, func(context.Context, testWork) error {
		time.Sleep(time.Millisecond)
		done.Add(1)
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 20; i++ {
		require.NoError(t, pool.SubmitWait(context.Background(), testWork{id: i}))
	}
	require.NoError(t, pool.Stop(5*time.Second))

	assert.Equal(t, int64(20), done.Load())
	stats := pool.Stats()
	assert.Equal(t, int64(20), stats.Submitted)
	assert.Equal(t, int64(20), stats.Processed)
}

func TestPool_CountsFailures(t *testing.T) {
	pool := NewPool(1, 10, func(_ context.Context, w testWork) error {
		if w.fail {
			return errors.New("backend rejected")
		}
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	require.NoError(t, pool.Submit(testWork{id: 1}))
	require.NoError(t, pool.Submit(testWork{id: 2, fail: true}))
	require.NoError(t, pool.Stop(time.Second))

	stats := pool.Stats()
	assert.Equal(t, int64(2), stats.Processed)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestPool_QueueFull(t *testing.T) {
	release := make(chan struct{})
	pool := NewPool(1, 1, func(context.Context, testWork) error {
		<-release
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	// first item occupies the worker, second fills the queue
	require.NoError(t, pool.Submit(testWork{id: 1}))
	require.Eventually(t, func() bool { return pool.Stats().QueueDepth == 0 }, time.Second, time.Millisecond)
	require.NoError(t, pool.Submit(testWork{id: 2}))
	assert.ErrorIs(t, pool.Submit(testWork{id: 3}), ErrQueueFull)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.SubmitWait(ctx, testWork{id: 4}), context.DeadlineExceeded)

	close(release)
	require.NoError(t, pool.Stop(time.Second))
	assert.Equal(t, int64(1), pool.Stats().Dropped)
}

func TestPool_RateLimit(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(20*time.Millisecond), 1)
	pool := NewPool(4, 10, func(context.Context, testWork) error { return nil },
		WithRateLimit[testWork](limiter))
	require.NoError(t, pool.Start(context.Background()))

	start := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, pool.Submit(testWork{id: i}))
	}
	require.NoError(t, pool.Stop(5*time.Second))

	// one token up front, three more at 20ms spacing
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestPool_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	pool := NewPool(1, 10, func(context.Context, testWork) error { return nil },
		WithMetricsRegistry[testWork](registry, "warm"))
	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Submit(testWork{}))
	require.NoError(t, pool.Stop(time.Second))

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["warm_processed_total"])
	assert.True(t, names["warm_submitted_total"])
}

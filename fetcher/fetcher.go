package fetcher

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/c360/schoolcache/cache"
	"github.com/c360/schoolcache/errors"
	"github.com/c360/schoolcache/metric"
	"github.com/c360/schoolcache/pkg/retry"
	"github.com/c360/schoolcache/pkg/worker"
)

// Request describes one cached read.
type Request struct {
	Key          string
	Scope        cache.Scope
	Config       cache.Config
	ForceRefresh bool
}

// Result is the outcome of Fetch. Data is the zero value when Err is set.
type Result[T any] struct {
	Data      T
	Err       error
	FromCache bool
}

// Error returns the error message, or "" on success.
func (r Result[T]) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Fetcher binds the fetch contract to a cache manager.
type Fetcher struct {
	cache   *cache.Manager
	logger  *slog.Logger
	metrics *fetchMetrics

	dedup  bool
	flight singleflight.Group
	gens   sync.Map // physical key -> *atomic.Uint64, bumped by forced refreshes

	retry    *retry.Config
	registry *metric.MetricsRegistry
	prefix   string

	warmWorkers int
	warmLimiter *rate.Limiter
	warmOnce    sync.Once
	warmPool    *worker.Pool[warmJob]
	warmCancel  context.CancelFunc
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithMetrics exports fetch and warm-pool metrics under prefix.
func WithMetrics(registry *metric.MetricsRegistry, prefix string) Option {
	return func(f *Fetcher) {
		if registry != nil && prefix != "" {
			f.registry = registry
			f.prefix = prefix
		}
	}
}

// WithDeduplication collapses concurrent misses for the same physical key
// into one remote call. The shared call is not cancelled when the caller that
// started it gives up; each caller stops waiting on its own context. Forced
// refreshes never join a shared call, and a shared call overtaken by a forced
// refresh does not store its result.
func WithDeduplication() Option {
	return func(f *Fetcher) {
		f.dedup = true
	}
}

// WithRetry retries transient remote errors. Unless cfg.Retryable is set,
// errors.IsTransient decides what is transient.
func WithRetry(cfg retry.Config) Option {
	return func(f *Fetcher) {
		if cfg.Retryable == nil {
			cfg.Retryable = errors.IsTransient
		}
		f.retry = &cfg
	}
}

// WithWarmWorkers sets how many warm tasks run concurrently. Default 4.
func WithWarmWorkers(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.warmWorkers = n
		}
	}
}

// WithWarmRate caps warm remote calls at limit per second with burst.
// Burst is at least 1.
func WithWarmRate(limit rate.Limit, burst int) Option {
	return func(f *Fetcher) {
		burst = max(burst, 1)
		f.warmLimiter = rate.NewLimiter(limit, burst)
	}
}

// New creates a Fetcher over m. It fails only when metric registration fails.
func New(m *cache.Manager, opts ...Option) (*Fetcher, error) {
	if m == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Fetcher", "New", "cache manager is required")
	}
	f := &Fetcher{
		cache:       m,
		logger:      slog.Default(),
		warmWorkers: 4,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With("component", "fetcher")

	if f.registry != nil {
		fm, err := newFetchMetrics(f.registry, f.prefix)
		if err != nil {
			return nil, errors.WrapFatal(err, "Fetcher", "New", "register fetch metrics")
		}
		f.metrics = fm
	}
	return f, nil
}

// Cache returns the underlying manager.
func (f *Fetcher) Cache() *cache.Manager {
	return f.cache
}

// Fetch serves req from cache when possible and from remote otherwise.
func Fetch[T any](ctx context.Context, f *Fetcher, req Request, remote func(context.Context) (T, error)) Result[T] {
	if !req.ForceRefresh {
		if v, ok := cache.GetAs[T](ctx, f.cache, req.Key, req.Config, req.Scope); ok {
			f.metrics.hit()
			return Result[T]{Data: v, FromCache: true}
		}
	}
	f.metrics.miss()

	if f.dedup {
		if req.ForceRefresh {
			return fetchForced(ctx, f, req, remote)
		}
		return fetchShared(ctx, f, req, remote)
	}
	return fetchRemote(ctx, f, req, remote, nil)
}

func (f *Fetcher) generation(pk string) *atomic.Uint64 {
	v, _ := f.gens.LoadOrStore(pk, new(atomic.Uint64))
	return v.(*atomic.Uint64)
}

// fetchForced detaches pk from any in-flight shared call so later misses
// start fresh, then calls remote itself.
func fetchForced[T any](ctx context.Context, f *Fetcher, req Request, remote func(context.Context) (T, error)) Result[T] {
	pk := f.cache.KeyFor(req.Key, req.Scope)
	f.generation(pk).Add(1)
	f.flight.Forget(pk)
	return fetchRemote(ctx, f, req, remote, nil)
}

func fetchShared[T any](ctx context.Context, f *Fetcher, req Request, remote func(context.Context) (T, error)) Result[T] {
	pk := f.cache.KeyFor(req.Key, req.Scope)
	gen := f.generation(pk)
	ch := f.flight.DoChan(pk, func() (any, error) {
		started := gen.Load()
		overtaken := func() bool { return gen.Load() != started }
		res := fetchRemote(context.WithoutCancel(ctx), f, req, remote, overtaken)
		return res.Data, res.Err
	})

	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		return Result[T]{Err: ctx.Err()}
	}
	if r.Shared {
		f.logger.Debug("joined in-flight fetch", "key", pk)
	}
	if r.Err != nil {
		return Result[T]{Err: r.Err}
	}
	if r.Val == nil {
		var zero T
		return Result[T]{Data: zero}
	}
	data, ok := r.Val.(T)
	if !ok {
		// Same key fetched as a different type; run our own call.
		return fetchRemote(ctx, f, req, remote, nil)
	}
	return Result[T]{Data: data}
}

// fetchRemote calls remote and stores a successful result unless skip
// reports true.
func fetchRemote[T any](ctx context.Context, f *Fetcher, req Request, remote func(context.Context) (T, error), skip func() bool) Result[T] {
	start := time.Now()
	var (
		data T
		err  error
	)
	if f.retry != nil {
		data, err = retry.DoWithResult(ctx, *f.retry, func() (T, error) { return remote(ctx) })
	} else {
		data, err = remote(ctx)
	}
	f.metrics.remote(time.Since(start), err)

	if err != nil {
		f.logger.Warn("remote fetch failed", "key", req.Key, "class", errors.Classify(err).String(), "error", err)
		var zero T
		return Result[T]{Data: zero, Err: err}
	}

	if skip != nil && skip() {
		f.logger.Debug("discarding result overtaken by a forced refresh", "key", req.Key)
		return Result[T]{Data: data}
	}
	f.cache.Set(ctx, req.Key, data, req.Config, req.Scope)
	return Result[T]{Data: data}
}

// Close stops the warm pool if one was started, abandoning queued tasks.
// Warm fails after Close.
func (f *Fetcher) Close() error {
	f.warmOnce.Do(func() {})
	if f.warmPool == nil {
		return nil
	}
	f.warmCancel()
	return f.warmPool.Stop(5 * time.Second)
}

package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/schoolcache/metric"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Pool processes work items of type T on a fixed set of goroutines.
type Pool[T any] struct {
	workers   int
	queueSize int
	processor func(context.Context, T) error
	limiter   *rate.Limiter

	workChan chan T
	metrics  *poolMetrics
	wg       sync.WaitGroup

	lifecycleMu sync.RWMutex
	started     bool
	stopped     bool

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64

	metricsRegistry *metric.MetricsRegistry
	metricsPrefix   string
}

type poolMetrics struct {
	queueDepth     prometheus.Gauge
	submitted      prometheus.Counter
	processed      prometheus.Counter
	failed         prometheus.Counter
	dropped        prometheus.Counter
	processingTime *prometheus.HistogramVec
}

// Option configures a Pool.
type Option[T any] func(*Pool[T])

// WithMetricsRegistry registers pool metrics under prefix.
func WithMetricsRegistry[T any](registry *metric.MetricsRegistry, prefix string) Option[T] {
	return func(p *Pool[T]) {
		p.metricsRegistry = registry
		p.metricsPrefix = prefix
	}
}

// WithRateLimit makes every worker wait on limiter before processing an item.
func WithRateLimit[T any](limiter *rate.Limiter) Option[T] {
	return func(p *Pool[T]) {
		p.limiter = limiter
	}
}

// NewPool creates a pool. Non-positive workers or queueSize fall back to 10
// and 1000. It panics when processor is nil.
func NewPool[T any](workers, queueSize int, processor func(context.Context, T) error, opts ...Option[T]) *Pool[T] {
	if workers <= 0 {
		workers = 10
	}
	if queueSize <= 0 {
		queueSize = 1000
	}
	if processor == nil {
		panic(ErrNilProcessor)
	}

	pool := &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		processor: processor,
		workChan:  make(chan T, queueSize),
	}
	for _, opt := range opts {
		opt(pool)
	}

	if pool.metricsRegistry != nil && pool.metricsPrefix != "" {
		pool.initializeMetrics()
	}
	return pool
}

func (p *Pool[T]) initializeMetrics() {
	prefix := p.metricsPrefix
	m := &poolMetrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_queue_depth",
			Help: "Current worker pool queue depth",
		}),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_submitted_total",
			Help: "Total work items submitted",
		}),
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_processed_total",
			Help: "Total work items processed",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_failed_total",
			Help: "Total work items that failed processing",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_dropped_total",
			Help: "Total work items dropped due to full queue",
		}),
		processingTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_processing_duration_seconds",
			Help:    "Time spent processing work items",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 5.0},
		}, []string{"status"}),
	}

	const service = "worker_pool"
	reg := p.metricsRegistry
	// Registration errors mean another pool already owns the prefix; the pool
	// still works, it just reports into unregistered collectors.
	_ = reg.RegisterGauge(service, prefix+"_queue_depth", m.queueDepth)
	_ = reg.RegisterCounter(service, prefix+"_submitted_total", m.submitted)
	_ = reg.RegisterCounter(service, prefix+"_processed_total", m.processed)
	_ = reg.RegisterCounter(service, prefix+"_failed_total", m.failed)
	_ = reg.RegisterCounter(service, prefix+"_dropped_total", m.dropped)
	_ = reg.RegisterHistogramVec(service, prefix+"_processing_duration_seconds", m.processingTime)
	p.metrics = m
}

func (p *Pool[T]) accepting() error {
	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolStopped
	}
	return nil
}

func (p *Pool[T]) recordSubmit() {
	p.submitted.Add(1)
	if p.metrics != nil {
		p.metrics.submitted.Inc()
		p.metrics.queueDepth.Set(float64(len(p.workChan)))
	}
}

// Submit queues work without blocking. Returns ErrQueueFull if there is no room.
func (p *Pool[T]) Submit(work T) error {
	p.lifecycleMu.RLock()
	defer p.lifecycleMu.RUnlock()

	if err := p.accepting(); err != nil {
		return err
	}

	select {
	case p.workChan <- work:
		p.recordSubmit()
		return nil
	default:
		p.dropped.Add(1)
		if p.metrics != nil {
			p.metrics.dropped.Inc()
		}
		return ErrQueueFull
	}
}

// SubmitWait queues work, blocking until there is room or ctx is done.
func (p *Pool[T]) SubmitWait(ctx context.Context, work T) error {
	p.lifecycleMu.RLock()
	defer p.lifecycleMu.RUnlock()

	if err := p.accepting(); err != nil {
		return err
	}

	select {
	case p.workChan <- work:
		p.recordSubmit()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches the workers. Workers exit when ctx is cancelled or the pool
// is stopped.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.started = true
	return nil
}

// Stop closes the queue and waits up to timeout for queued work to finish.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	if !p.started || p.stopped {
		p.lifecycleMu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.workChan)
	p.lifecycleMu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Stats returns current pool statistics.
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.workChan),
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
		Dropped:    p.dropped.Load(),
	}
}

// PoolStats represents worker pool statistics
type PoolStats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case work, ok := <-p.workChan:
			if !ok {
				return
			}
			if p.limiter != nil {
				if err := p.limiter.Wait(ctx); err != nil {
					p.finish(0, err)
					continue
				}
			}

			start := time.Now()
			err := p.processor(ctx, work)
			p.finish(time.Since(start), err)
		}
	}
}

func (p *Pool[T]) finish(d time.Duration, err error) {
	p.processed.Add(1)
	if err != nil {
		p.failed.Add(1)
	}
	if p.metrics == nil {
		return
	}
	p.metrics.processed.Inc()
	p.metrics.queueDepth.Set(float64(len(p.workChan)))
	status := "success"
	if err != nil {
		p.metrics.failed.Inc()
		status = "error"
	}
	p.metrics.processingTime.WithLabelValues(status).Observe(d.Seconds())
}

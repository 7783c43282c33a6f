package fetcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/schoolcache/metric"
)

type fetchMetrics struct {
	hits           prometheus.Counter
	misses         prometheus.Counter
	remoteCalls    prometheus.Counter
	remoteErrors   prometheus.Counter
	remoteDuration prometheus.Histogram
}

func newFetchMetrics(registry *metric.MetricsRegistry, prefix string) (*fetchMetrics, error) {
	labels := prometheus.Labels{"component": prefix}
	opts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace: "schoolcache", Subsystem: "fetch", Name: name, Help: help, ConstLabels: labels,
		}
	}

	m := &fetchMetrics{
		hits:         prometheus.NewCounter(opts("cache_hits_total", "Fetches answered from cache")),
		misses:       prometheus.NewCounter(opts("cache_misses_total", "Fetches that went to the remote")),
		remoteCalls:  prometheus.NewCounter(opts("remote_calls_total", "Remote calls made")),
		remoteErrors: prometheus.NewCounter(opts("remote_errors_total", "Remote calls that failed")),
		remoteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "schoolcache", Subsystem: "fetch", Name: "remote_duration_seconds",
			Help: "Remote call latency", ConstLabels: labels,
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}

	if err := registry.RegisterCounter(prefix, "fetch_cache_hits", m.hits); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "fetch_cache_misses", m.misses); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "fetch_remote_calls", m.remoteCalls); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "fetch_remote_errors", m.remoteErrors); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram(prefix, "fetch_remote_duration", m.remoteDuration); err != nil {
		return nil, err
	}
	return m, nil
}

// Methods are nil-safe so callers need not check whether metrics are on.

func (m *fetchMetrics) hit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *fetchMetrics) miss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *fetchMetrics) remote(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.remoteCalls.Inc()
	m.remoteDuration.Observe(d.Seconds())
	if err != nil {
		m.remoteErrors.Inc()
	}
}

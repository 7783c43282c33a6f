package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/schoolcache/metric"
)

// cacheMetrics mirrors Statistics into Prometheus.
type cacheMetrics struct {
	hits        prometheus.Counter
	misses      prometheus.Counter
	sets        prometheus.Counter
	deletes     prometheus.Counter
	expired     *prometheus.CounterVec
	storeErrors *prometheus.CounterVec
	entries     prometheus.Gauge
	bytes       prometheus.Gauge
}

func newCacheMetrics(registry *metric.MetricsRegistry, prefix string) (*cacheMetrics, error) {
	labels := prometheus.Labels{"component": prefix}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "schoolcache", Subsystem: "cache", Name: name, Help: help, ConstLabels: labels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "schoolcache", Subsystem: "cache", Name: name, Help: help, ConstLabels: labels,
		})
	}

	m := &cacheMetrics{
		hits:    counter("hits_total", "Total number of cache hits"),
		misses:  counter("misses_total", "Total number of cache misses"),
		sets:    counter("sets_total", "Total number of entries written"),
		deletes: counter("deletes_total", "Total number of entries removed"),
		expired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schoolcache", Subsystem: "cache", Name: "invalid_entries_total",
			Help: "Entries discarded on read or sweep, by reason", ConstLabels: labels,
		}, []string{"reason"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "schoolcache", Subsystem: "cache", Name: "store_errors_total",
			Help: "Store faults absorbed by the cache, by operation", ConstLabels: labels,
		}, []string{"operation"}),
		entries: gauge("entries", "Entries seen by the last scan"),
		bytes:   gauge("size_bytes", "Serialised bytes seen by the last scan"),
	}

	if err := registry.RegisterCounter(prefix, "cache_hits", m.hits); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "cache_misses", m.misses); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "cache_sets", m.sets); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "cache_deletes", m.deletes); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(prefix, "cache_invalid_entries", m.expired); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(prefix, "cache_store_errors", m.storeErrors); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "cache_entries", m.entries); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "cache_size_bytes", m.bytes); err != nil {
		return nil, err
	}
	return m, nil
}

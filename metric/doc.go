// Package metric owns the Prometheus registry shared by every schoolcache
// component and the HTTP server that exposes it.
//
// Components register their collectors through MetricsRegistry, which keys
// them by service and metric name and rejects duplicates with an invalid
// classified error:
//
//	reg := metric.NewMetricsRegistry()
//	hits := prometheus.NewCounter(prometheus.CounterOpts{Name: "cache_hits_total"})
//	if err := reg.RegisterCounter("cache", "hits", hits); err != nil {
//		// duplicate
//	}
//
// Core metrics (store operation outcomes, reachability) are registered once by
// NewMetricsRegistry and available through CoreMetrics.
//
// Server serves /metrics and, when a HealthFunc is supplied, a JSON /health
// endpoint.
package metric

package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains process-wide metrics that are not owned by one component.
type Metrics struct {
	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec
	Online          prometheus.Gauge
	Reachability    *prometheus.CounterVec
	MaintenanceRuns *prometheus.CounterVec
}

// NewMetrics creates the core metric set.
func NewMetrics() *Metrics {
	return &Metrics{
		StoreOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "schoolcache",
				Subsystem: "store",
				Name:      "operations_total",
				Help:      "Key-value store operations by operation and outcome",
			},
			[]string{"operation", "status"},
		),

		StoreDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "schoolcache",
				Subsystem: "store",
				Name:      "operation_duration_seconds",
				Help:      "Key-value store operation latency",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"operation"},
		),

		Online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "schoolcache",
			Subsystem: "network",
			Name:      "online",
			Help:      "Last reported reachability (1=online, 0=offline)",
		}),

		Reachability: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "schoolcache",
				Subsystem: "network",
				Name:      "transitions_total",
				Help:      "Reachability transitions by target state",
			},
			[]string{"state"},
		),

		MaintenanceRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "schoolcache",
				Subsystem: "maintenance",
				Name:      "runs_total",
				Help:      "Expired-entry sweeps by trigger",
			},
			[]string{"trigger"},
		),
	}
}

// RecordStoreOperation records one store call.
func (m *Metrics) RecordStoreOperation(operation string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StoreOperations.WithLabelValues(operation, status).Inc()
	m.StoreDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordReachability records a reachability report.
func (m *Metrics) RecordReachability(online bool) {
	if online {
		m.Online.Set(1)
		m.Reachability.WithLabelValues("online").Inc()
		return
	}
	m.Online.Set(0)
	m.Reachability.WithLabelValues("offline").Inc()
}

// RecordMaintenance counts a sweep; trigger is "startup", "interval" or "manual".
func (m *Metrics) RecordMaintenance(trigger string) {
	m.MaintenanceRuns.WithLabelValues(trigger).Inc()
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.StoreOperations,
		m.StoreDuration,
		m.Online,
		m.Reachability,
		m.MaintenanceRuns,
	}
}

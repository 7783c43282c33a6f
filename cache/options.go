package cache

import (
	"log/slog"
	"time"

	"github.com/c360/schoolcache/metric"
	"github.com/c360/schoolcache/pkg/timestamp"
	"github.com/c360/schoolcache/reachability"
)

// DefaultSchemaVersion tags entries written by this release. Bump it when the
// shape of cached payloads changes so old entries read as misses.
const DefaultSchemaVersion = "1"

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithNamespace sets the physical key prefix.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		m.keys = NewKeyBuilder(namespace)
	}
}

// WithSchemaVersion sets the entry version tag.
func WithSchemaVersion(version string) Option {
	return func(m *Manager) {
		if version != "" {
			m.version = version
		}
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock timestamp.Clock) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithReachability reports online state from monitor.
func WithReachability(monitor *reachability.Monitor) Option {
	return func(m *Manager) {
		m.reach = monitor
	}
}

// WithMetrics exports cache metrics to registry under prefix.
func WithMetrics(registry *metric.MetricsRegistry, prefix string) Option {
	return func(m *Manager) {
		if registry != nil && prefix != "" {
			m.metricsReg = registry
			m.metricsPrefix = prefix
		}
	}
}

// WithMaintenanceInterval runs CleanupExpired every interval after Start.
// Zero disables the loop; reads stay correct without it.
func WithMaintenanceInterval(interval time.Duration) Option {
	return func(m *Manager) {
		if interval >= 0 {
			m.maintenanceInterval = interval
		}
	}
}

// WithCleanupOnStart makes Start run one sweep before returning.
func WithCleanupOnStart(enabled bool) Option {
	return func(m *Manager) {
		m.cleanupOnStart = enabled
	}
}

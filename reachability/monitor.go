// Package reachability tracks whether the backend is reachable and fans the
// state out to subscribers.
//
// Reachability is advisory: the cache reports it in stats and health but never
// gates reads or writes on it.
package reachability

import (
	"log/slog"
	"sync"

	"github.com/c360/schoolcache/metric"
	"github.com/c360/schoolcache/natsclient"
)

// Monitor holds the current online state.
type Monitor struct {
	mu      sync.RWMutex
	online  bool
	subs    map[int]func(bool)
	nextID  int
	logger  *slog.Logger
	metrics *metric.Metrics
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics records transitions into the core metrics.
func WithMetrics(metrics *metric.Metrics) Option {
	return func(m *Monitor) {
		m.metrics = metrics
	}
}

// New creates a monitor that starts in the given state.
func New(online bool, opts ...Option) *Monitor {
	m := &Monitor{
		online: online,
		subs:   make(map[int]func(bool)),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "reachability")
	return m
}

// IsOnline reports the last known state.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Set records a new state. Subscribers are called only when the state changes.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	fns := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	m.logger.Info("reachability changed", "online", online)
	if m.metrics != nil {
		m.metrics.RecordReachability(online)
	}
	for _, fn := range fns {
		fn(online)
	}
}

// Subscribe registers fn for state changes and returns an unsubscribe func.
func (m *Monitor) Subscribe(fn func(bool)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// FromNATS feeds m from the client's connection health. The returned func
// detaches it.
func FromNATS(m *Monitor, client *natsclient.Client) func() {
	m.Set(client.IsHealthy())
	return client.OnHealthChange(m.Set)
}

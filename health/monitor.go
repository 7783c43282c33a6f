package health

import (
	"context"
	"sort"
	"sync"
)

// Checker reports the current health of one component.
type Checker func(ctx context.Context) Status

// Monitor holds named checkers and evaluates them on demand.
type Monitor struct {
	mu       sync.RWMutex
	checkers map[string]Checker
}

// NewMonitor creates a new health monitor
func NewMonitor() *Monitor {
	return &Monitor{checkers: make(map[string]Checker)}
}

// Register adds or replaces the checker for name.
func (m *Monitor) Register(name string, check Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = check
}

// Remove drops the checker for name.
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checkers, name)
}

// Components returns the registered names in sorted order.
func (m *Monitor) Components() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.checkers))
	for name := range m.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs every checker and aggregates the results under systemName.
// Sub-statuses are ordered by component name.
func (m *Monitor) Check(ctx context.Context, systemName string) Status {
	m.mu.RLock()
	checkers := make(map[string]Checker, len(m.checkers))
	for name, c := range m.checkers {
		checkers[name] = c
	}
	m.mu.RUnlock()

	names := make([]string, 0, len(checkers))
	for name := range checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	subs := make([]Status, 0, len(names))
	for _, name := range names {
		st := checkers[name](ctx)
		st.Component = name
		subs = append(subs, st)
	}
	return Aggregate(systemName, subs)
}

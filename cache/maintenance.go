package cache

import (
	"context"
	"time"

	"github.com/c360/schoolcache/errors"
	"github.com/c360/schoolcache/health"
)

type scanned struct {
	key   string
	size  int64
	state entryState
}

// scan reads every namespaced entry and classifies it without deleting.
func (m *Manager) scan(ctx context.Context, op string) ([]scanned, error) {
	all, err := m.store.GetAllKeys(ctx)
	if err != nil {
		return nil, errors.WrapTransient(err, "Manager", op, "list keys")
	}
	keys := make([]string, 0, len(all))
	for _, k := range all {
		if m.keys.Owns(k) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, nil
	}

	pairs, err := m.store.MultiGet(ctx, keys)
	if err != nil {
		return nil, errors.WrapTransient(err, "Manager", op, "read entries")
	}

	now := m.nowMs()
	out := make([]scanned, 0, len(pairs))
	for _, kv := range pairs {
		_, state := decodeEntry(kv.Value, now, m.version, 0)
		out = append(out, scanned{key: kv.Key, size: int64(len(kv.Key) + len(kv.Value)), state: state})
	}
	return out, nil
}

// GetStats scans the namespace. Size counts key plus value bytes. A store
// fault yields zero counts with the current online flag.
func (m *Manager) GetStats(ctx context.Context) Stats {
	stats := Stats{IsOnline: m.IsOnline()}

	entries, err := m.scan(ctx, "GetStats")
	if err != nil {
		m.storeFault("stats", "", err)
		return stats
	}
	for _, e := range entries {
		stats.TotalKeys++
		stats.TotalSizeBytes += e.size
		if e.state != entryValid {
			stats.ExpiredKeys++
		}
	}

	if m.metrics != nil {
		m.metrics.entries.Set(float64(stats.TotalKeys))
		m.metrics.bytes.Set(float64(stats.TotalSizeBytes))
	}
	return stats
}

// CleanupExpired removes expired, version-mismatched and corrupt entries in
// the namespace.
func (m *Manager) CleanupExpired(ctx context.Context) CleanupResult {
	return m.sweep(ctx, "manual")
}

func (m *Manager) sweep(ctx context.Context, trigger string) CleanupResult {
	var result CleanupResult
	if m.core != nil {
		m.core.RecordMaintenance(trigger)
	}

	entries, err := m.scan(ctx, "CleanupExpired")
	if err != nil {
		m.storeFault("cleanup", "", err)
		return result
	}

	var doomed []string
	for _, e := range entries {
		if e.state == entryValid {
			continue
		}
		doomed = append(doomed, e.key)
		result.FreedBytes += e.size
		m.invalid(e.state)
	}
	if len(doomed) == 0 {
		return result
	}

	if err := m.store.MultiRemove(ctx, doomed); err != nil {
		m.storeFault("cleanup", "", errors.WrapTransient(err, "Manager", "CleanupExpired", "remove entries"))
		return CleanupResult{}
	}
	m.deleted(len(doomed))
	result.RemovedCount = len(doomed)

	m.logger.Info("cache cleanup complete", "trigger", trigger,
		"removed", result.RemovedCount, "freed_bytes", result.FreedBytes)
	return result
}

// Start begins background maintenance: an optional startup sweep, a sweep
// whenever reachability comes back online, and a periodic sweep if an
// interval was configured.
func (m *Manager) Start(ctx context.Context) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if m.started {
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Manager", "Start", "start maintenance")
	}

	if m.cleanupOnStart {
		m.sweep(ctx, "startup")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.started = true

	if m.reach != nil {
		m.unsubscribe = m.reach.Subscribe(func(online bool) {
			m.onReachability(loopCtx, online)
		})
	}

	if m.maintenanceInterval > 0 {
		m.wg.Add(1)
		go m.maintenanceLoop(loopCtx)
	}

	m.logger.Debug("cache maintenance started", "interval", m.maintenanceInterval)
	return nil
}

// onReachability sweeps when the network returns. Monitors may deliver a
// change after Close has unsubscribed, so the running state is checked under
// lifecycleMu before the sweep is tracked.
func (m *Manager) onReachability(loopCtx context.Context, online bool) {
	m.logger.Debug("reachability changed", "online", online)
	if !online {
		return
	}

	m.lifecycleMu.Lock()
	if !m.started || loopCtx.Err() != nil {
		m.lifecycleMu.Unlock()
		return
	}
	m.wg.Add(1)
	m.lifecycleMu.Unlock()

	go func() {
		defer m.wg.Done()
		m.sweep(loopCtx, "reconnect")
	}()
}

func (m *Manager) maintenanceLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx, "interval")
		}
	}
}

// Close stops background maintenance and waits for in-flight sweeps. It is
// safe to call more than once and on a manager that was never started.
func (m *Manager) Close() error {
	m.lifecycleMu.Lock()
	if !m.started {
		m.lifecycleMu.Unlock()
		return nil
	}
	m.started = false
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.cancel()
	m.lifecycleMu.Unlock()

	m.wg.Wait()
	m.logger.Debug("cache maintenance stopped")
	return nil
}

// Health reports the cache as unhealthy when the store cannot be scanned and
// degraded when offline or when most entries are stale.
func (m *Manager) Health(ctx context.Context) health.Status {
	const component = "cache"

	entries, err := m.scan(ctx, "Health")
	if err != nil {
		return health.FromError(component, err)
	}

	var expired int
	var size int64
	for _, e := range entries {
		size += e.size
		if e.state != entryValid {
			expired++
		}
	}
	online := m.IsOnline()
	counters := m.stats.Summary()

	var status health.Status
	switch {
	case !online:
		status = health.NewDegraded(component, "network offline, serving cached data")
	case len(entries) > 0 && expired*2 > len(entries):
		status = health.NewDegraded(component, "most cached entries are stale")
	default:
		status = health.NewHealthy(component, "ok")
	}
	return status.
		WithDetail("instance", m.id).
		WithDetail("total_keys", len(entries)).
		WithDetail("expired_keys", expired).
		WithDetail("size_bytes", size).
		WithDetail("online", online).
		WithDetail("hits", counters.Hits).
		WithDetail("misses", counters.Misses)
}

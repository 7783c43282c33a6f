package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360/schoolcache/errors"
	"github.com/c360/schoolcache/kvstore"
	"github.com/c360/schoolcache/metric"
	"github.com/c360/schoolcache/pkg/timestamp"
	"github.com/c360/schoolcache/reachability"
)

// Manager is a namespaced, TTL-bound, versioned cache over a kvstore.Store.
//
// Every method absorbs store faults: they are logged and turn into a miss, a
// no-op or zero counts. A Manager is safe for concurrent use and works
// without Start; Start only adds background maintenance.
type Manager struct {
	id      string
	store   kvstore.Store
	keys    KeyBuilder
	version string
	clock   timestamp.Clock
	logger  *slog.Logger
	reach   *reachability.Monitor

	stats         *Statistics
	metrics       *cacheMetrics
	core          *metric.Metrics
	metricsReg    *metric.MetricsRegistry
	metricsPrefix string

	maintenanceInterval time.Duration
	cleanupOnStart      bool

	lifecycleMu sync.Mutex
	started     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	unsubscribe func()
}

// NewManager creates a manager over store. It fails only when metric
// registration fails.
func NewManager(store kvstore.Store, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Manager", "NewManager", "store is required")
	}

	m := &Manager{
		id:      uuid.NewString(),
		store:   store,
		keys:    NewKeyBuilder(DefaultNamespace),
		version: DefaultSchemaVersion,
		clock:   timestamp.System,
		logger:  slog.Default(),
		stats:   NewStatistics(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "cache", "namespace", m.keys.Namespace(), "instance", m.id)

	if m.metricsReg != nil {
		cm, err := newCacheMetrics(m.metricsReg, m.metricsPrefix)
		if err != nil {
			return nil, errors.WrapFatal(err, "Manager", "NewManager", "register cache metrics")
		}
		m.metrics = cm
		m.core = m.metricsReg.CoreMetrics()
	}
	return m, nil
}

// ID identifies this manager instance in logs and health output.
func (m *Manager) ID() string {
	return m.id
}

// Namespace returns the physical key prefix.
func (m *Manager) Namespace() string {
	return m.keys.Namespace()
}

// KeyFor returns the physical key for a logical key and scope.
func (m *Manager) KeyFor(key string, scope Scope) string {
	return m.keys.Key(key, scope)
}

// IsOnline reports reachability; without a monitor the cache assumes online.
func (m *Manager) IsOnline() bool {
	if m.reach == nil {
		return true
	}
	return m.reach.IsOnline()
}

// Counters returns in-process activity counters.
func (m *Manager) Counters() StatsSummary {
	return m.stats.Summary()
}

func (m *Manager) nowMs() int64 {
	return timestamp.NowFrom(m.clock)
}

func (m *Manager) storeFault(op, key string, err error) {
	m.stats.storeErrors.Add(1)
	if m.metrics != nil {
		m.metrics.storeErrors.WithLabelValues(op).Inc()
	}
	m.logger.Warn("cache store fault", "operation", op, "key", key,
		"class", errors.Classify(err).String(), "error", err)
}

func (m *Manager) hit() {
	m.stats.hits.Add(1)
	if m.metrics != nil {
		m.metrics.hits.Inc()
	}
}

func (m *Manager) miss() {
	m.stats.misses.Add(1)
	if m.metrics != nil {
		m.metrics.misses.Inc()
	}
}

func (m *Manager) deleted(n int) {
	m.stats.deletes.Add(int64(n))
	if m.metrics != nil {
		m.metrics.deletes.Add(float64(n))
	}
}

func (m *Manager) invalid(state entryState) {
	m.stats.expired.Add(1)
	if m.metrics != nil {
		m.metrics.expired.WithLabelValues(state.String()).Inc()
	}
}

// Get returns the raw JSON payload for key if a valid entry exists. A
// positive cfg.TTL shorter than the stored TTL narrows the freshness window.
// Invalid entries are deleted and reported as a miss.
func (m *Manager) Get(ctx context.Context, key string, cfg Config, scope Scope) (json.RawMessage, bool) {
	if key == "" {
		m.logger.Warn("cache get with empty key")
		m.miss()
		return nil, false
	}
	pk := m.keys.Key(key, scope)

	raw, found, err := m.store.GetItem(ctx, pk)
	if err != nil {
		m.storeFault("get", pk, errors.WrapTransient(err, "Manager", "Get", "read entry"))
		m.miss()
		return nil, false
	}
	if !found {
		m.miss()
		return nil, false
	}

	entry, state := decodeEntry(raw, m.nowMs(), m.version, cfg.TTL)
	if state != entryValid {
		m.invalid(state)
		m.logger.Debug("discarding cache entry", "key", pk, "reason", state.String())
		if err := m.store.RemoveItem(ctx, pk); err != nil {
			m.storeFault("remove", pk, errors.WrapTransient(err, "Manager", "Get", "delete invalid entry"))
		} else {
			m.deleted(1)
		}
		m.miss()
		return nil, false
	}

	m.hit()
	return entry.Data, true
}

// GetAs is Get decoded into T. A payload that does not decode into T is
// treated as corrupt: it is removed and reported as a miss.
func GetAs[T any](ctx context.Context, m *Manager, key string, cfg Config, scope Scope) (T, bool) {
	var zero T
	raw, ok := m.Get(ctx, key, cfg, scope)
	if !ok {
		return zero, false
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		m.logger.Warn("cached payload does not match requested type", "key", m.keys.Key(key, scope),
			"error", errors.WrapInvalid(err, "Manager", "GetAs", "decode payload"))
		m.invalid(entryCorrupt)
		m.Remove(ctx, key, scope)
		return zero, false
	}
	return v, true
}

func (m *Manager) encode(data any, cfg Config) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", errors.WrapInvalid(err, "Manager", "encode", "marshal payload")
	}
	raw, err := json.Marshal(Entry{
		Data:      payload,
		Timestamp: m.nowMs(),
		TTL:       ttlSeconds(cfg.TTL),
		Version:   m.version,
	})
	if err != nil {
		return "", errors.WrapInvalid(err, "Manager", "encode", "marshal entry")
	}
	return string(raw), nil
}

// Set stores data under key with a fresh timestamp, replacing any previous
// entry. It does nothing when cfg.PersistLocally is false or cfg.TTL <= 0.
func (m *Manager) Set(ctx context.Context, key string, data any, cfg Config, scope Scope) {
	if !cfg.PersistLocally || cfg.TTL <= 0 {
		return
	}
	if key == "" {
		m.logger.Warn("cache set with empty key")
		return
	}
	pk := m.keys.Key(key, scope)

	raw, err := m.encode(data, cfg)
	if err != nil {
		m.logger.Warn("cache set skipped", "key", pk, "error", err)
		return
	}
	if err := m.store.SetItem(ctx, pk, raw); err != nil {
		m.storeFault("set", pk, errors.WrapTransient(err, "Manager", "Set", "write entry"))
		return
	}

	m.stats.sets.Add(1)
	if m.metrics != nil {
		m.metrics.sets.Inc()
	}
}

// Remove deletes one entry. Removing a missing key is not an error.
func (m *Manager) Remove(ctx context.Context, key string, scope Scope) {
	pk := m.keys.Key(key, scope)
	if err := m.store.RemoveItem(ctx, pk); err != nil {
		m.storeFault("remove", pk, errors.WrapTransient(err, "Manager", "Remove", "delete entry"))
		return
	}
	m.deleted(1)
}

// removeMatching deletes every namespaced key accepted by match and returns
// how many were removed.
func (m *Manager) removeMatching(ctx context.Context, op string, match func(string) bool) int {
	keys, err := m.store.GetAllKeys(ctx)
	if err != nil {
		m.storeFault(op, "", errors.WrapTransient(err, "Manager", op, "list keys"))
		return 0
	}

	var doomed []string
	for _, k := range keys {
		if m.keys.Owns(k) && match(k) {
			doomed = append(doomed, k)
		}
	}
	if len(doomed) == 0 {
		return 0
	}

	if err := m.store.MultiRemove(ctx, doomed); err != nil {
		m.storeFault(op, "", errors.WrapTransient(err, "Manager", op, "remove keys"))
		return 0
	}
	m.deleted(len(doomed))
	return len(doomed)
}

// ClearUserCache removes every entry scoped to userID, across all logical
// keys and schools.
func (m *Manager) ClearUserCache(ctx context.Context, userID string) int {
	if userID == "" {
		m.logger.Warn("clear user cache called without a user id")
		return 0
	}
	n := m.removeMatching(ctx, "clear_user", func(k string) bool { return HasUser(k, userID) })
	m.logger.Debug("cleared user cache", "user_id", userID, "removed", n)
	return n
}

// ClearPattern removes entries whose logical key starts with logicalPrefix.
// Non-empty scope fields must match exactly; empty ones match anything.
func (m *Manager) ClearPattern(ctx context.Context, logicalPrefix string, scope Scope) int {
	n := m.removeMatching(ctx, "clear_pattern", func(k string) bool {
		logical, s, ok := m.keys.Parse(k)
		if !ok || !strings.HasPrefix(logical, logicalPrefix) {
			return false
		}
		if scope.UserID != "" && s.UserID != scope.UserID {
			return false
		}
		return scope.SchoolID == "" || s.SchoolID == scope.SchoolID
	})
	m.logger.Debug("cleared cache pattern", "prefix", logicalPrefix, "removed", n)
	return n
}

// ClearAll removes every entry in the namespace and leaves other keys alone.
func (m *Manager) ClearAll(ctx context.Context) int {
	n := m.removeMatching(ctx, "clear_all", func(string) bool { return true })
	m.logger.Info("cleared cache", "removed", n)
	return n
}

package cache

import (
	"context"
	"encoding/json"

	"github.com/c360/schoolcache/errors"
	"github.com/c360/schoolcache/kvstore"
)

// BatchItem is one write for BatchSet.
type BatchItem struct {
	Key    string
	Data   any
	Config Config
	Scope  Scope
}

// BatchKey is one read for BatchGet.
type BatchKey struct {
	Key    string
	Config Config
	Scope  Scope
}

// BatchResult is the outcome for the BatchKey at the same index.
type BatchResult struct {
	Key   string
	Data  json.RawMessage
	Found bool
}

// BatchSet writes every eligible item in one store call. Items skipped by
// Set's rules are skipped here too. Returns how many were written.
func (m *Manager) BatchSet(ctx context.Context, items []BatchItem) int {
	pairs := make([]kvstore.KeyValue, 0, len(items))
	for _, it := range items {
		if !it.Config.PersistLocally || it.Config.TTL <= 0 || it.Key == "" {
			continue
		}
		pk := m.keys.Key(it.Key, it.Scope)
		raw, err := m.encode(it.Data, it.Config)
		if err != nil {
			m.logger.Warn("batch item skipped", "key", pk, "error", err)
			continue
		}
		pairs = append(pairs, kvstore.KeyValue{Key: pk, Value: raw})
	}
	if len(pairs) == 0 {
		return 0
	}

	if err := m.store.MultiSet(ctx, pairs); err != nil {
		m.storeFault("batch_set", "", errors.WrapTransient(err, "Manager", "BatchSet", "write entries"))
		return 0
	}
	m.stats.sets.Add(int64(len(pairs)))
	if m.metrics != nil {
		m.metrics.sets.Add(float64(len(pairs)))
	}
	return len(pairs)
}

// BatchGet reads keys in one store call. Results are positional regardless
// of the order the store returns pairs in; invalid entries are removed.
func (m *Manager) BatchGet(ctx context.Context, keys []BatchKey) []BatchResult {
	results := make([]BatchResult, len(keys))
	physical := make([]string, 0, len(keys))
	for i, k := range keys {
		results[i].Key = k.Key
		if k.Key != "" {
			physical = append(physical, m.keys.Key(k.Key, k.Scope))
		}
	}
	if len(physical) == 0 {
		for range keys {
			m.miss()
		}
		return results
	}

	pairs, err := m.store.MultiGet(ctx, physical)
	if err != nil {
		m.storeFault("batch_get", "", errors.WrapTransient(err, "Manager", "BatchGet", "read entries"))
		for range keys {
			m.miss()
		}
		return results
	}
	byKey := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		byKey[kv.Key] = kv.Value
	}

	now := m.nowMs()
	var doomed []string
	for i, k := range keys {
		if k.Key == "" {
			m.miss()
			continue
		}
		pk := m.keys.Key(k.Key, k.Scope)
		raw, ok := byKey[pk]
		if !ok {
			m.miss()
			continue
		}
		entry, state := decodeEntry(raw, now, m.version, k.Config.TTL)
		if state != entryValid {
			m.invalid(state)
			doomed = append(doomed, pk)
			m.miss()
			continue
		}
		results[i].Data = entry.Data
		results[i].Found = true
		m.hit()
	}

	if len(doomed) > 0 {
		if err := m.store.MultiRemove(ctx, doomed); err != nil {
			m.storeFault("batch_get", "", errors.WrapTransient(err, "Manager", "BatchGet", "remove invalid entries"))
		} else {
			m.deleted(len(doomed))
		}
	}
	return results
}

package kvstore

import (
	"context"
	"sync"
)

// Memory is a map-backed Store.
type Memory struct {
	mu    sync.RWMutex
	items map[string]string
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]string)}
}

// GetItem implements Store.
func (m *Memory) GetItem(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

// SetItem implements Store.
func (m *Memory) SetItem(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

// RemoveItem implements Store.
func (m *Memory) RemoveItem(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// GetAllKeys implements Store.
func (m *Memory) GetAllKeys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	return keys, nil
}

// MultiGet implements Store.
func (m *Memory) MultiGet(ctx context.Context, keys []string) ([]KeyValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]KeyValue, 0, len(keys))
	for _, k := range keys {
		if v, ok := m.items[k]; ok {
			out = append(out, KeyValue{Key: k, Value: v})
		}
	}
	return out, nil
}

// MultiSet implements Store. All items are written under one lock.
func (m *Memory) MultiSet(ctx context.Context, items []KeyValue) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, kv := range items {
		m.items[kv.Key] = kv.Value
	}
	return nil
}

// MultiRemove implements Store.
func (m *Memory) MultiRemove(ctx context.Context, keys []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

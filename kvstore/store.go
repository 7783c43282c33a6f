// Package kvstore defines the string key-value store the cache persists to,
// plus an in-memory implementation and a metrics decorator.
//
// Implementations must be safe for concurrent use and give per-key atomic
// reads and writes. MultiGet may return pairs in any order; callers match by
// key. Missing keys are simply absent from a MultiGet result.
package kvstore

import "context"

// KeyValue is one key and its stored string.
type KeyValue struct {
	Key   string
	Value string
}

// Store is the persistent key-value contract.
type Store interface {
	GetItem(ctx context.Context, key string) (value string, found bool, err error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
	GetAllKeys(ctx context.Context) ([]string, error)
	MultiGet(ctx context.Context, keys []string) ([]KeyValue, error)
	MultiSet(ctx context.Context, items []KeyValue) error
	MultiRemove(ctx context.Context, keys []string) error
}

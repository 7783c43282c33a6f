// Package natskv adapts a NATS JetStream KeyValue bucket to kvstore.Store.
//
// Cache keys contain ':' which NATS KV does not allow, so every key is stored
// base64url-encoded (unpadded). GetAllKeys decodes and silently skips keys that
// were not written by this adapter.
package natskv

import (
	"context"
	"encoding/base64"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/c360/schoolcache/errors"
	"github.com/c360/schoolcache/kvstore"
	"github.com/c360/schoolcache/natsclient"
)

const defaultConcurrency = 8

// Store is a kvstore.Store over a natsclient.KVStore.
type Store struct {
	kv          *natsclient.KVStore
	concurrency int
}

var _ kvstore.Store = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithConcurrency bounds parallel requests in Multi* calls.
func WithConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New wraps kv.
func New(kv *natsclient.KVStore, opts ...Option) *Store {
	s := &Store{kv: kv, concurrency: defaultConcurrency}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EncodeKey maps a cache key to a legal NATS KV key.
func EncodeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

// DecodeKey reverses EncodeKey.
func DecodeKey(encoded string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", errors.WrapInvalid(errors.ErrInvalidKey, "natskv", "DecodeKey", encoded)
	}
	return string(b), nil
}

// GetItem implements kvstore.Store.
func (s *Store) GetItem(ctx context.Context, key string) (string, bool, error) {
	entry, err := s.kv.Get(ctx, EncodeKey(key))
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return "", false, nil
		}
		return "", false, errors.WrapTransient(err, "natskv", "GetItem", "read key")
	}
	return string(entry.Value), true, nil
}

// SetItem implements kvstore.Store.
func (s *Store) SetItem(ctx context.Context, key, value string) error {
	if _, err := s.kv.Put(ctx, EncodeKey(key), []byte(value)); err != nil {
		return errors.WrapTransient(err, "natskv", "SetItem", "write key")
	}
	return nil
}

// RemoveItem implements kvstore.Store.
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, EncodeKey(key)); err != nil {
		return errors.WrapTransient(err, "natskv", "RemoveItem", "delete key")
	}
	return nil
}

// GetAllKeys implements kvstore.Store.
func (s *Store) GetAllKeys(ctx context.Context) ([]string, error) {
	encoded, err := s.kv.Keys(ctx)
	if err != nil {
		return nil, errors.WrapTransient(err, "natskv", "GetAllKeys", "list keys")
	}
	keys := make([]string, 0, len(encoded))
	for _, e := range encoded {
		if k, err := DecodeKey(e); err == nil {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// MultiGet implements kvstore.Store. Results arrive in completion order.
func (s *Store) MultiGet(ctx context.Context, keys []string) ([]kvstore.KeyValue, error) {
	var (
		mu  sync.Mutex
		out = make([]kvstore.KeyValue, 0, len(keys))
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, key := range keys {
		g.Go(func() error {
			v, ok, err := s.GetItem(ctx, key)
			if err != nil || !ok {
				return err
			}
			mu.Lock()
			out = append(out, kvstore.KeyValue{Key: key, Value: v})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// MultiSet implements kvstore.Store. Not atomic across keys.
func (s *Store) MultiSet(ctx context.Context, items []kvstore.KeyValue) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, item := range items {
		g.Go(func() error { return s.SetItem(ctx, item.Key, item.Value) })
	}
	return g.Wait()
}

// MultiRemove implements kvstore.Store.
func (s *Store) MultiRemove(ctx context.Context, keys []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, key := range keys {
		g.Go(func() error { return s.RemoveItem(ctx, key) })
	}
	return g.Wait()
}

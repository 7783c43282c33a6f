package natsclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/schoolcache/errors"
	"github.com/c360/schoolcache/pkg/retry"
)

// Well-known KV errors
var (
	ErrKVKeyNotFound   = stderrors.New("kv: key not found")
	ErrKVValueTooLarge = stderrors.New("kv: value exceeds maximum size")
)

// KVEntry is a value with its revision.
type KVEntry struct {
	Key      string
	Value    []byte
	Revision uint64
}

// KVOptions configures KV operations behavior
type KVOptions struct {
	Timeout      time.Duration // Per-operation timeout
	MaxValueSize int           // Maximum value size in bytes
	Retry        retry.Config  // Retry policy for transient failures
}

// DefaultKVOptions returns defaults for cache-sized values.
func DefaultKVOptions() KVOptions {
	return KVOptions{
		Timeout:      5 * time.Second,
		MaxValueSize: 1024 * 1024,
		Retry:        retry.Store(),
	}
}

// KVStore wraps a bucket with timeouts, size limits and retry.
type KVStore struct {
	bucket  jetstream.KeyValue
	options KVOptions
	logger  *slog.Logger
}

// NewKVStore wraps bucket.
func (c *Client) NewKVStore(bucket jetstream.KeyValue, opts ...func(*KVOptions)) *KVStore {
	options := DefaultKVOptions()
	for _, opt := range opts {
		opt(&options)
	}
	options.Retry.Retryable = func(err error) bool {
		return !IsKVNotFoundError(err) && !stderrors.Is(err, ErrKVValueTooLarge) && !stderrors.Is(err, context.Canceled)
	}

	return &KVStore{
		bucket:  bucket,
		options: options,
		logger:  c.logger.With("bucket", bucket.Bucket()),
	}
}

// Bucket returns the bucket name.
func (kv *KVStore) Bucket() string {
	return kv.bucket.Bucket()
}

func (kv *KVStore) applyTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if kv.options.Timeout > 0 {
		return context.WithTimeout(ctx, kv.options.Timeout)
	}
	return ctx, func() {}
}

// Get returns the entry for key or ErrKVKeyNotFound.
func (kv *KVStore) Get(ctx context.Context, key string) (*KVEntry, error) {
	return retry.DoWithResult(ctx, kv.options.Retry, func() (*KVEntry, error) {
		ctx, cancel := kv.applyTimeout(ctx)
		defer cancel()

		entry, err := kv.bucket.Get(ctx, key)
		if err != nil {
			if IsKVNotFoundError(err) {
				return nil, ErrKVKeyNotFound
			}
			return nil, fmt.Errorf("kv get %s: %w", key, err)
		}
		return &KVEntry{Key: key, Value: entry.Value(), Revision: entry.Revision()}, nil
	})
}

// Put writes value, last writer wins.
func (kv *KVStore) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	if kv.options.MaxValueSize > 0 && len(value) > kv.options.MaxValueSize {
		return 0, errors.WrapInvalid(ErrKVValueTooLarge, "KVStore", "Put",
			fmt.Sprintf("key %s is %d bytes", key, len(value)))
	}

	return retry.DoWithResult(ctx, kv.options.Retry, func() (uint64, error) {
		ctx, cancel := kv.applyTimeout(ctx)
		defer cancel()

		rev, err := kv.bucket.Put(ctx, key, value)
		if err != nil {
			return 0, fmt.Errorf("kv put %s: %w", key, err)
		}
		kv.logger.Debug("kv put", "key", key, "revision", rev)
		return rev, nil
	})
}

// Delete removes key. Deleting a missing key is not an error.
func (kv *KVStore) Delete(ctx context.Context, key string) error {
	return retry.Do(ctx, kv.options.Retry, func() error {
		ctx, cancel := kv.applyTimeout(ctx)
		defer cancel()

		if err := kv.bucket.Delete(ctx, key); err != nil && !IsKVNotFoundError(err) {
			return fmt.Errorf("kv delete %s: %w", key, err)
		}
		return nil
	})
}

// Keys lists the live keys in the bucket.
func (kv *KVStore) Keys(ctx context.Context) ([]string, error) {
	return retry.DoWithResult(ctx, kv.options.Retry, func() ([]string, error) {
		ctx, cancel := kv.applyTimeout(ctx)
		defer cancel()

		lister, err := kv.bucket.ListKeys(ctx)
		if err != nil {
			if stderrors.Is(err, jetstream.ErrNoKeysFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("kv list keys: %w", err)
		}
		defer func() { _ = lister.Stop() }()

		var keys []string
		for k := range lister.Keys() {
			keys = append(keys, k)
		}
		return keys, nil
	})
}

// IsKVNotFoundError checks if error indicates key not found
func IsKVNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, ErrKVKeyNotFound) || stderrors.Is(err, jetstream.ErrKeyNotFound) ||
		stderrors.Is(err, jetstream.ErrKeyDeleted) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "key not found") || strings.Contains(msg, "10037")
}

package kvstore

import (
	"context"
	"time"

	"github.com/c360/schoolcache/metric"
)

// Instrumented records the outcome and latency of every call on an inner
// Store into the core store metrics.
type Instrumented struct {
	inner   Store
	metrics *metric.Metrics
}

var _ Store = (*Instrumented)(nil)

// Instrument wraps s. A nil metrics returns s unchanged.
func Instrument(s Store, metrics *metric.Metrics) Store {
	if metrics == nil {
		return s
	}
	return &Instrumented{inner: s, metrics: metrics}
}

func (i *Instrumented) observe(op string, start time.Time, err error) {
	i.metrics.RecordStoreOperation(op, time.Since(start), err)
}

// GetItem implements Store.
func (i *Instrumented) GetItem(ctx context.Context, key string) (v string, ok bool, err error) {
	start := time.Now()
	defer func() { i.observe("get", start, err) }()
	return i.inner.GetItem(ctx, key)
}

// SetItem implements Store.
func (i *Instrumented) SetItem(ctx context.Context, key, value string) (err error) {
	start := time.Now()
	defer func() { i.observe("set", start, err) }()
	return i.inner.SetItem(ctx, key, value)
}

// RemoveItem implements Store.
func (i *Instrumented) RemoveItem(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() { i.observe("remove", start, err) }()
	return i.inner.RemoveItem(ctx, key)
}

// GetAllKeys implements Store.
func (i *Instrumented) GetAllKeys(ctx context.Context) (keys []string, err error) {
	start := time.Now()
	defer func() { i.observe("keys", start, err) }()
	return i.inner.GetAllKeys(ctx)
}

// MultiGet implements Store.
func (i *Instrumented) MultiGet(ctx context.Context, keys []string) (out []KeyValue, err error) {
	start := time.Now()
	defer func() { i.observe("multi_get", start, err) }()
	return i.inner.MultiGet(ctx, keys)
}

// MultiSet implements Store.
func (i *Instrumented) MultiSet(ctx context.Context, items []KeyValue) (err error) {
	start := time.Now()
	defer func() { i.observe("multi_set", start, err) }()
	return i.inner.MultiSet(ctx, items)
}

// MultiRemove implements Store.
func (i *Instrumented) MultiRemove(ctx context.Context, keys []string) (err error) {
	start := time.Now()
	defer func() { i.observe("multi_remove", start, err) }()
	return i.inner.MultiRemove(ctx, keys)
}

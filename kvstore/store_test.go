package kvstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/schoolcache/metric"
)

func TestMemory_Operations(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, ok, err := m.GetItem(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.SetItem(ctx, "a", "1"))
	require.NoError(t, m.MultiSet(ctx, []KeyValue{{Key: "b", Value: "2"}, {Key: "c", Value: "3"}}))
	assert.Equal(t, 3, m.Len())

	got, err := m.MultiGet(ctx, []string{"c", "missing", "a"})
	require.NoError(t, err)
	assert.Equal(t, []KeyValue{{Key: "c", Value: "3"}, {Key: "a", Value: "1"}}, got)

	keys, err := m.GetAllKeys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, keys)

	require.NoError(t, m.RemoveItem(ctx, "a"))
	require.NoError(t, m.RemoveItem(ctx, "a"))
	require.NoError(t, m.MultiRemove(ctx, []string{"b", "zz"}))

	keys, err = m.GetAllKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, keys)
}

func TestMemory_CancelledContext(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := m.GetItem(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, m.SetItem(ctx, "a", "1"), context.Canceled)
	assert.Equal(t, 0, m.Len())
}

type failingStore struct{ *Memory }

func (f *failingStore) GetItem(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk unavailable")
}

func TestInstrument(t *testing.T) {
	plain := NewMemory()
	assert.Same(t, plain, Instrument(plain, nil))

	registry := metric.NewMetricsRegistry()
	inner := &failingStore{Memory: NewMemory()}
	s := Instrument(inner, registry.CoreMetrics())
	ctx := context.Background()

	_, _, err := s.GetItem(ctx, "a")
	require.Error(t, err)
	require.NoError(t, s.SetItem(ctx, "a", "1"))

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	statuses := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "schoolcache_store_operations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			var op, status string
			for _, lp := range m.GetLabel() {
				switch lp.GetName() {
				case "operation":
					op = lp.GetValue()
				case "status":
					status = lp.GetValue()
				}
			}
			statuses[op+"/"+status] = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, statuses["get/error"])
	assert.Equal(t, 1.0, statuses["set/ok"])
}

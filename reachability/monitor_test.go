package reachability

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/schoolcache/metric"
	"github.com/c360/schoolcache/natsclient"
)

func TestMonitor_SetNotifiesOnChange(t *testing.T) {
	m := New(true)

	var mu sync.Mutex
	var got []bool
	unsubscribe := m.Subscribe(func(online bool) {
		mu.Lock()
		got = append(got, online)
		mu.Unlock()
	})

	m.Set(true) // no change
	m.Set(false)
	m.Set(false)
	m.Set(true)
	unsubscribe()
	unsubscribe()
	m.Set(false)

	assert.False(t, m.IsOnline())
	assert.Equal(t, []bool{false, true}, got)
}

func TestMonitor_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	m := New(true, WithMetrics(registry.CoreMetrics()))
	m.Set(false)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "schoolcache_network_online" {
			assert.Equal(t, 0.0, mf.GetMetric()[0].GetGauge().GetValue())
			return
		}
	}
	t.Fatal("online gauge not exported")
}

func TestFromNATS_StartsFromClientState(t *testing.T) {
	client, err := natsclient.NewClient("nats://localhost:4222")
	require.NoError(t, err)

	m := New(true)
	detach := FromNATS(m, client)
	defer detach()

	// not connected yet
	assert.False(t, m.IsOnline())
}

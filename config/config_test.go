package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/schoolcache/cache"
	"github.com/c360/schoolcache/errors"
	"github.com/c360/schoolcache/fetcher"
	"github.com/c360/schoolcache/kvstore"
	"github.com/c360/schoolcache/metric"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newTestLoader(env map[string]string) *Loader {
	l := NewLoader()
	l.lookupEnv = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	return l
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, cache.DefaultNamespace, cfg.Cache.Namespace)
	assert.Equal(t, StoreSQLite, cfg.Store.Kind)
}

func TestLoader_DefaultsOnly(t *testing.T) {
	l := newTestLoader(nil)
	l.EnableValidation(true)
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoader_LayersMerge(t *testing.T) {
	base := writeFile(t, "base.yaml", `
cache:
  namespace: app
  maintenance_interval: 1d
  presets:
    standard:
      ttl: 5m
      persist_locally: true
      priority: medium
store:
  kind: memory
`)
	device := writeFile(t, "device.json", `{"cache": {"cleanup_on_start": false, "warm_workers": 2}, "metrics": {"addr": ":9191"}}`)

	l := newTestLoader(nil)
	l.AddLayer(base)
	l.AddLayer(device)
	l.EnableValidation(true)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "app", cfg.Cache.Namespace)
	assert.Equal(t, 24*time.Hour, cfg.Cache.MaintenanceInterval.Std())
	assert.False(t, cfg.Cache.CleanupOnStart)
	assert.Equal(t, 2, cfg.Cache.WarmWorkers)
	assert.Equal(t, StoreMemory, cfg.Store.Kind)
	assert.Equal(t, ":9191", cfg.Metrics.Addr)
	assert.Equal(t, "/metrics", cfg.Metrics.Path, "untouched defaults survive")

	assert.Equal(t, 5*time.Minute, cfg.Cache.Presets.Get(cache.PresetStandard).TTL)
	assert.Equal(t, time.Hour, cfg.Cache.Presets.Get(cache.PresetReference).TTL, "other presets keep defaults")
}

func TestLoader_SchemaRejectsLayer(t *testing.T) {
	tests := map[string]string{
		"unknown section":  `{"graph": {}}`,
		"bad store kind":   `{"store": {"kind": "redis"}}`,
		"bad duration":     `{"cache": {"maintenance_interval": "soon"}}`,
		"namespace colon":  `{"cache": {"namespace": "a:b"}}`,
		"bad priority":     `{"cache": {"presets": {"x": {"priority": "urgent"}}}}`,
		"negative workers": `{"cache": {"warm_workers": -1}}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, "layer.json", content)
			_, err := newTestLoader(nil).LoadFile(path)
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err), err)
			assert.ErrorIs(t, ValidateFile(path), errors.ErrInvalidConfig)
		})
	}
}

func TestLoader_FileErrors(t *testing.T) {
	_, err := newTestLoader(nil).LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = newTestLoader(nil).LoadFile(writeFile(t, "cfg.toml", "x = 1"))
	assert.ErrorContains(t, err, "unsupported config file type")

	_, err = newTestLoader(nil).LoadFile(writeFile(t, "deep.json", strings.Repeat("[", 40)+strings.Repeat("]", 40)))
	assert.ErrorContains(t, err, "too deep")

	_, err = newTestLoader(nil).LoadFile("../outside.json")
	assert.ErrorContains(t, err, "path traversal")
}

func TestLoader_EnvOverrides(t *testing.T) {
	l := newTestLoader(map[string]string{
		"SCHOOLCACHE_STORE_KIND":           "nats",
		"SCHOOLCACHE_NATS_URLS":            "nats://a:4222,nats://b:4222",
		"SCHOOLCACHE_NATS_TOKEN":           "s3cret",
		"SCHOOLCACHE_MAINTENANCE_INTERVAL": "2d",
		"SCHOOLCACHE_METRICS_ENABLED":      "false",
	})
	l.EnableValidation(true)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, StoreNATS, cfg.Store.Kind)
	assert.Equal(t, []string{"nats://a:4222", "nats://b:4222"}, cfg.NATS.URLs)
	assert.Equal(t, 48*time.Hour, cfg.Cache.MaintenanceInterval.Std())
	assert.False(t, cfg.Metrics.Enabled)
	assert.NotContains(t, cfg.String(), "s3cret")
	assert.Equal(t, "s3cret", cfg.NATS.Token, "String does not mutate")

	_, err = newTestLoader(map[string]string{"SCHOOLCACHE_METRICS_ENABLED": "maybe"}).Load()
	assert.Error(t, err)
	_, err = newTestLoader(map[string]string{"SCHOOLCACHE_NAMESPACE": "a\x00b"}).Load()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := map[string]func(*Config){
		"no namespace":     func(c *Config) { c.Cache.Namespace = "" },
		"no version":       func(c *Config) { c.Cache.SchemaVersion = "" },
		"negative sweep":   func(c *Config) { c.Cache.MaintenanceInterval = -1 },
		"sqlite no path":   func(c *Config) { c.Store.Path = "" },
		"nats no bucket":   func(c *Config) { c.Store.Kind = StoreNATS; c.Store.Bucket = "" },
		"nats no urls":     func(c *Config) { c.Store.Kind = StoreNATS; c.NATS.URLs = nil },
		"unknown store":    func(c *Config) { c.Store.Kind = "redis" },
		"metrics no addr":  func(c *Config) { c.Metrics.Addr = "" },
		"negative preset":  func(c *Config) { c.Cache.Presets = cache.Presets{"x": {TTL: -time.Second}} },
		"negative workers": func(c *Config) { c.Cache.WarmWorkers = -1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1d"`), &d))
	assert.Equal(t, 24*time.Hour, d.Std())
	require.NoError(t, json.Unmarshal([]byte(`30`), &d))
	assert.Equal(t, 30*time.Second, d.Std())
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))

	out, err := json.Marshal(Duration(90 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(out))
}

func TestCacheConfig_FetcherOptions(t *testing.T) {
	cfg := Default().Cache
	assert.Len(t, cfg.FetcherOptions(nil, nil), 3)

	cfg.Deduplicate = true
	cfg.WarmRate = 2.5
	assert.Len(t, cfg.FetcherOptions(nil, metric.NewMetricsRegistry()), 6)

	m, err := cache.NewManager(kvstore.NewMemory())
	require.NoError(t, err)
	f, err := fetcher.New(m, cfg.FetcherOptions(nil, metric.NewMetricsRegistry())...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	ctx := context.Background()
	standard := cfg.Presets.Get(cache.PresetStandard)

	calls := 0
	res := fetcher.Fetch(ctx, f, fetcher.Request{Key: "teacher_classes", Config: standard},
		func(context.Context) ([]string, error) {
			calls++
			if calls == 1 {
				return nil, errors.ErrConnectionTimeout
			}
			return []string{"Class X"}, nil
		})
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"Class X"}, res.Data)
	assert.Equal(t, 2, calls, "transient remote errors are retried")

	report, err := f.Warm(ctx, []fetcher.WarmTask{{
		Key:    "school_profile",
		Config: standard,
		Fetch:  func(context.Context) (any, error) { return "profile", nil },
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Warmed)
}

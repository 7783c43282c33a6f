package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/schoolcache/cache"
	"github.com/c360/schoolcache/errors"
	"github.com/c360/schoolcache/fetcher"
	"github.com/c360/schoolcache/metric"
	"github.com/c360/schoolcache/pkg/retry"
	"github.com/c360/schoolcache/pkg/timestamp"
)

// Store kinds
const (
	StoreMemory = "memory" // process memory, lost on exit
	StoreSQLite = "sqlite" // durable on-device file
	StoreNATS   = "nats"   // JetStream KV bucket
)

// Duration is a time.Duration that reads "15m", "1d" or whole seconds.
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case string:
		parsed, err := timestamp.ParseDuration(x)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(time.Duration(x * float64(time.Second)))
	case nil:
	default:
		return fmt.Errorf("duration must be a string or number, got %T", v)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the complete application configuration.
type Config struct {
	Cache   CacheConfig   `json:"cache"`
	Store   StoreConfig   `json:"store"`
	NATS    NATSConfig    `json:"nats"`
	Metrics MetricsConfig `json:"metrics"`
}

// CacheConfig configures the cache manager and fetcher.
type CacheConfig struct {
	Namespace           string        `json:"namespace"`
	SchemaVersion       string        `json:"schema_version"`
	MaintenanceInterval Duration      `json:"maintenance_interval"`
	CleanupOnStart      bool          `json:"cleanup_on_start"`
	Presets             cache.Presets `json:"presets,omitempty"`

	Deduplicate bool    `json:"deduplicate"`
	WarmWorkers int     `json:"warm_workers"`
	WarmRate    float64 `json:"warm_rate"` // tasks per second, 0 = unlimited
}

// StoreConfig selects the persistent store.
type StoreConfig struct {
	Kind   string `json:"kind"`
	Path   string `json:"path,omitempty"`   // sqlite file
	Bucket string `json:"bucket,omitempty"` // NATS KV bucket
}

// NATSConfig defines NATS connection settings.
type NATSConfig struct {
	URLs          []string `json:"urls,omitempty"`
	Name          string   `json:"name,omitempty"`
	MaxReconnects int      `json:"max_reconnects,omitempty"`
	ReconnectWait Duration `json:"reconnect_wait,omitempty"`
	Timeout       Duration `json:"timeout,omitempty"`
	Username      string   `json:"username,omitempty"`
	Password      string   `json:"password,omitempty"`
	Token         string   `json:"token,omitempty"`
}

// MetricsConfig configures the metrics and health endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
	Path    string `json:"path"`
}

// FetcherOptions translates the fetch settings into fetcher options. Remote
// reads retry transient failures with retry.DefaultConfig. registry may be
// nil to skip metrics.
func (c CacheConfig) FetcherOptions(logger *slog.Logger, registry *metric.MetricsRegistry) []fetcher.Option {
	opts := []fetcher.Option{
		fetcher.WithLogger(logger),
		fetcher.WithRetry(retry.DefaultConfig()),
	}
	if registry != nil {
		opts = append(opts, fetcher.WithMetrics(registry, c.Namespace))
	}
	if c.Deduplicate {
		opts = append(opts, fetcher.WithDeduplication())
	}
	if c.WarmWorkers > 0 {
		opts = append(opts, fetcher.WithWarmWorkers(c.WarmWorkers))
	}
	if c.WarmRate > 0 {
		opts = append(opts, fetcher.WithWarmRate(rate.Limit(c.WarmRate), int(math.Ceil(c.WarmRate))))
	}
	return opts
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			Namespace:           cache.DefaultNamespace,
			SchemaVersion:       cache.DefaultSchemaVersion,
			MaintenanceInterval: Duration(10 * time.Minute),
			CleanupOnStart:      true,
			Presets:             cache.DefaultPresets(),
			WarmWorkers:         4,
		},
		Store: StoreConfig{
			Kind:   StoreSQLite,
			Path:   "data/schoolcache.db",
			Bucket: "schoolcache",
		},
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			Name:          "schoolcache",
			MaxReconnects: -1,
			ReconnectWait: Duration(2 * time.Second),
			Timeout:       Duration(5 * time.Second),
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
			Path:    "/metrics",
		},
	}
}

func invalid(format string, args ...any) error {
	return errors.WrapInvalid(fmt.Errorf(format, args...), "Config", "Validate", "check configuration")
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Cache.Namespace == "" {
		return invalid("cache.namespace is required")
	}
	if c.Cache.SchemaVersion == "" {
		return invalid("cache.schema_version is required")
	}
	if c.Cache.MaintenanceInterval < 0 {
		return invalid("cache.maintenance_interval cannot be negative")
	}
	if c.Cache.WarmWorkers < 0 || c.Cache.WarmRate < 0 {
		return invalid("cache warm settings cannot be negative")
	}
	if err := c.Cache.Presets.Validate(); err != nil {
		return err
	}

	switch c.Store.Kind {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.Path == "" {
			return invalid("store.path is required for the sqlite store")
		}
	case StoreNATS:
		if c.Store.Bucket == "" {
			return invalid("store.bucket is required for the nats store")
		}
		if len(c.NATS.URLs) == 0 {
			return invalid("nats.urls is required for the nats store")
		}
	default:
		return invalid("unknown store.kind %q", c.Store.Kind)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return invalid("metrics.addr is required when metrics are enabled")
	}
	return nil
}

// String returns the config as JSON with secrets redacted.
func (c *Config) String() string {
	redacted := *c
	if redacted.NATS.Password != "" {
		redacted.NATS.Password = "[REDACTED]"
	}
	if redacted.NATS.Token != "" {
		redacted.NATS.Token = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(redacted, "", "  ")
	return string(data)
}

package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/c360/schoolcache/errors"
	"github.com/c360/schoolcache/pkg/timestamp"
)

//go:embed schema.json
var schemaJSON []byte

var layerSchema = gojsonschema.NewBytesLoader(schemaJSON)

// Loader handles configuration loading with layers and overrides.
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a loader reading SCHOOLCACHE_* overrides.
func NewLoader() *Loader {
	return &Loader{
		envPrefix: "SCHOOLCACHE",
		lookupEnv: os.LookupEnv,
	}
}

// AddLayer adds a configuration file layer. Later layers win.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables Config.Validate after loading.
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads defaults plus a single file.
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load merges defaults, every layer and the environment.
func (l *Loader) Load() (*Config, error) {
	merged, err := toMap(Default())
	if err != nil {
		return nil, err
	}

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		merged = deepMergeMaps(merged, raw)
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "Load", "encode merged config")
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "Load", "decode merged config")
	}

	if err := l.applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// loadRaw reads one layer as a generic map and checks it against the schema.
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "loadRaw", "parse YAML")
		}
	default:
		if err := validateJSONDepth(data); err != nil {
			return nil, fmt.Errorf("invalid JSON structure: %w", err)
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "loadRaw", "parse JSON")
		}
	}
	if raw == nil {
		raw = map[string]any{}
	}

	if err := validateLayer(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// ValidateFile checks one file against the layer schema without merging it.
func ValidateFile(path string) error {
	_, err := NewLoader().loadRaw(path)
	return err
}

func validateLayer(raw map[string]any) error {
	result, err := gojsonschema.Validate(layerSchema, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return errors.WrapInvalid(err, "Loader", "validateLayer", "run schema validation")
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s", errors.ErrInvalidConfig, strings.Join(msgs, "; ")),
		"Loader", "validateLayer", "schema validation")
}

func toMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, errors.WrapFatal(err, "Loader", "toMap", "encode defaults")
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.WrapFatal(err, "Loader", "toMap", "decode defaults")
	}
	return m, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence.
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

func (l *Loader) env(name string) (string, bool, error) {
	key := l.envPrefix + "_" + name
	val, ok := l.lookupEnv(key)
	if !ok || val == "" {
		return "", false, nil
	}
	if err := validateEnvVar(key, val); err != nil {
		return "", false, errors.WrapInvalid(err, "Loader", "applyEnvOverrides", "read environment")
	}
	return val, true, nil
}

// applyEnvOverrides applies SCHOOLCACHE_* variables.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"NAMESPACE":      &cfg.Cache.Namespace,
		"SCHEMA_VERSION": &cfg.Cache.SchemaVersion,
		"STORE_KIND":     &cfg.Store.Kind,
		"STORE_PATH":     &cfg.Store.Path,
		"STORE_BUCKET":   &cfg.Store.Bucket,
		"NATS_USERNAME":  &cfg.NATS.Username,
		"NATS_PASSWORD":  &cfg.NATS.Password,
		"NATS_TOKEN":     &cfg.NATS.Token,
		"METRICS_ADDR":   &cfg.Metrics.Addr,
	}
	for name, dst := range strs {
		val, ok, err := l.env(name)
		if err != nil {
			return err
		}
		if ok {
			*dst = val
		}
	}

	if val, ok, err := l.env("NATS_URLS"); err != nil {
		return err
	} else if ok {
		cfg.NATS.URLs = strings.Split(val, ",")
	}

	if val, ok, err := l.env("MAINTENANCE_INTERVAL"); err != nil {
		return err
	} else if ok {
		d, err := timestamp.ParseDuration(val)
		if err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", "parse MAINTENANCE_INTERVAL")
		}
		cfg.Cache.MaintenanceInterval = Duration(d)
	}

	if val, ok, err := l.env("METRICS_ENABLED"); err != nil {
		return err
	} else if ok {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", "parse METRICS_ENABLED")
		}
		cfg.Metrics.Enabled = enabled
	}
	return nil
}

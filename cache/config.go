package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360/schoolcache/errors"
	"github.com/c360/schoolcache/pkg/timestamp"
)

// Priority orders warming work. It is not an eviction policy.
type Priority string

// Priorities
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns 0 for high, 1 for medium and 2 for low or unknown.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Config is the per-call caching policy.
type Config struct {
	// TTL is the validity window; stored with second granularity.
	TTL time.Duration `json:"ttl"`

	// PersistLocally false turns Set into a no-op.
	PersistLocally bool `json:"persist_locally"`

	Priority Priority `json:"priority"`
}

// Validate checks the policy.
func (c Config) Validate() error {
	if c.TTL < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "Validate",
			fmt.Sprintf("ttl cannot be negative, got %v", c.TTL))
	}
	switch c.Priority {
	case PriorityHigh, PriorityMedium, PriorityLow, "":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "Validate",
			fmt.Sprintf("unknown priority %q", c.Priority))
	}
	return nil
}

// UnmarshalJSON accepts TTL as a duration string ("15m", "1d") or as seconds.
func (c *Config) UnmarshalJSON(data []byte) error {
	type alias Config
	aux := &struct {
		TTL any `json:"ttl"`
		*alias
	}{alias: (*alias)(c)}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	switch v := aux.TTL.(type) {
	case nil:
	case string:
		d, err := timestamp.ParseDuration(v)
		if err != nil {
			return errors.WrapInvalid(err, "cache", "UnmarshalJSON", "parse ttl")
		}
		c.TTL = d
	case float64:
		c.TTL = time.Duration(v * float64(time.Second))
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "UnmarshalJSON",
			fmt.Sprintf("ttl has unsupported type %T", v))
	}
	return nil
}

// MarshalJSON writes TTL as a duration string.
func (c Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TTL            string   `json:"ttl"`
		PersistLocally bool     `json:"persist_locally"`
		Priority       Priority `json:"priority"`
	}{c.TTL.String(), c.PersistLocally, c.Priority})
}

// Preset names, chosen by how often the data changes.
const (
	PresetRealtime  = "realtime"  // attendance taking, live views
	PresetDashboard = "dashboard" // frequently changing dashboard data
	PresetStandard  = "standard"  // class and assignment lists
	PresetReference = "reference" // timetables, subjects
	PresetStatic    = "static"    // school profile, term calendar
	PresetSession   = "session"   // per-screen data that is never persisted
)

// Presets maps preset names to policies.
type Presets map[string]Config

// DefaultPresets returns the built-in policies.
func DefaultPresets() Presets {
	return Presets{
		PresetRealtime:  {TTL: time.Minute, PersistLocally: true, Priority: PriorityHigh},
		PresetDashboard: {TTL: 5 * time.Minute, PersistLocally: true, Priority: PriorityHigh},
		PresetStandard:  {TTL: 15 * time.Minute, PersistLocally: true, Priority: PriorityMedium},
		PresetReference: {TTL: time.Hour, PersistLocally: true, Priority: PriorityLow},
		PresetStatic:    {TTL: 24 * time.Hour, PersistLocally: true, Priority: PriorityLow},
		PresetSession:   {TTL: 15 * time.Minute, PersistLocally: false, Priority: PriorityMedium},
	}
}

// Get returns the named policy, falling back to the built-in preset and then
// to PresetStandard.
func (p Presets) Get(name string) Config {
	if c, ok := p[name]; ok {
		return c
	}
	defaults := DefaultPresets()
	if c, ok := defaults[name]; ok {
		return c
	}
	return defaults[PresetStandard]
}

// Merge returns a copy of p with overrides applied.
func (p Presets) Merge(overrides Presets) Presets {
	out := make(Presets, len(p)+len(overrides))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Validate checks every preset.
func (p Presets) Validate() error {
	for name, c := range p {
		if err := c.Validate(); err != nil {
			return errors.WrapInvalid(err, "cache", "Presets.Validate", fmt.Sprintf("preset %s", name))
		}
	}
	return nil
}

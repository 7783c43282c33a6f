// Package timestamp provides Unix millisecond timestamps and injectable clocks.
//
// Cache entries record their store instant as int64 milliseconds since the Unix
// epoch. A value of 0 means "not set".
package timestamp

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock returns the current time. Components accept a Clock so tests can
// control expiry without sleeping.
type Clock func() time.Time

// System is the wall clock.
func System() time.Time {
	return time.Now()
}

// Now returns the current time as Unix milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}

// NowFrom returns the clock's current time as Unix milliseconds.
// A nil clock falls back to the wall clock.
func NowFrom(clock Clock) int64 {
	if clock == nil {
		return Now()
	}
	return clock().UnixMilli()
}

// ToUnixMs converts a time.Time to Unix milliseconds.
func ToUnixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromUnixMs converts Unix milliseconds to time.Time.
// Returns zero time if timestamp is 0.
func FromUnixMs(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Format converts Unix milliseconds to RFC3339 for display.
// Returns empty string if timestamp is 0.
func Format(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// Age returns how long before now the timestamp was taken.
// Returns 0 if the timestamp is zero.
func Age(ms, now int64) time.Duration {
	if ms == 0 {
		return 0
	}
	return time.Duration(now-ms) * time.Millisecond
}

// Validate checks that a timestamp is non-negative and not absurdly far ahead.
func Validate(ms int64) error {
	if ms < 0 {
		return fmt.Errorf("timestamp cannot be negative: %d", ms)
	}
	// year 3000
	if ms > 32503680000000 {
		return fmt.Errorf("timestamp too far in future: %d", ms)
	}
	return nil
}

// ParseDuration is time.ParseDuration plus a whole-day form ("14d").
func ParseDuration(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day duration %q: %w", s, err)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

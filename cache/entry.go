package cache

import (
	"encoding/json"
	"math"
	"time"
)

// Entry is the serialised form of a cached value.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // unix ms at store time
	TTL       int64           `json:"ttl"`       // seconds
	Version   string          `json:"version"`
}

type entryState int

const (
	entryValid entryState = iota
	entryExpired
	entryVersionMismatch
	entryCorrupt
)

func (s entryState) String() string {
	switch s {
	case entryValid:
		return "valid"
	case entryExpired:
		return "expired"
	case entryVersionMismatch:
		return "version_mismatch"
	default:
		return "corrupt"
	}
}

// ttlSeconds rounds up so a sub-second TTL still yields a usable window.
func ttlSeconds(d time.Duration) int64 {
	s := int64(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}

// decodeEntry parses raw and classifies it against nowMs and version. A
// positive maxAge shortens the stored window, never lengthens it.
func decodeEntry(raw string, nowMs int64, version string, maxAge time.Duration) (Entry, entryState) {
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil || e.Data == nil {
		return e, entryCorrupt
	}
	if e.Version != version {
		return e, entryVersionMismatch
	}

	window := e.TTL * 1000
	if maxAge > 0 && maxAge.Milliseconds() < window {
		window = maxAge.Milliseconds()
	}
	if nowMs-e.Timestamp >= window {
		return e, entryExpired
	}
	return e, entryValid
}

package cache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func encodeForTest(t *testing.T, e Entry) string {
	t.Helper()
	raw, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	return string(raw)
}

func TestTTLSeconds(t *testing.T) {
	assert.Equal(t, int64(900), ttlSeconds(15*time.Minute))
	assert.Equal(t, int64(2), ttlSeconds(1500*time.Millisecond))
	assert.Equal(t, int64(1), ttlSeconds(time.Millisecond))
}

func TestDecodeEntry(t *testing.T) {
	const ts = int64(1_000_000)
	fresh := encodeForTest(t, Entry{Data: json.RawMessage(`[1,2]`), Timestamp: ts, TTL: 900, Version: "1"})

	tests := []struct {
		name   string
		raw    string
		now    int64
		maxAge time.Duration
		want   entryState
	}{
		{"fresh", fresh, ts + 899_999, 0, entryValid},
		{"boundary is expired", fresh, ts + 900_000, 0, entryExpired},
		{"past ttl", fresh, ts + 901_000, 0, entryExpired},
		{"shorter config ttl wins", fresh, ts + 120_000, time.Minute, entryExpired},
		{"longer config ttl ignored", fresh, ts + 901_000, time.Hour, entryExpired},
		{"version mismatch", encodeForTest(t, Entry{Data: json.RawMessage(`1`), Timestamp: ts, TTL: 900, Version: "0"}), ts, 0, entryVersionMismatch},
		{"not json", "{oops", ts, 0, entryCorrupt},
		{"missing data", `{"timestamp":1000000,"ttl":900,"version":"1"}`, ts, 0, entryCorrupt},
		{"null data is a value", `{"data":null,"timestamp":1000000,"ttl":900,"version":"1"}`, ts, 0, entryValid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := decodeEntry(tt.raw, tt.now, "1", tt.maxAge)
			assert.Equal(t, tt.want, got, got.String())
		})
	}
}

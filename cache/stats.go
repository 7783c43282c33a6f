package cache

import (
	"sync/atomic"
	"time"
)

// Stats is the result of a store scan. It never deletes anything.
type Stats struct {
	TotalKeys      int   `json:"total_keys"`
	TotalSizeBytes int64 `json:"total_size_bytes"`
	ExpiredKeys    int   `json:"expired_keys"`
	IsOnline       bool  `json:"is_online"`
}

// CleanupResult reports what CleanupExpired reclaimed.
type CleanupResult struct {
	RemovedCount int   `json:"removed_count"`
	FreedBytes   int64 `json:"freed_bytes"`
}

// Statistics counts in-process cache activity.
type Statistics struct {
	hits        atomic.Int64
	misses      atomic.Int64
	sets        atomic.Int64
	deletes     atomic.Int64
	expired     atomic.Int64
	storeErrors atomic.Int64
	startTime   time.Time
}

// NewStatistics creates a new statistics tracker.
func NewStatistics() *Statistics {
	return &Statistics{startTime: time.Now()}
}

// StatsSummary is a snapshot of Statistics.
type StatsSummary struct {
	Hits        int64         `json:"hits"`
	Misses      int64         `json:"misses"`
	Sets        int64         `json:"sets"`
	Deletes     int64         `json:"deletes"`
	Expired     int64         `json:"expired"`
	StoreErrors int64         `json:"store_errors"`
	HitRatio    float64       `json:"hit_ratio"`
	Uptime      time.Duration `json:"uptime"`
}

// Summary returns a snapshot.
func (s *Statistics) Summary() StatsSummary {
	hits, misses := s.hits.Load(), s.misses.Load()
	ratio := 0.0
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}
	return StatsSummary{
		Hits:        hits,
		Misses:      misses,
		Sets:        s.sets.Load(),
		Deletes:     s.deletes.Load(),
		Expired:     s.expired.Load(),
		StoreErrors: s.storeErrors.Load(),
		HitRatio:    ratio,
		Uptime:      time.Since(s.startTime),
	}
}

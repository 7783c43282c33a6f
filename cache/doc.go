// Package cache persists API responses to a key-value store so the app can
// render offline and cut redundant requests.
//
// Entries are JSON envelopes carrying the payload, a write timestamp, a TTL
// in seconds and a schema version. Physical keys have the form
//
//	<namespace>:<logicalKey>[:school:<schoolId>][:user:<userId>]
//
// An entry is served only while it is fresh and its version matches the
// manager's; anything else is deleted on read and counts as a miss. Store
// faults never reach callers: they are logged and surface as misses, no-ops
// or zero counts.
//
// Basic usage:
//
//	m, err := cache.NewManager(kvstore.NewMemory())
//	if err != nil {
//		return err
//	}
//	cfg := cache.DefaultPresets().Get(cache.PresetStandard)
//	m.Set(ctx, "teacher_classes", classes, cfg, cache.ForUser(userID))
//	raw, ok := m.Get(ctx, "teacher_classes", cfg, cache.ForUser(userID))
package cache

// Package schoolcache is the client-side cache layer of the school
// administration app.
//
// Every remote read goes through a namespaced, TTL-based, versioned local
// cache, and every successful write invalidates the entries it makes stale.
//
// # Layers
//
//   - kvstore: the persistent string store the cache sits on (in-memory,
//     SQLite on the device, or a NATS JetStream KV bucket).
//   - cache: the Manager. Entries are JSON envelopes carrying the store
//     time, TTL and schema version; anything expired, corrupt or written by
//     another schema version reads as a miss and is deleted lazily.
//   - fetcher: the cached-fetch contract used by data-access functions.
//     Cache first, remote on miss or forced refresh, store only successful
//     results. Optional in-flight dedup and background warming.
//   - invalidation: per-entity rules mapping a successful write to the keys,
//     prefixes and user scopes to drop.
//   - school: data-access functions for classes, assignments, lesson plans,
//     attendance, grades, students and timetables built on the layers above.
//
// Storage faults never surface to callers. Reads degrade to misses, writes to
// no-ops, and the fault is logged and counted.
//
// # Quick start
//
//	m, _ := cache.NewManager(kvstore.NewMemory())
//	f, _ := fetcher.New(m)
//	res := fetcher.Fetch(ctx, f, fetcher.Request{
//		Key:    invalidation.KeyTeacherClasses,
//		Scope:  cache.Scope{UserID: "t1"},
//		Config: cache.DefaultPresets()[cache.PresetStandard],
//	}, loadClasses)
//
// cmd/schoolcache wraps the Manager for maintenance (stats, cleanup, clear-user,
// clear-all) and for a long-running serve mode exporting Prometheus metrics.
package schoolcache

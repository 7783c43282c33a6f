// Package testutil provides test doubles shared by the cache packages.
//
// ManualClock drives TTL expiry deterministically. FaultyStore wraps an
// in-memory store with per-operation error injection, call counting and
// shuffled MultiGet ordering so tests can prove callers never rely on
// store ordering or success.
//
//	clock := testutil.NewManualClock(time.Unix(1_700_000_000, 0))
//	store := testutil.NewFaultyStore()
//	m, _ := cache.NewManager(store, cache.WithClock(clock.Now))
//
//	clock.Advance(901 * time.Second)
//	store.FailOn(testutil.OpGet, errors.New("disk gone"))
//
// Prefer a real store (sqlitekv in memory, natskv under testcontainers) when
// behaviour of the backend itself is under test.
package testutil

// Package fetcher implements the cached-fetch calling contract every
// data-access function follows:
//
//	res := fetcher.Fetch(ctx, f, fetcher.Request{Key: "teacher_classes", Scope: scope, Config: cfg},
//		func(ctx context.Context) ([]Class, error) { return backend.Classes(ctx, teacherID) })
//
// A fresh cache entry is returned without calling remote. Otherwise remote
// runs; its result is cached before Fetch returns, empty results included.
// Remote errors are reported in Result.Err and never cached.
//
// Request collapsing and retry of transient remote errors are opt-in. Warm
// preloads a set of keys on a worker pool, highest priority first.
package fetcher

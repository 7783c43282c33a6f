// Package health describes component health as a small tree of Status values.
//
// A Status is healthy, degraded or unhealthy. Degraded means the component
// still serves requests with reduced quality, for example a cache that is
// offline or mostly expired. Aggregate folds sub-statuses using worst-wins.
//
// Monitor runs registered Checkers on demand:
//
//	mon := health.NewMonitor()
//	mon.Register("cache", manager.Health)
//	mon.Register("nats", natsCheck)
//	st := mon.Check(ctx, "schoolcache")
//
// Error text placed in a Status goes through FromError, which strips URLs,
// paths, addresses and credentials.
package health

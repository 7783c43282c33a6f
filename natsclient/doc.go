// Package natsclient manages a NATS connection for schoolcache.
//
// The Client wraps nats.go with a small circuit breaker, connection status
// tracking and health-change listeners. The cache uses it for two things:
//
//   - JetStream KeyValue buckets, wrapped by KVStore and used as a shared
//     persistent store by kvstore/natskv.
//   - Reachability: health listeners registered with OnHealthChange drive
//     the reachability monitor, so the cache knows when the device is
//     offline.
//
// Basic use:
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//		natsclient.WithName("schoolcache"),
//		natsclient.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	if err := client.Connect(ctx); err != nil {
//		return err
//	}
//	defer client.Close(ctx)
//
//	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{Bucket: "schoolcache"})
//
// The circuit opens after a configurable number of consecutive failures and
// rejects bucket operations with ErrCircuitOpen until a later success or an
// explicit reset.
//
// NewTestClient starts a NATS server in a container via testcontainers-go for
// integration tests.
package natsclient

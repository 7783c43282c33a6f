// Package worker provides a generic bounded worker pool.
//
// A Pool runs a fixed number of goroutines that drain a buffered queue of
// work items through a single processor function. Work can be submitted
// without blocking (Submit, which drops when the queue is full) or with
// backpressure (SubmitWait, which blocks until there is room or the context
// ends). An optional rate limiter paces how fast workers pick up items.
//
// Stop closes the queue and waits for queued items to finish:
//
//	pool := worker.NewPool(4, 64, process,
//		worker.WithRateLimit[Task](rate.NewLimiter(20, 1)))
//	_ = pool.Start(ctx)
//	for _, t := range tasks {
//		_ = pool.SubmitWait(ctx, t)
//	}
//	_ = pool.Stop(30 * time.Second)
//
// Metrics are registered with a metric.MetricsRegistry when WithMetricsRegistry
// is supplied.
package worker

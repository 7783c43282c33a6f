package fetcher

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/schoolcache/cache"
	"github.com/c360/schoolcache/errors"
	"github.com/c360/schoolcache/pkg/worker"
)

// WarmTask preloads one key.
type WarmTask struct {
	Key    string
	Scope  cache.Scope
	Config cache.Config
	Fetch  func(ctx context.Context) (any, error)
}

// WarmReport counts task outcomes.
type WarmReport struct {
	Warmed  int `json:"warmed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type warmTally struct {
	warmed atomic.Int64
	failed atomic.Int64
	wg     sync.WaitGroup
}

type warmJob struct {
	ctx   context.Context
	task  WarmTask
	tally *warmTally
}

func (f *Fetcher) startWarmPool() {
	f.warmOnce.Do(func() {
		var opts []worker.Option[warmJob]
		if f.registry != nil {
			opts = append(opts, worker.WithMetricsRegistry[warmJob](f.registry, f.prefix+"_warm"))
		}
		if f.warmLimiter != nil {
			opts = append(opts, worker.WithRateLimit[warmJob](f.warmLimiter))
		}

		ctx, cancel := context.WithCancel(context.Background())
		pool := worker.NewPool(f.warmWorkers, f.warmWorkers*16, f.runWarmJob, opts...)
		if err := pool.Start(ctx); err != nil {
			cancel()
			f.logger.Error("warm pool failed to start", "error", err)
			return
		}
		f.warmPool = pool
		f.warmCancel = cancel
	})
}

func (f *Fetcher) runWarmJob(_ context.Context, job warmJob) error {
	defer job.tally.wg.Done()

	if err := job.ctx.Err(); err != nil {
		job.tally.failed.Add(1)
		return err
	}
	start := time.Now()
	data, err := job.task.Fetch(job.ctx)
	f.metrics.remote(time.Since(start), err)
	if err != nil {
		job.tally.failed.Add(1)
		f.logger.Warn("warm task failed", "key", job.task.Key, "error", err)
		return err
	}
	f.cache.Set(job.ctx, job.task.Key, data, job.task.Config, job.task.Scope)
	job.tally.warmed.Add(1)
	return nil
}

// Warm loads tasks into the cache, high priority first. Tasks whose key is
// already fresh, or whose policy does not persist, are skipped. Warm waits
// for every submitted task and returns ctx's error if it gives up early.
func (f *Fetcher) Warm(ctx context.Context, tasks []WarmTask) (WarmReport, error) {
	var report WarmReport

	ordered := slices.Clone(tasks)
	slices.SortStableFunc(ordered, func(a, b WarmTask) int {
		return a.Config.Priority.Rank() - b.Config.Priority.Rank()
	})

	f.startWarmPool()
	if f.warmPool == nil {
		return report, errors.WrapFatal(errors.ErrNotStarted, "Fetcher", "Warm", "warm pool unavailable")
	}

	tally := &warmTally{}
	for _, task := range ordered {
		if task.Fetch == nil || !task.Config.PersistLocally || task.Config.TTL <= 0 {
			report.Skipped++
			continue
		}
		if _, fresh := f.cache.Get(ctx, task.Key, task.Config, task.Scope); fresh {
			report.Skipped++
			continue
		}

		tally.wg.Add(1)
		if err := f.warmPool.SubmitWait(ctx, warmJob{ctx: ctx, task: task, tally: tally}); err != nil {
			tally.wg.Done()
			tally.failed.Add(1)
			f.logger.Warn("warm task not submitted", "key", task.Key, "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		tally.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	report.Warmed = int(tally.warmed.Load())
	report.Failed = int(tally.failed.Load())
	f.logger.Info("cache warm finished", "warmed", report.Warmed, "skipped", report.Skipped, "failed", report.Failed)
	return report, err
}

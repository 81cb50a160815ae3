package jobs

import (
	"context"
	"log/slog"
	"time"

	"crawlforge/internal/model"
)

// Executor runs one job's work to completion and reports the outcome.
// CrawlExecutor (batch.go) satisfies this for both JobTypeCrawl (single request)
// and JobTypeBatchCrawl (Requests is non-empty).
type Executor interface {
	Execute(ctx context.Context, job model.Job) (*model.BatchResult, error)
}

// WorkerOptions tunes the poll loop; zero values fall back to defaults.
type WorkerOptions struct {
	PollInterval      time.Duration
	MaxConcurrentJobs int
	Notify            <-chan struct{}
}

// Worker polls a Registry for pending jobs and runs them through an
// Executor with bounded concurrency, mirroring the semaphore-plus-ticker
// loop used across this codebase's background processors.
type Worker struct {
	registry Registry
	executor Executor
	logger   *slog.Logger
	opts     WorkerOptions
}

// NewWorker constructs a Worker. logger may be nil, in which case
// slog.Default() is used.
func NewWorker(registry Registry, executor Executor, opts WorkerOptions, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.MaxConcurrentJobs <= 0 {
		opts.MaxConcurrentJobs = 4
	}
	return &Worker{registry: registry, executor: executor, logger: logger, opts: opts}
}

// Run blocks until ctx is cancelled, draining pending jobs as capacity
// allows. A wakeup on opts.Notify short-circuits the next poll tick;
// it's optional, purely a latency optimization over the ticker.
func (w *Worker) Run(ctx context.Context) {
	sem := make(chan struct{}, w.opts.MaxConcurrentJobs)
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.opts.Notify:
		}

		capacity := w.opts.MaxConcurrentJobs - len(sem)
		if capacity <= 0 {
			continue
		}

		claimed, err := w.registry.ClaimPending(ctx, capacity)
		if err != nil {
			w.logger.Error("claim pending jobs", "error", err)
			continue
		}

		for _, job := range claimed {
			job := job
			sem <- struct{}{}
			go func() {
				defer func() { <-sem }()
				w.runJob(ctx, job)
			}()
		}
	}
}

func (w *Worker) runJob(ctx context.Context, job model.Job) {
	result, err := w.executor.Execute(ctx, job)
	if err != nil {
		w.logger.Error("job execution failed", "job_id", job.ID, "error", err)
		if uerr := w.registry.UpdateStatus(ctx, job.ID, model.JobFailed, result, err.Error()); uerr != nil {
			w.logger.Error("mark job failed", "job_id", job.ID, "error", uerr)
		}
		return
	}

	if err := w.registry.UpdateStatus(ctx, job.ID, model.JobCompleted, result, ""); err != nil {
		w.logger.Error("mark job completed", "job_id", job.ID, "error", err)
	}
}

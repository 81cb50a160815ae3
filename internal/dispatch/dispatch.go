// Package dispatch implements C8: the sync/async routing decision in front
// of a crawl request. It composes C5 (cost estimation) with C6 (the job
// registry) and adds no crawling logic of its own.
package dispatch

import (
	"context"
	"time"

	"crawlforge/internal/costestimate"
	"crawlforge/internal/jobs"
	"crawlforge/internal/metrics"
	"crawlforge/internal/model"
)

// DefaultThreshold is the estimated-duration cutoff above which a single-URL
// request is dispatched asynchronously instead of run inline.
const DefaultThreshold = 5 * time.Second

// CrawlExecutor runs one crawl synchronously; satisfied by
// *crawl.Orchestrator.
type CrawlExecutor interface {
	Execute(ctx context.Context, req model.CrawlRequest) model.CrawlResult
}

// Dispatcher decides, per request, whether to run a crawl inline or hand it
// to the job registry for the worker pool to pick up later.
type Dispatcher struct {
	Crawl     CrawlExecutor
	Jobs      jobs.Registry
	Threshold time.Duration
	Metrics   *metrics.Metrics
}

// New constructs a Dispatcher with the default threshold.
func New(crawl CrawlExecutor, registry jobs.Registry) *Dispatcher {
	return &Dispatcher{Crawl: crawl, Jobs: registry, Threshold: DefaultThreshold}
}

// Dispatch routes a single-URL request per spec.md §4.4: force_sync always
// runs inline; otherwise the request runs inline only if its estimated
// duration is under the threshold, else it becomes a pending job.
func (d *Dispatcher) Dispatch(ctx context.Context, req model.CrawlRequest) (model.DispatchResponse, error) {
	if req.Options.ForceSync {
		d.Metrics.RecordDispatch(false, "force_sync")
		return d.runInline(ctx, req), nil
	}

	estimate := costestimate.Estimate(req.URL, req.Options)
	threshold := d.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if estimate < threshold.Seconds() {
		d.Metrics.RecordDispatch(false, "under_threshold")
		return d.runInline(ctx, req), nil
	}

	job, err := d.Jobs.Create(ctx, model.JobTypeCrawl, req, nil)
	if err != nil {
		return model.DispatchResponse{}, err
	}
	d.Metrics.RecordDispatch(true, "over_threshold")
	return model.DispatchResponse{
		Async:         true,
		JobID:         job.ID,
		EstimatedTime: estimate,
		Status:        job.Status,
	}, nil
}

// DispatchBatch routes a multi-URL request. Per spec.md §4.4, a batch of
// more than one URL is always async regardless of force_sync or estimate;
// a batch of exactly one URL is routed the same way a single request would
// be.
func (d *Dispatcher) DispatchBatch(ctx context.Context, reqs []model.CrawlRequest) (model.DispatchResponse, error) {
	if len(reqs) == 1 {
		return d.Dispatch(ctx, reqs[0])
	}

	var totalEstimate float64
	for _, req := range reqs {
		totalEstimate += costestimate.Estimate(req.URL, req.Options)
	}

	primary := model.CrawlRequest{}
	if len(reqs) > 0 {
		primary = reqs[0]
	}
	job, err := d.Jobs.Create(ctx, model.JobTypeBatchCrawl, primary, reqs)
	if err != nil {
		return model.DispatchResponse{}, err
	}
	d.Metrics.RecordDispatch(true, "batch")
	return model.DispatchResponse{
		Async:         true,
		JobID:         job.ID,
		EstimatedTime: totalEstimate,
		Status:        job.Status,
	}, nil
}

func (d *Dispatcher) runInline(ctx context.Context, req model.CrawlRequest) model.DispatchResponse {
	result := d.Crawl.Execute(ctx, req)
	return model.DispatchResponse{Async: false, Result: &result}
}

package jobs

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"crawlforge/internal/model"
)

// CrawlFunc runs one crawl to completion. It must not panic; errors are
// reported through CrawlResult.ErrorKind/ErrorMessage, not a Go error, so
// that one bad URL in a batch never aborts its siblings.
type CrawlFunc func(ctx context.Context, req model.CrawlRequest) model.CrawlResult

// ArtifactReader reads back a previously saved artifact's raw bytes by
// storage path. *artifact.Store satisfies this; batch.go depends on the
// narrow interface rather than the concrete type so it can be faked in
// tests without standing up a real Blob.
type ArtifactReader interface {
	Get(ctx context.Context, storagePath string) ([]byte, error)
}

// CrawlExecutor adapts a CrawlFunc into the Executor interface the worker
// pool drains, handling both single-URL (JobTypeCrawl) and multi-URL
// (JobTypeBatchCrawl) jobs.
type CrawlExecutor struct {
	Crawl            CrawlFunc
	Artifacts        ArtifactReader
	MaxConcurrency   int
	StopOnFirstError bool
}

// NewCrawlExecutor builds a CrawlExecutor with a default concurrency of 5.
func NewCrawlExecutor(crawl CrawlFunc, artifacts ArtifactReader) *CrawlExecutor {
	return &CrawlExecutor{Crawl: crawl, Artifacts: artifacts, MaxConcurrency: 5}
}

func (e *CrawlExecutor) Execute(ctx context.Context, job model.Job) (*model.BatchResult, error) {
	requests := job.Requests
	if len(requests) == 0 {
		requests = []model.CrawlRequest{job.Request}
	}

	concurrency := e.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	results := make([]model.CrawlResult, len(requests))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var stopped bool
	var mu sync.Mutex

	start := time.Now()

	for i, req := range requests {
		mu.Lock()
		if stopped {
			mu.Unlock()
			break
		}
		mu.Unlock()

		i, req := i, req
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			res := e.Crawl(ctx, req)
			results[i] = res

			if !res.Success && e.StopOnFirstError {
				mu.Lock()
				stopped = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return e.aggregate(ctx, results, time.Since(start)), nil
}

// aggregate builds the BatchResult summary, collating each successful
// result's markdown into one combined document. Per SPEC_FULL.md's batch
// collation resolution, the collated copy is read back from the artifact
// store rather than trusting the in-memory CrawlResult.Markdown, so the
// combined document reflects what was actually persisted; when no artifact
// store is wired (Artifacts nil) or a result was never saved, it falls back
// to the in-memory field instead of dropping the section.
func (e *CrawlExecutor) aggregate(ctx context.Context, results []model.CrawlResult, elapsed time.Duration) *model.BatchResult {
	out := &model.BatchResult{Total: len(results)}

	var collated strings.Builder
	for _, r := range results {
		// A result left unset because StopOnFirstError aborted the batch
		// before its goroutine ran; skip it rather than counting it as a
		// failure it never attempted.
		if r.URL == "" && !r.Success {
			out.Total--
			continue
		}

		if r.Success {
			out.Completed++
			out.TotalWords += countWords(r.Markdown)
			out.TotalChars += len(r.Markdown)
			if md := e.collatedMarkdownFor(ctx, r); md != "" {
				fmt.Fprintf(&collated, "## %s\n\n%s\n\n", r.URL, md)
			}
		} else {
			out.Failed++
		}
	}

	out.Results = results
	out.CollatedMarkdown = collated.String()
	out.TotalTimeSeconds = elapsed.Seconds()
	if out.Total > 0 {
		out.AverageTimePerURL = out.TotalTimeSeconds / float64(out.Total)
	}
	return out
}

// collatedMarkdownFor resolves the markdown text to include in the collated
// document for one sub-result: the artifact-store copy if one was saved and
// is readable, otherwise the in-memory copy the crawl itself produced.
func (e *CrawlExecutor) collatedMarkdownFor(ctx context.Context, r model.CrawlResult) string {
	if e.Artifacts == nil {
		return r.Markdown
	}
	ref, ok := r.Artifacts["markdown"]
	if !ok {
		return r.Markdown
	}
	data, err := e.Artifacts.Get(ctx, ref.StoragePath)
	if err != nil {
		return r.Markdown
	}
	return string(data)
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

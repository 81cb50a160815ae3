package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawlforge/internal/model"
)

func TestCrawlExecutorSingleJob(t *testing.T) {
	exec := NewCrawlExecutor(func(ctx context.Context, req model.CrawlRequest) model.CrawlResult {
		return model.CrawlResult{Success: true, URL: req.URL, Markdown: "hello world"}
	}, nil)

	job := model.Job{Type: model.JobTypeCrawl, Request: model.CrawlRequest{URL: "https://example.com"}}
	result, err := exec.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Completed)
	assert.Equal(t, 0, result.Failed)
	assert.Contains(t, result.CollatedMarkdown, "hello world")
}

func TestCrawlExecutorBatchAggregatesSuccessAndFailure(t *testing.T) {
	exec := NewCrawlExecutor(func(ctx context.Context, req model.CrawlRequest) model.CrawlResult {
		if req.URL == "https://bad.example" {
			return model.CrawlResult{Success: false, URL: req.URL, ErrorKind: model.ErrNavigationTimeout}
		}
		return model.CrawlResult{Success: true, URL: req.URL, Markdown: "content for " + req.URL}
	}, nil)

	job := model.Job{
		Type: model.JobTypeBatchCrawl,
		Requests: []model.CrawlRequest{
			{URL: "https://good1.example"},
			{URL: "https://bad.example"},
			{URL: "https://good2.example"},
		},
	}

	result, err := exec.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Completed)
	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, result.CollatedMarkdown, "good1.example")
	assert.Contains(t, result.CollatedMarkdown, "good2.example")
	assert.NotContains(t, result.CollatedMarkdown, "content for https://bad.example")
}

func TestCrawlExecutorRespectsConcurrencyLimit(t *testing.T) {
	inFlight := make(chan struct{}, 100)
	maxObserved := 0
	done := make(chan struct{})

	exec := NewCrawlExecutor(func(ctx context.Context, req model.CrawlRequest) model.CrawlResult {
		inFlight <- struct{}{}
		if len(inFlight) > maxObserved {
			maxObserved = len(inFlight)
		}
		time.Sleep(20 * time.Millisecond)
		<-inFlight
		return model.CrawlResult{Success: true, URL: req.URL}
	}, nil)
	exec.MaxConcurrency = 2

	reqs := make([]model.CrawlRequest, 6)
	for i := range reqs {
		reqs[i] = model.CrawlRequest{URL: "https://example.com"}
	}

	job := model.Job{Type: model.JobTypeBatchCrawl, Requests: reqs}
	_, err := exec.Execute(context.Background(), job)
	require.NoError(t, err)
	close(done)
	assert.LessOrEqual(t, maxObserved, 2)
}

func TestCrawlExecutorStopOnFirstError(t *testing.T) {
	exec := NewCrawlExecutor(func(ctx context.Context, req model.CrawlRequest) model.CrawlResult {
		if req.URL == "https://bad.example" {
			return model.CrawlResult{Success: false, URL: req.URL}
		}
		time.Sleep(5 * time.Millisecond)
		return model.CrawlResult{Success: true, URL: req.URL}
	}, nil)
	exec.MaxConcurrency = 1
	exec.StopOnFirstError = true

	job := model.Job{
		Type: model.JobTypeBatchCrawl,
		Requests: []model.CrawlRequest{
			{URL: "https://bad.example"},
			{URL: "https://good.example"},
		},
	}

	result, err := exec.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
}

// fakeArtifactReader serves canned bytes keyed by storage path, standing in
// for artifact.Store without a real Blob.
type fakeArtifactReader struct {
	data map[string][]byte
}

func (f *fakeArtifactReader) Get(ctx context.Context, storagePath string) ([]byte, error) {
	data, ok := f.data[storagePath]
	if !ok {
		return nil, assert.AnError
	}
	return data, nil
}

func TestCrawlExecutorCollationReadsFromArtifactStore(t *testing.T) {
	reader := &fakeArtifactReader{data: map[string][]byte{
		"users/abc/stored.md": []byte("stored markdown, not the in-memory copy"),
	}}

	exec := NewCrawlExecutor(func(ctx context.Context, req model.CrawlRequest) model.CrawlResult {
		return model.CrawlResult{
			Success:  true,
			URL:      req.URL,
			Markdown: "stale in-memory copy",
			Artifacts: map[string]model.ArtifactReference{
				"markdown": {StoragePath: "users/abc/stored.md"},
			},
		}
	}, reader)

	job := model.Job{Type: model.JobTypeCrawl, Request: model.CrawlRequest{URL: "https://example.com"}}
	result, err := exec.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Contains(t, result.CollatedMarkdown, "stored markdown, not the in-memory copy")
	assert.NotContains(t, result.CollatedMarkdown, "stale in-memory copy")
}

func TestCrawlExecutorCollationFallsBackWhenArtifactMissing(t *testing.T) {
	reader := &fakeArtifactReader{data: map[string][]byte{}}

	exec := NewCrawlExecutor(func(ctx context.Context, req model.CrawlRequest) model.CrawlResult {
		return model.CrawlResult{Success: true, URL: req.URL, Markdown: "in-memory fallback"}
	}, reader)

	job := model.Job{Type: model.JobTypeCrawl, Request: model.CrawlRequest{URL: "https://example.com"}}
	result, err := exec.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Contains(t, result.CollatedMarkdown, "in-memory fallback")
}

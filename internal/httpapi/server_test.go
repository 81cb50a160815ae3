package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawlforge/internal/dispatch"
	"crawlforge/internal/jobs"
	"crawlforge/internal/llmprovider"
	"crawlforge/internal/model"
	"crawlforge/internal/tools"
	"crawlforge/internal/toolbag"
	"crawlforge/internal/workflow"
)

type fakeCrawlExecutor struct{ result model.CrawlResult }

func (f *fakeCrawlExecutor) Execute(ctx context.Context, req model.CrawlRequest) model.CrawlResult {
	return f.result
}

type echoProvider struct{}

func (echoProvider) Name() string { return "fake" }
func (echoProvider) Generate(ctx context.Context, req model.GenerateRequest) (model.GenerateResponse, error) {
	return model.GenerateResponse{Content: "done"}, nil
}

func newTestServer(t *testing.T) (*Server, jobs.Registry) {
	t.Helper()
	registry := jobs.NewInMemoryRegistry()
	d := dispatch.New(&fakeCrawlExecutor{result: model.CrawlResult{Success: true, URL: "https://example.com"}}, registry)

	toolsReg := tools.NewRegistry()
	tb := toolbag.New(toolsReg, llmprovider.NewRegistry(echoProvider{}), nil)
	wf := workflow.New(tb)

	srv := New(Deps{Dispatch: d, Jobs: registry, Toolbag: tb, Workflow: wf})
	return srv, registry
}

func TestHealthzReturnsOK(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPostCrawlDispatchesInline(t *testing.T) {
	srv, _ := newTestServer(t)
	body, _ := json.Marshal(map[string]any{"url": "https://example.com"})
	req := httptest.NewRequest(http.MethodPost, "/v1/crawl", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out model.DispatchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.Async)
	require.NotNil(t, out.Result)
	assert.True(t, out.Result.Success)
}

func TestPostCrawlRejectsMissingURL(t *testing.T) {
	srv, _ := newTestServer(t)
	body, _ := json.Marshal(map[string]any{})
	req := httptest.NewRequest(http.MethodPost, "/v1/crawl", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetJobStatusNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/does-not-exist", nil)
	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetJobStatusReturnsCreatedJob(t *testing.T) {
	srv, registry := newTestServer(t)
	job, err := registry.Create(context.Background(), model.JobTypeCrawl, model.CrawlRequest{URL: "https://example.com"}, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+job.ID, nil)
	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPostToolsExecuteRejectsMissingFields(t *testing.T) {
	srv, _ := newTestServer(t)
	body, _ := json.Marshal(map[string]any{"query": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/v1/tools/execute", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostWorkflowUnknownNameReturns404(t *testing.T) {
	srv, _ := newTestServer(t)
	body, _ := json.Marshal(map[string]any{"query": "hello", "provider": "fake", "apiKey": "key"})
	req := httptest.NewRequest(http.MethodPost, "/v1/workflows/does_not_exist", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawlforge/internal/model"
)

type fakeCrawlExecutor struct {
	result model.CrawlResult
}

func (f *fakeCrawlExecutor) Execute(ctx context.Context, req model.CrawlRequest) model.CrawlResult {
	r := f.result
	r.URL = req.URL
	return r
}

func TestRegisterCrawlToolsRegistersFour(t *testing.T) {
	reg := NewRegistry()
	exec := &fakeCrawlExecutor{result: model.CrawlResult{Success: true, Title: "Example"}}
	require.NoError(t, RegisterCrawlTools(reg, exec))
	assert.Len(t, reg.GetAll(), 4)
}

func TestCrawlURLToolReturnsMarkdown(t *testing.T) {
	reg := NewRegistry()
	exec := &fakeCrawlExecutor{result: model.CrawlResult{Success: true, Title: "Example", Markdown: "# Example"}}
	require.NoError(t, RegisterCrawlTools(reg, exec))

	result := reg.Execute(context.Background(), "call-1", "crawl_url", map[string]any{"url": "https://example.com"})
	require.False(t, result.IsError)
	out := result.Output.(map[string]any)
	assert.Equal(t, "Example", out["title"])
	assert.Equal(t, "# Example", out["markdown"])
}

func TestTakeScreenshotToolReportsArtifact(t *testing.T) {
	reg := NewRegistry()
	exec := &fakeCrawlExecutor{result: model.CrawlResult{
		Success:         true,
		ScreenshotBytes: []byte("png"),
		Artifacts:       map[string]model.ArtifactReference{"screenshot": {Filename: "shot.png"}},
	}}
	require.NoError(t, RegisterCrawlTools(reg, exec))

	result := reg.Execute(context.Background(), "call-1", "take_screenshot", map[string]any{"url": "https://example.com"})
	require.False(t, result.IsError)
	out := result.Output.(map[string]any)
	assert.Equal(t, true, out["screenshotCaptured"])
}

func TestCrawlURLToolRejectsMissingURL(t *testing.T) {
	reg := NewRegistry()
	exec := &fakeCrawlExecutor{result: model.CrawlResult{Success: true}}
	require.NoError(t, RegisterCrawlTools(reg, exec))

	result := reg.Execute(context.Background(), "call-1", "crawl_url", map[string]any{})
	assert.True(t, result.IsError)
}

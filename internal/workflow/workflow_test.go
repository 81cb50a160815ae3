package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawlforge/internal/llmprovider"
	"crawlforge/internal/model"
	"crawlforge/internal/tools"
	"crawlforge/internal/toolbag"
)

type alwaysDoneProvider struct{}

func (alwaysDoneProvider) Name() string { return "fake" }
func (alwaysDoneProvider) Generate(ctx context.Context, req model.GenerateRequest) (model.GenerateResponse, error) {
	return model.GenerateResponse{Content: "step complete"}, nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	reg := tools.NewRegistry()
	for _, name := range []string{"create_session", "crawl_url", "analyze_content", "generate_report", "extract_markdown"} {
		tool, err := tools.New(name, "test tool "+name, func(ctx context.Context, args struct {
			Text string `json:"text,omitempty"`
		}) (any, error) {
			return map[string]any{"ok": true}, nil
		})
		require.NoError(t, err)
		require.NoError(t, reg.Register(tool))
	}

	providers := llmprovider.NewRegistry(alwaysDoneProvider{})
	tb := toolbag.New(reg, providers, nil)
	return New(tb)
}

func TestRunUnknownWorkflowErrors(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Run(context.Background(), "does_not_exist", "q", "fake", "m", "key")
	assert.Error(t, err)
}

func TestRunAnalyzeWebsiteExecutesAllSteps(t *testing.T) {
	e := newTestEngine(t)
	result, err := e.Run(context.Background(), "analyze_website", "summarize example.com", "fake", "m", "key")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, Recipes["analyze_website"].Tools, result.ToolsExecuted)
}

func TestAsWorkflowRendersStepsInOrder(t *testing.T) {
	wf := Recipes["extract_data"].AsWorkflow()
	assert.Equal(t, "extract_data", wf.Name)
	require.Len(t, wf.Steps, 2)
	assert.Equal(t, "create_session", wf.Steps[0].Tool)
	assert.Equal(t, "extract_markdown", wf.Steps[1].Tool)
}

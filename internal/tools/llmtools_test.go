package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSummarizer struct {
	summary  string
	err      error
	lastText string
}

func (f *fakeSummarizer) Summarize(ctx context.Context, text, provider, token, model string) (string, error) {
	f.lastText = text
	return f.summary, f.err
}

func TestAnalyzeContentToolReturnsSummary(t *testing.T) {
	fake := &fakeSummarizer{summary: "three sentence summary"}
	reg := NewRegistry()
	require.NoError(t, RegisterLLMTools(reg, fake))

	result := reg.Execute(context.Background(), "call-1", "analyze_content", map[string]any{
		"content":  "some page text",
		"provider": "anthropic",
		"apiKey":   "sk-test",
	})
	require.False(t, result.IsError, result.Error)
	out := result.Output.(map[string]any)
	assert.Equal(t, "three sentence summary", out["summary"])
	assert.Equal(t, "some page text", fake.lastText)
}

func TestGenerateReportToolJoinsSections(t *testing.T) {
	fake := &fakeSummarizer{summary: "final report"}
	reg := NewRegistry()
	require.NoError(t, RegisterLLMTools(reg, fake))

	result := reg.Execute(context.Background(), "call-1", "generate_report", map[string]any{
		"sections": []string{"first finding", "second finding"},
		"provider": "openai",
		"apiKey":   "sk-test",
	})
	require.False(t, result.IsError, result.Error)
	out := result.Output.(map[string]any)
	assert.Equal(t, "final report", out["report"])
	assert.Contains(t, fake.lastText, "first finding")
	assert.Contains(t, fake.lastText, "second finding")
}

func TestAnalyzeContentToolRejectsMissingProvider(t *testing.T) {
	fake := &fakeSummarizer{summary: "x"}
	reg := NewRegistry()
	require.NoError(t, RegisterLLMTools(reg, fake))

	result := reg.Execute(context.Background(), "call-1", "analyze_content", map[string]any{
		"content": "text only",
		"apiKey":  "sk-test",
	})
	assert.True(t, result.IsError)
}

package llmprovider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawlforge/internal/model"
)

type fakeProvider struct {
	name     string
	response model.GenerateResponse
	err      error
	lastReq  model.GenerateRequest
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) Generate(ctx context.Context, req model.GenerateRequest) (model.GenerateResponse, error) {
	f.lastReq = req
	return f.response, f.err
}

func TestSummarizerUsesRequestedProvider(t *testing.T) {
	fake := &fakeProvider{name: "anthropic", response: model.GenerateResponse{Content: "a short summary"}}
	reg := NewRegistry(fake)
	s := NewSummarizer(reg)

	summary, err := s.Summarize(context.Background(), "long page text", "anthropic", "sk-test", "claude-sonnet-4-20250514")
	require.NoError(t, err)
	assert.Equal(t, "a short summary", summary)
	assert.Equal(t, "sk-test", fake.lastReq.APIKey)
	assert.Equal(t, "claude-sonnet-4-20250514", fake.lastReq.Model)
}

func TestSummarizerUnknownProviderErrors(t *testing.T) {
	reg := NewRegistry()
	s := NewSummarizer(reg)

	_, err := s.Summarize(context.Background(), "text", "nonexistent", "token", "model")
	assert.Error(t, err)
}

func TestSummarizerTruncatesLongText(t *testing.T) {
	fake := &fakeProvider{name: "anthropic", response: model.GenerateResponse{Content: "ok"}}
	reg := NewRegistry(fake)
	s := NewSummarizer(reg)

	longText := make([]byte, 30000)
	for i := range longText {
		longText[i] = 'a'
	}
	_, err := s.Summarize(context.Background(), string(longText), "anthropic", "tok", "m")
	require.NoError(t, err)
	assert.Less(t, len(fake.lastReq.Messages[0].Content), 25000)
}

func TestRegistryGetMissingProvider(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.Get("missing")
	assert.False(t, ok)
}

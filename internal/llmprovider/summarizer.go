package llmprovider

import (
	"context"
	"fmt"

	"crawlforge/internal/model"
)

const summarizePrompt = "Summarize the following page content in three to five sentences, focused on its main topic and key facts:\n\n"

// Summarizer adapts a Registry into crawl.Summarizer: the orchestrator's
// optional post-extraction pass that turns a page's text into a short
// summary. A failure here is reported as an error, never a panic; the
// orchestrator already treats summarization as best-effort.
type Summarizer struct {
	Registry *Registry
}

// NewSummarizer builds a Summarizer over registry.
func NewSummarizer(registry *Registry) *Summarizer {
	return &Summarizer{Registry: registry}
}

// Summarize implements crawl.Summarizer.
func (s *Summarizer) Summarize(ctx context.Context, text, provider, token, modelName string) (string, error) {
	p, ok := s.Registry.Get(provider)
	if !ok {
		return "", fmt.Errorf("unknown llm provider %q", provider)
	}

	if len(text) > 20000 {
		text = text[:20000]
	}

	resp, err := p.Generate(ctx, model.GenerateRequest{
		Messages: []model.Message{{Role: "user", Content: summarizePrompt + text}},
		Model:    modelName,
		APIKey:   token,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

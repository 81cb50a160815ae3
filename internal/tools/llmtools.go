package tools

import (
	"context"
	"fmt"
	"strings"
)

// ContentSummarizer is the subset of *llmprovider.Summarizer the LLM-facing
// tools need, named separately so tests can substitute a fake without
// importing the llmprovider package (which would make internal/tools depend
// on internal/llmprovider, inverting the intended dependency direction).
type ContentSummarizer interface {
	Summarize(ctx context.Context, text, provider, token, model string) (string, error)
}

// RegisterLLMTools registers analyze_content and generate_report: the two
// tools that route through an LLM provider rather than the browser. Both
// take the page/session text to work from directly as an argument rather
// than re-fetching it, since the model typically already has that text in
// context from a prior crawl_url/extract_markdown call.
func RegisterLLMTools(reg *Registry, summarizer ContentSummarizer) error {
	analyze, err := New("analyze_content", "Summarize and extract key points from crawled page content using an LLM.", func(ctx context.Context, args analyzeContentArgs) (any, error) {
		summary, err := summarizer.Summarize(ctx, args.Content, args.Provider, args.APIKey, args.Model)
		if err != nil {
			return nil, fmt.Errorf("analyze content: %w", err)
		}
		return map[string]any{"summary": summary}, nil
	})
	if err != nil {
		return err
	}
	if err := reg.Register(analyze); err != nil {
		return err
	}

	report, err := New("generate_report", "Compose a final report from one or more prior analysis snippets.", func(ctx context.Context, args generateReportArgs) (any, error) {
		combined := strings.Join(args.Sections, "\n\n---\n\n")
		summary, err := summarizer.Summarize(ctx, combined, args.Provider, args.APIKey, args.Model)
		if err != nil {
			return nil, fmt.Errorf("generate report: %w", err)
		}
		return map[string]any{"report": summary}, nil
	})
	if err != nil {
		return err
	}
	return reg.Register(report)
}

type analyzeContentArgs struct {
	Content  string `json:"content" jsonschema:"required,description=The page text or markdown to analyze"`
	Provider string `json:"provider" jsonschema:"required,description=LLM provider name, e.g. anthropic or openai"`
	APIKey   string `json:"apiKey" jsonschema:"required,description=API key for the chosen provider"`
	Model    string `json:"model,omitempty" jsonschema:"description=Model identifier override"`
}

type generateReportArgs struct {
	Sections []string `json:"sections" jsonschema:"required,description=Prior analysis snippets to synthesize into one report"`
	Provider string   `json:"provider" jsonschema:"required,description=LLM provider name, e.g. anthropic or openai"`
	APIKey   string   `json:"apiKey" jsonschema:"required,description=API key for the chosen provider"`
	Model    string   `json:"model,omitempty" jsonschema:"description=Model identifier override"`
}

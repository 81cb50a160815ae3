package tools

import (
	"context"
	"fmt"

	"crawlforge/internal/crawl"
	"crawlforge/internal/model"
)

// CrawlExecutor is the subset of *crawl.Orchestrator the domain tools need,
// named separately so tests can substitute a fake.
type CrawlExecutor interface {
	Execute(ctx context.Context, req model.CrawlRequest) model.CrawlResult
}

var _ CrawlExecutor = (*crawl.Orchestrator)(nil)

// RegisterCrawlTools registers the crawl/content tools an LLM can invoke
// through the toolbag: crawl_url, take_screenshot, extract_markdown, and
// generate_pdf. Each is a thin wrapper around one crawl.Orchestrator.Execute
// call with a fixed option shape, so the registered input schema stays small
// and the model does not need to know the full CrawlOptions surface.
func RegisterCrawlTools(reg *Registry, exec CrawlExecutor) error {
	crawlURL, err := New("crawl_url", "Fetch a URL and return its page title, HTML, and markdown content.", func(ctx context.Context, args crawlURLArgs) (any, error) {
		result := exec.Execute(ctx, model.CrawlRequest{
			URL: args.URL,
			Options: model.CrawlOptions{
				JavaScript:         args.JavaScript,
				MarkdownExtraction: model.MarkdownBasic,
				SessionID:          args.SessionID,
			},
		})
		return crawlResultOutput(result), nil
	})
	if err != nil {
		return err
	}

	screenshot, err := New("take_screenshot", "Navigate to a URL and capture a screenshot of the rendered page.", func(ctx context.Context, args screenshotArgs) (any, error) {
		result := exec.Execute(ctx, model.CrawlRequest{
			URL: args.URL,
			Options: model.CrawlOptions{
				JavaScript:     true,
				Screenshot:     true,
				ScreenshotMode: screenshotModeOf(args.FullPage),
				SessionID:      args.SessionID,
			},
		})
		out := crawlResultOutput(result)
		out["screenshotCaptured"] = len(result.ScreenshotBytes) > 0
		if ref, ok := result.Artifacts["screenshot"]; ok {
			out["artifact"] = ref
		}
		return out, nil
	})
	if err != nil {
		return err
	}

	extractMarkdown, err := New("extract_markdown", "Fetch a URL and return its content converted to filtered markdown.", func(ctx context.Context, args extractMarkdownArgs) (any, error) {
		opts := model.CrawlOptions{
			JavaScript:         args.JavaScript,
			MarkdownExtraction: model.MarkdownEnhanced,
			SessionID:          args.SessionID,
		}
		if args.Query != "" {
			opts.Filter = &model.FilterOptions{Kind: model.FilterBM25, Query: args.Query}
		}
		result := exec.Execute(ctx, model.CrawlRequest{URL: args.URL, Options: opts})
		out := crawlResultOutput(result)
		if result.FilteredMarkdown != "" {
			out["filteredMarkdown"] = result.FilteredMarkdown
		}
		return out, nil
	})
	if err != nil {
		return err
	}

	generatePDF, err := New("generate_pdf", "Navigate to a URL and render it to a PDF document.", func(ctx context.Context, args pdfArgs) (any, error) {
		result := exec.Execute(ctx, model.CrawlRequest{
			URL: args.URL,
			Options: model.CrawlOptions{
				JavaScript: true,
				PDF:        true,
				SessionID:  args.SessionID,
			},
		})
		out := crawlResultOutput(result)
		out["pdfCaptured"] = len(result.PDFBytes) > 0
		if ref, ok := result.Artifacts["pdf"]; ok {
			out["artifact"] = ref
		}
		return out, nil
	})
	if err != nil {
		return err
	}

	for _, t := range []*Tool{crawlURL, screenshot, extractMarkdown, generatePDF} {
		if err := reg.Register(t); err != nil {
			return fmt.Errorf("register domain tools: %w", err)
		}
	}
	return nil
}

type crawlURLArgs struct {
	URL        string `json:"url" jsonschema:"required,description=The absolute URL to crawl"`
	JavaScript bool   `json:"javascript,omitempty" jsonschema:"description=Execute page JavaScript before extracting content,default=false"`
	SessionID  string `json:"sessionId,omitempty" jsonschema:"description=Reuse an existing session instead of a one-off page load"`
}

type screenshotArgs struct {
	URL       string `json:"url" jsonschema:"required,description=The absolute URL to screenshot"`
	FullPage  bool   `json:"fullPage,omitempty" jsonschema:"description=Capture the full scrollable page instead of just the viewport,default=false"`
	SessionID string `json:"sessionId,omitempty" jsonschema:"description=Reuse an existing session instead of a one-off page load"`
}

type extractMarkdownArgs struct {
	URL        string `json:"url" jsonschema:"required,description=The absolute URL to extract content from"`
	JavaScript bool   `json:"javascript,omitempty" jsonschema:"description=Execute page JavaScript before extracting content,default=false"`
	Query      string `json:"query,omitempty" jsonschema:"description=Optional relevance query used to filter the extracted markdown"`
	SessionID  string `json:"sessionId,omitempty" jsonschema:"description=Reuse an existing session instead of a one-off page load"`
}

type pdfArgs struct {
	URL       string `json:"url" jsonschema:"required,description=The absolute URL to render to PDF"`
	SessionID string `json:"sessionId,omitempty" jsonschema:"description=Reuse an existing session instead of a one-off page load"`
}

func screenshotModeOf(fullPage bool) model.ScreenshotMode {
	if fullPage {
		return model.ScreenshotFull
	}
	return model.ScreenshotViewport
}

func crawlResultOutput(result model.CrawlResult) map[string]any {
	out := map[string]any{
		"success": result.Success,
		"url":     result.URL,
	}
	if result.Title != "" {
		out["title"] = result.Title
	}
	if result.Markdown != "" {
		out["markdown"] = result.Markdown
	}
	if result.SessionID != "" {
		out["sessionId"] = result.SessionID
	}
	if !result.Success {
		out["error"] = result.ErrorMessage
		out["errorKind"] = string(result.ErrorKind)
	}
	return out
}

// Package markdown turns crawled HTML into markdown, rewrites links as
// numbered citations, and applies optional relevance filters (pruning,
// BM25) to cut noise from the result.
package markdown

import (
	"fmt"
	"strings"

	htmlmd "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"crawlforge/internal/model"
)

// Convert runs the markdown pipeline for mode. MarkdownNone returns an empty
// string without touching html; MarkdownBasic is a direct HTML-to-markdown
// conversion; MarkdownEnhanced additionally rewrites links into numbered
// citations with a trailing References block.
func Convert(htmlStr string, baseURL string, mode model.MarkdownMode) (string, error) {
	switch mode {
	case model.MarkdownNone, "":
		return "", nil
	case model.MarkdownBasic:
		return toMarkdown(htmlStr, baseURL)
	case model.MarkdownEnhanced:
		raw, err := toMarkdown(htmlStr, baseURL)
		if err != nil {
			return "", err
		}
		withCitations, references := ConvertLinksToCitations(raw, baseURL)
		return withCitations + references, nil
	default:
		return "", fmt.Errorf("unknown markdown mode %q", mode)
	}
}

func toMarkdown(htmlStr, baseURL string) (string, error) {
	host := "page"
	if baseURL != "" {
		host = baseURL
	}
	converter := htmlmd.NewConverter(host, true, nil)
	md, err := converter.ConvertString(htmlStr)
	if err != nil {
		// Fall back to plain text rather than failing the whole crawl over
		// a markdown conversion error, matching the original's behavior of
		// degrading gracefully instead of propagating the error.
		doc, parseErr := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
		if parseErr != nil {
			return "", fmt.Errorf("convert html to markdown: %w", err)
		}
		return doc.Text(), nil
	}
	return md, nil
}

package markdown

import (
	"fmt"
	"strings"

	"crawlforge/internal/model"
)

// ApplyFilter runs the content filter named by opts.Kind. Pruning operates
// on the page's source HTML (it needs DOM structure to score), so callers
// pass html; its result is run back through the markdown converter before
// being returned. BM25 operates on already-generated markdown text, so
// callers pass that instead; html is ignored for that kind.
func ApplyFilter(html, markdown string, baseURL string, opts model.FilterOptions) (string, error) {
	switch opts.Kind {
	case model.FilterNone:
		return markdown, nil
	case model.FilterPruning:
		threshold := opts.Threshold
		if threshold == 0 {
			threshold = 0.48
		}
		blocks, err := PruneHTML(html, PruningOptions{
			ThresholdType:    "dynamic",
			Threshold:        threshold,
			MinWordThreshold: opts.MinWords,
		})
		if err != nil {
			return "", fmt.Errorf("pruning filter: %w", err)
		}
		filteredHTML := strings.Join(blocks, "\n")
		filteredMarkdown, err := toMarkdown(filteredHTML, baseURL)
		if err != nil {
			return "", fmt.Errorf("pruning filter markdown conversion: %w", err)
		}
		return filteredMarkdown, nil
	case model.FilterBM25:
		threshold := opts.Threshold
		if threshold == 0 {
			threshold = 0.5
		}
		minWords := opts.MinWords
		if minWords == 0 {
			minWords = 1
		}
		return BlockBM25Filter(markdown, opts.Query, threshold, minWords), nil
	case model.FilterTermFrequency:
		// TermFrequencyFilter has no threshold/min-words concept of its own;
		// it takes a result-count cutoff instead, so MinWords is reused as
		// that top-k count here (0 falls back to its own default of 10).
		return TermFrequencyFilter(markdown, opts.Query, opts.MinWords), nil
	default:
		return "", fmt.Errorf("unknown filter kind %q", opts.Kind)
	}
}

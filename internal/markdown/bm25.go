package markdown

import (
	"math"
	"sort"
	"strings"
)

// TermFrequencyFilter ranks the non-blank lines of content by how many
// times query's terms appear in each line, then returns the top-k lines,
// highest score first; lines with equal scores keep their original relative
// order. This mirrors content_filter.py's apply_bm25_filter, which despite
// its name is a simple term-frequency count, not real BM25 — see
// BlockBM25Filter for an actual BM25 score.
func TermFrequencyFilter(content, query string, topK int) string {
	if topK <= 0 {
		topK = 10
	}
	terms := strings.Fields(strings.ToLower(query))
	lines := strings.Split(content, "\n")

	type scored struct {
		score int
		line  string
	}
	var candidates []scored
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lower := strings.ToLower(line)
		score := 0
		for _, term := range terms {
			if term == "" {
				continue
			}
			score += strings.Count(lower, term)
		}
		if score > 0 {
			candidates = append(candidates, scored{score, line})
		}
	}

	if len(candidates) == 0 {
		return content
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.line
	}
	return strings.Join(out, "\n")
}

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// BlockBM25Filter splits content into non-blank line blocks and scores each
// against query using real BM25 (k1=1.2, b=0.75), treating the page's own
// blocks as the corpus (there is no external corpus to score against at
// crawl time). It returns the blocks scoring above threshold, each at
// least minWords words long, in descending score order.
func BlockBM25Filter(content, query string, threshold float64, minWords int) string {
	blocks := nonBlankLines(content)
	if len(blocks) == 0 {
		return content
	}

	queryTerms := uniqueTerms(query)
	if len(queryTerms) == 0 {
		return content
	}

	docFreq := make(map[string]int)
	blockTerms := make([][]string, len(blocks))
	totalLen := 0
	for i, block := range blocks {
		terms := strings.Fields(strings.ToLower(block))
		blockTerms[i] = terms
		totalLen += len(terms)
		seen := make(map[string]bool)
		for _, t := range terms {
			if !seen[t] {
				seen[t] = true
				docFreq[t]++
			}
		}
	}
	avgLen := float64(totalLen) / float64(len(blocks))
	n := float64(len(blocks))

	type scored struct {
		score float64
		block string
		words int
	}
	var results []scored
	for i, block := range blocks {
		terms := blockTerms[i]
		wordCount := len(terms)
		tf := make(map[string]int)
		for _, t := range terms {
			tf[t]++
		}

		var score float64
		dl := float64(wordCount)
		for _, qt := range queryTerms {
			f := float64(tf[qt])
			if f == 0 {
				continue
			}
			df := float64(docFreq[qt])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			numerator := f * (bm25K1 + 1)
			denominator := f + bm25K1*(1-bm25B+bm25B*dl/avgLen)
			score += idf * numerator / denominator
		}

		if score > threshold && wordCount >= minWords {
			results = append(results, scored{score, block, wordCount})
		}
	}

	if len(results) == 0 {
		return content
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.block
	}
	return strings.Join(out, "\n")
}

func nonBlankLines(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func uniqueTerms(query string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range strings.Fields(strings.ToLower(query)) {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

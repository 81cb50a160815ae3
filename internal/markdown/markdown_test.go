package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawlforge/internal/model"
)

func TestConvertNoneModeReturnsEmpty(t *testing.T) {
	md, err := Convert("<p>hi</p>", "", model.MarkdownNone)
	require.NoError(t, err)
	assert.Empty(t, md)
}

func TestConvertBasicMode(t *testing.T) {
	md, err := Convert("<h1>Title</h1><p>Body text.</p>", "https://example.com", model.MarkdownBasic)
	require.NoError(t, err)
	assert.Contains(t, md, "Title")
	assert.Contains(t, md, "Body text.")
}

func TestConvertEnhancedModeAddsReferences(t *testing.T) {
	html := `<p>See <a href="https://example.com/a">this page</a> for more.</p>`
	md, err := Convert(html, "https://example.com", model.MarkdownEnhanced)
	require.NoError(t, err)
	assert.Contains(t, md, "⟨1⟩")
	assert.Contains(t, md, "## References")
	assert.Contains(t, md, "https://example.com/a")
}

func TestConvertLinksToCitationsFirstOccurrenceOrder(t *testing.T) {
	md := "[first](https://a.example) and [second](https://b.example) and [first again](https://a.example)"
	converted, references := ConvertLinksToCitations(md, "")

	assert.Contains(t, converted, "first⟨1⟩")
	assert.Contains(t, converted, "second⟨2⟩")
	assert.Contains(t, converted, "first again⟨1⟩")
	assert.Contains(t, references, "⟨1⟩ https://a.example")
	assert.Contains(t, references, "⟨2⟩ https://b.example")
}

func TestConvertLinksToCitationsImageSyntax(t *testing.T) {
	md := "![alt text](https://img.example/a.png)"
	converted, _ := ConvertLinksToCitations(md, "")
	assert.Contains(t, converted, "![alt text⟨1⟩]")
}

func TestConvertLinksToCitationsResolvesRelativeURLs(t *testing.T) {
	md := "[relative](/path/page)"
	converted, references := ConvertLinksToCitations(md, "https://example.com/base/")
	assert.Contains(t, converted, "relative⟨1⟩")
	assert.Contains(t, references, "https://example.com/path/page")
}

func TestTermFrequencyFilterKeepsHighestScoringLines(t *testing.T) {
	content := "apple banana\napple apple apple\nnothing relevant\nbanana apple banana"
	filtered := TermFrequencyFilter(content, "apple", 2)
	assert.Contains(t, filtered, "apple apple apple")
}

func TestTermFrequencyFilterReturnsOriginalWhenNoMatches(t *testing.T) {
	content := "one\ntwo\nthree"
	filtered := TermFrequencyFilter(content, "nonexistentterm", 5)
	assert.Equal(t, content, filtered)
}

func TestBlockBM25FilterRanksRelevantBlocksHigher(t *testing.T) {
	content := "golang concurrency patterns explained in depth\n" +
		"a short unrelated note about cooking\n" +
		"more detail on golang goroutines and channels for concurrency"
	filtered := BlockBM25Filter(content, "golang concurrency", 0.0, 1)
	assert.Contains(t, filtered, "goroutines")
	assert.Contains(t, filtered, "patterns explained")
}

func TestBlockBM25FilterEmptyQueryReturnsOriginal(t *testing.T) {
	content := "line one\nline two"
	assert.Equal(t, content, BlockBM25Filter(content, "", 0.1, 1))
}

func TestPruneHTMLDropsLowDensityBoilerplate(t *testing.T) {
	html := `<html><body>
		<nav>Home About Contact</nav>
		<article><p>This is a long paragraph with substantial, meaningful content that should survive pruning because its text density is high relative to its markup.</p></article>
		<div class="social-share">Share Tweet Like</div>
	</body></html>`

	blocks, err := PruneHTML(html, DefaultPruningOptions())
	require.NoError(t, err)
	joined := ""
	for _, b := range blocks {
		joined += b
	}
	assert.Contains(t, joined, "substantial, meaningful content")
	assert.NotContains(t, joined, "Home About Contact")
}

func TestApplyFilterNoneIsPassthrough(t *testing.T) {
	out, err := ApplyFilter("<p>x</p>", "markdown text", "", model.FilterOptions{Kind: model.FilterNone})
	require.NoError(t, err)
	assert.Equal(t, "markdown text", out)
}

func TestApplyFilterBM25UsesMarkdownInput(t *testing.T) {
	md := "golang is great for concurrency\nunrelated cooking note"
	out, err := ApplyFilter("", md, "", model.FilterOptions{Kind: model.FilterBM25, Query: "golang concurrency", Threshold: 0})
	require.NoError(t, err)
	assert.Contains(t, out, "golang is great")
}

func TestApplyFilterTermFrequencyUsesMarkdownInput(t *testing.T) {
	md := "golang is great for concurrency\nunrelated cooking note\nmore golang golang talk"
	out, err := ApplyFilter("", md, "", model.FilterOptions{Kind: model.FilterTermFrequency, Query: "golang", MinWords: 1})
	require.NoError(t, err)
	assert.Contains(t, out, "more golang golang talk")
	assert.NotContains(t, out, "unrelated cooking note")
}

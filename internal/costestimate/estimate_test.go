package costestimate

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"crawlforge/internal/model"
)

func TestEstimateBaseline(t *testing.T) {
	assert.InDelta(t, 1.5, Estimate("https://example.com", model.CrawlOptions{}), 0.001)
}

func TestEstimateAddsJavaScriptAndScreenshot(t *testing.T) {
	opts := model.CrawlOptions{JavaScript: true, Screenshot: true}
	assert.InDelta(t, 1.5+2.0+1.0, Estimate("https://example.com", opts), 0.001)
}

func TestEstimateEnhancedMarkdownAddsExtractionCost(t *testing.T) {
	opts := model.CrawlOptions{MarkdownExtraction: model.MarkdownEnhanced}
	assert.InDelta(t, 1.5+0.5, Estimate("https://example.com", opts), 0.001)
}

func TestEstimateMultipliesByDepth(t *testing.T) {
	opts := model.CrawlOptions{JavaScript: true, Depth: 2}
	base := 1.5 + 2.0
	assert.InDelta(t, base*3, Estimate("https://example.com", opts), 0.001)
}

func TestEstimateNeverNegative(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("estimate is always positive", prop.ForAll(
		func(js, ss bool, depth int) bool {
			if depth < 0 {
				depth = -depth
			}
			opts := model.CrawlOptions{JavaScript: js, Screenshot: ss, Depth: depth % 20}
			return Estimate("https://example.com", opts) > 0
		},
		gen.Bool(),
		gen.Bool(),
		gen.Int(),
	))

	properties.TestingRun(t)
}

package markdown

import (
	"math"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// excludedSelector matches boilerplate chrome (navigation, footers, scripts)
// stripped from the tree entirely before scoring, regardless of how it
// scores.
const excludedSelector = "nav, footer, header, aside, script, style, form, iframe, noscript"

// negativePattern flags class/id names that usually mark non-content
// chrome.
var negativePattern = regexp.MustCompile(`(?i)nav|footer|header|sidebar|ads|comment|promo|advert|social|share`)

var tagImportance = map[string]float64{
	"article": 1.5, "main": 1.4, "section": 1.3,
	"p": 1.2, "h1": 1.4, "h2": 1.3, "h3": 1.2,
	"div": 0.7, "span": 0.6,
}

var tagWeights = map[string]float64{
	"div": 0.5, "p": 1.0, "article": 1.5, "section": 1.0, "span": 0.3,
	"li": 0.5, "ul": 0.5, "ol": 0.5,
	"h1": 1.2, "h2": 1.1, "h3": 1.0, "h4": 0.9, "h5": 0.8, "h6": 0.7,
}

const (
	weightTextDensity  = 0.4
	weightLinkDensity  = 0.2
	weightTagWeight    = 0.2
	weightClassIDScore = 0.1
	weightTextLength   = 0.1
)

// PruningOptions configures PruneHTML.
type PruningOptions struct {
	// ThresholdType is "fixed" (default) or "dynamic". Dynamic scales the
	// base Threshold by tag importance, text ratio, and link ratio before
	// comparing it to a node's score.
	ThresholdType string
	Threshold     float64
	// MinWordThreshold, if set, forces removal of any node whose visible
	// text has fewer words than this, overriding its composite score.
	MinWordThreshold int
}

// DefaultPruningOptions matches the reference implementation's defaults.
func DefaultPruningOptions() PruningOptions {
	return PruningOptions{ThresholdType: "fixed", Threshold: 0.48}
}

// PruneHTML parses htmlStr, strips low-signal subtrees (navigation,
// boilerplate, low text-density containers), and returns the surviving
// top-level content blocks as HTML strings, in document order. Traversal
// and scoring both operate over goquery selections rather than raw
// golang.org/x/net/html nodes, the same DOM library convert.go already
// leans on for its plain-text fallback.
func PruneHTML(htmlStr string, opts PruningOptions) ([]string, error) {
	if strings.TrimSpace(htmlStr) == "" {
		return nil, nil
	}
	if opts.Threshold == 0 {
		opts = DefaultPruningOptions()
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return nil, err
	}

	body := doc.Find("body").First()
	if body.Length() == 0 {
		return nil, nil
	}

	removeComments(body)
	body.Find(excludedSelector).Remove()
	pruneChildren(body, opts)

	var blocks []string
	body.Contents().Each(func(_ int, sel *goquery.Selection) {
		if sel.Get(0).Type != html.ElementNode {
			return
		}
		if strings.TrimSpace(sel.Text()) == "" {
			return
		}
		if rendered, err := goquery.OuterHtml(sel); err == nil {
			blocks = append(blocks, rendered)
		}
	})
	return blocks, nil
}

// pruneChildren scores each of sel's element children and removes whichever
// scored below threshold, recursing into the survivors. sel itself is never
// a removal candidate — it is the current node's already-kept container.
func pruneChildren(sel *goquery.Selection, opts PruningOptions) {
	sel.Children().Each(func(_ int, child *goquery.Selection) {
		if shouldRemove(child, opts) {
			child.Remove()
			return
		}
		pruneChildren(child, opts)
	})
}

func shouldRemove(sel *goquery.Selection, opts PruningOptions) bool {
	text := strings.TrimSpace(sel.Text())
	textLen := len(text)
	inner, _ := sel.Html()
	tagLen := len(inner)
	linkTextLen := directAnchorTextLen(sel)

	score := computeCompositeScore(sel, text, textLen, tagLen, linkTextLen, opts)

	if opts.ThresholdType != "dynamic" {
		return score < opts.Threshold
	}

	tag := goquery.NodeName(sel)
	importance, ok := tagImportance[tag]
	if !ok {
		importance = 0.7
	}
	textRatio := 0.0
	if tagLen > 0 {
		textRatio = float64(textLen) / float64(tagLen)
	}
	linkRatio := 1.0
	if textLen > 0 {
		linkRatio = float64(linkTextLen) / float64(textLen)
	}

	threshold := opts.Threshold
	if importance > 1 {
		threshold *= 0.8
	}
	if textRatio > 0.4 {
		threshold *= 0.9
	}
	if linkRatio > 0.6 {
		threshold *= 1.2
	}
	return score < threshold
}

func computeCompositeScore(sel *goquery.Selection, text string, textLen, tagLen, linkTextLen int, opts PruningOptions) float64 {
	if opts.MinWordThreshold > 0 {
		wordCount := 0
		if text != "" {
			wordCount = strings.Count(text, " ") + 1
		}
		if wordCount < opts.MinWordThreshold {
			return -1.0
		}
	}

	var score, totalWeight float64

	density := 0.0
	if tagLen > 0 {
		density = float64(textLen) / float64(tagLen)
	}
	score += weightTextDensity * density
	totalWeight += weightTextDensity

	linkDensity := 1.0
	if textLen > 0 {
		linkDensity = 1 - float64(linkTextLen)/float64(textLen)
	}
	score += weightLinkDensity * linkDensity
	totalWeight += weightLinkDensity

	tagScore, ok := tagWeights[goquery.NodeName(sel)]
	if !ok {
		tagScore = 0.5
	}
	score += weightTagWeight * tagScore
	totalWeight += weightTagWeight

	classScore := classIDWeight(sel)
	score += weightClassIDScore * math.Max(0, classScore)
	totalWeight += weightClassIDScore

	score += weightTextLength * math.Log(float64(textLen)+1)
	totalWeight += weightTextLength

	if totalWeight > 0 {
		return score / totalWeight
	}
	return 0
}

func classIDWeight(sel *goquery.Selection) float64 {
	score := 0.0
	if class := sel.AttrOr("class", ""); class != "" && startsWithNegativePattern(class) {
		score -= 0.5
	}
	if id := sel.AttrOr("id", ""); id != "" && startsWithNegativePattern(id) {
		score -= 0.5
	}
	return score
}

func startsWithNegativePattern(s string) bool {
	loc := negativePattern.FindStringIndex(s)
	return loc != nil && loc[0] == 0
}

func directAnchorTextLen(sel *goquery.Selection) int {
	total := 0
	sel.ChildrenFiltered("a").Each(func(_ int, a *goquery.Selection) {
		total += len(strings.TrimSpace(a.Text()))
	})
	return total
}

// removeComments strips comment nodes from sel's subtree. goquery has no
// selector for comment nodes (its selector engine, like CSS, only addresses
// elements), so this one helper still walks the underlying html.Node tree
// goquery wraps rather than a Selection.
func removeComments(sel *goquery.Selection) {
	var toRemove []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.CommentNode {
			toRemove = append(toRemove, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	for _, n := range toRemove {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

package crawl

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/temoto/robotstxt"
)

const (
	robotsCacheSize    = 500
	robotsFetchTimeout = 5 * time.Second
	robotsUserAgent    = "crawlforgebot"
)

// RobotsGate fetches and caches parsed robots.txt per host so a crawl loop
// hitting many pages on the same site pays the fetch cost once, not per
// navigation. Grounded on the teacher's internal/crawler/map.go
// fetchRobots, generalized from map-discovery's one-shot fetch into a
// bounded, reusable cache keyed by host.
type RobotsGate struct {
	cache  *lru.Cache[string, *robotstxt.RobotsData]
	client *http.Client
}

// NewRobotsGate constructs a gate with a fixed-size host cache.
func NewRobotsGate() *RobotsGate {
	cache, err := lru.New[string, *robotstxt.RobotsData](robotsCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which robotsCacheSize never is.
		panic(err)
	}
	return &RobotsGate{cache: cache, client: &http.Client{Timeout: robotsFetchTimeout}}
}

// Allowed reports whether rawURL may be fetched per its host's robots.txt.
// A nil gate, an unparseable URL, or a fetch/parse failure all fail open
// (allowed), matching the teacher's fetchRobots behavior of treating robots
// absence as "no restrictions" rather than blocking the crawl outright.
func (g *RobotsGate) Allowed(ctx context.Context, rawURL string) bool {
	if g == nil {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}

	data, ok := g.cache.Get(u.Host)
	if !ok {
		data, _ = g.fetch(ctx, u)
		g.cache.Add(u.Host, data)
	}
	if data == nil {
		return true
	}
	return data.FindGroup(robotsUserAgent).Test(u.Path)
}

func (g *RobotsGate) fetch(ctx context.Context, base *url.URL) (*robotstxt.RobotsData, error) {
	robotsURL := &url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/robots.txt"}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", robotsUserAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return robotstxt.FromStatusAndBytes(resp.StatusCode, body)
}

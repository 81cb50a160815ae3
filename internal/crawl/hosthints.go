package crawl

import (
	"net/url"
	"strings"
	"time"
)

// defaultSettleTime is how long the orchestrator waits after page load
// before treating the DOM as stable, absent a more specific hint.
const defaultSettleTime = 2 * time.Second

// lateHydrationHosts lists hostname suffixes known to finish client-side
// rendering well after the load event fires, so they get a longer settle
// window than the default.
var lateHydrationHosts = map[string]time.Duration{
	"twitter.com":     3500 * time.Millisecond,
	"x.com":           3500 * time.Millisecond,
	"linkedin.com":    3000 * time.Millisecond,
	"instagram.com":   3000 * time.Millisecond,
	"reddit.com":      2500 * time.Millisecond,
	"medium.com":      2500 * time.Millisecond,
	"facebook.com":    3000 * time.Millisecond,
	"notion.site":     3000 * time.Millisecond,
	"airbnb.com":      2500 * time.Millisecond,
	"indeed.com":      2500 * time.Millisecond,
}

// settleTimeFor returns the recommended post-load wait for rawURL's host.
func settleTimeFor(rawURL string) time.Duration {
	u, err := url.Parse(rawURL)
	if err != nil {
		return defaultSettleTime
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	if d, ok := lateHydrationHosts[host]; ok {
		return d
	}
	for suffix, d := range lateHydrationHosts {
		if strings.HasSuffix(host, "."+suffix) {
			return d
		}
	}
	return defaultSettleTime
}

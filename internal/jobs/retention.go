package jobs

import (
	"context"
	"time"

	"crawlforge/internal/metrics"
)

// RetentionOptions configures how long completed/failed jobs survive
// before CleanupExpiredJobs removes them.
type RetentionOptions struct {
	MaxAge time.Duration
}

// DefaultRetentionOptions keeps finished jobs for 7 days.
func DefaultRetentionOptions() RetentionOptions {
	return RetentionOptions{MaxAge: 7 * 24 * time.Hour}
}

// CleanupExpiredJobs deletes completed/failed jobs older than opts.MaxAge
// and records how many were removed.
func CleanupExpiredJobs(ctx context.Context, registry Registry, opts RetentionOptions, m *metrics.Metrics) (int64, error) {
	if opts.MaxAge <= 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().Add(-opts.MaxAge)
	n, err := registry.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	m.RecordRetention("crawl", n)
	return n, nil
}

package jobs

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// jobReadyChannel is the pub/sub channel workers subscribe to so a freshly
// created job is picked up before the next poll tick rather than waiting
// out PollInterval.
const jobReadyChannel = "crawlforge:jobs:ready"

// Notifier publishes job-ready events. It is optional: a worker with no
// Notifier configured just falls back to pure polling.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier wraps an already-configured redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Publish announces that at least one new job is pending. Errors are
// logged, not returned: a missed wakeup only costs one poll interval of
// latency, not correctness.
func (n *Notifier) Publish(ctx context.Context, logger *slog.Logger) {
	if n == nil || n.rdb == nil {
		return
	}
	if err := n.rdb.Publish(ctx, jobReadyChannel, "1").Err(); err != nil {
		if logger != nil {
			logger.Warn("publish job-ready notification", "error", err)
		}
	}
}

// Subscribe returns a channel that receives a value each time a job-ready
// event is published, suitable for WorkerOptions.Notify. The returned
// function closes the underlying subscription.
func (n *Notifier) Subscribe(ctx context.Context) (<-chan struct{}, func()) {
	out := make(chan struct{}, 1)
	if n == nil || n.rdb == nil {
		closed := make(chan struct{})
		close(closed)
		return closed, func() {}
	}

	sub := n.rdb.Subscribe(ctx, jobReadyChannel)
	ch := sub.Channel()

	go func() {
		for range ch {
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()

	return out, func() { _ = sub.Close() }
}

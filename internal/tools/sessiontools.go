package tools

import (
	"context"
	"fmt"

	"crawlforge/internal/session"
)

// RegisterSessionTools registers create_session: an explicit, model-callable
// way to start a long-lived browser session ahead of a series of crawl_url/
// take_screenshot calls that should share one page rather than each opening
// its own ephemeral driver.
func RegisterSessionTools(reg *Registry, pool *session.Pool) error {
	createSession, err := New("create_session", "Start a reusable browser session for subsequent crawl operations.", func(ctx context.Context, args createSessionArgs) (any, error) {
		sess, err := pool.Create(ctx, args.JavaScript)
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		return map[string]any{
			"sessionId": sess.ID,
			"createdAt": sess.CreatedAt,
		}, nil
	})
	if err != nil {
		return err
	}
	return reg.Register(createSession)
}

type createSessionArgs struct {
	JavaScript bool `json:"javascript,omitempty" jsonschema:"description=Enable JavaScript execution in the new session,default=false"`
}

// Package browser drives a single headless-browser page: navigation, script
// injection inside a sandboxed harness, and artifact capture (HTML,
// screenshot, PDF). It is the lowest layer other subsystems (session,
// crawl) build on.
package browser

import (
	"context"
	"fmt"
	"html"
	"io"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"crawlforge/internal/model"
)

// Driver is the browser-control surface a session or orchestrator needs.
// Implementations must be safe to use from a single goroutine at a time;
// callers (internal/session) are responsible for serializing access to one
// Driver instance.
type Driver interface {
	// Start launches the underlying browser process. jsEnabled controls
	// whether client-side JavaScript execution is permitted on navigated
	// pages; some callers request JS off for faster, lighter scrapes.
	Start(ctx context.Context, jsEnabled bool) error

	// Navigate loads url, waiting up to timeoutMs for the load event. On
	// timeout it does not return an error: it instead replaces the page with
	// SyntheticTimeoutDocument and reports TimedOut, so downstream calls
	// never see a half-loaded DOM.
	Navigate(ctx context.Context, url string, timeoutMs int) (NavigateOutcome, error)

	// Wait blocks for the given duration, honoring ctx cancellation.
	Wait(ctx context.Context, ms int)

	// Evaluate runs script inside the sandboxed execution harness and
	// returns its tagged result. It never returns a Go error for script
	// failures; those are reported inside ScriptResult. Evaluate returns a
	// Go error only for transport-level failures (the page or target is
	// gone).
	Evaluate(ctx context.Context, script string, timeoutMs int) (model.ScriptResult, error)

	Screenshot(fullPage bool) ([]byte, error)
	PDF(opts model.PDFOptions) ([]byte, error)
	Content() (string, error)
	Title() (string, error)

	// Close tears down the page and, if this Driver owns the underlying
	// browser process, the browser itself. Close is idempotent.
	Close() error
}

// NavigateOutcome reports whether a navigation completed within its budget.
type NavigateOutcome struct {
	TimedOut bool
	// StatusHint is best-effort; rod does not expose the HTTP status of a
	// navigation directly, so this is populated only when derivable.
	StatusHint int
}

// RodDriver is the default Driver, backed by a local headless Chromium
// instance launched per session.
type RodDriver struct {
	browser   *rod.Browser
	page      *rod.Page
	launcher  *launcher.Launcher
	jsEnabled bool
	closed    bool
}

// NewRodDriver constructs an unstarted driver. Call Start before use.
func NewRodDriver() *RodDriver {
	return &RodDriver{}
}

func (d *RodDriver) Start(ctx context.Context, jsEnabled bool) error {
	var l *launcher.Launcher
	if path, has := launcher.LookPath(); has {
		l = launcher.New().Bin(path)
	} else {
		l = launcher.New()
	}
	l = l.Headless(true).NoSandbox(true)

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("connect browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return fmt.Errorf("open page: %w", err)
	}

	if !jsEnabled {
		if err := (proto.EmulationSetScriptExecutionDisabled{Value: true}).Call(page); err != nil {
			_ = browser.Close()
			l.Kill()
			return fmt.Errorf("disable javascript: %w", err)
		}
	}

	d.launcher = l
	d.browser = browser
	d.page = page
	d.jsEnabled = jsEnabled
	return nil
}

func (d *RodDriver) Navigate(ctx context.Context, url string, timeoutMs int) (NavigateOutcome, error) {
	if d.page == nil {
		return NavigateOutcome{}, fmt.Errorf("driver not started")
	}
	timeout := time.Duration(timeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	page := d.page.Context(ctx).Timeout(timeout)
	if err := page.Navigate(url); err != nil {
		return NavigateOutcome{}, fmt.Errorf("navigate: %w", err)
	}

	if err := page.WaitLoad(); err != nil {
		if isTimeoutErr(err) {
			if docErr := d.page.Context(ctx).SetDocumentContent(SyntheticTimeoutDocument(url)); docErr != nil {
				return NavigateOutcome{}, fmt.Errorf("replace timed-out page with synthetic document: %w", docErr)
			}
			return NavigateOutcome{TimedOut: true}, nil
		}
		return NavigateOutcome{}, fmt.Errorf("wait load: %w", err)
	}
	return NavigateOutcome{}, nil
}

// SyntheticTimeoutDocument is the well-defined page body substituted in for
// a navigation that never fired its load event. Downstream code (Content,
// Title, markdown extraction) always sees this instead of whatever
// half-loaded DOM the browser happened to have at the timeout instant.
// Exported so fakes used in other packages' tests can reproduce the same
// substitution without duplicating the markup.
func SyntheticTimeoutDocument(url string) string {
	return fmt.Sprintf(`<!DOCTYPE html><html><head><title>Navigation timed out</title></head><body data-crawlforge-synthetic="navigation-timeout"><p>Navigation to %s did not complete within the configured timeout.</p></body></html>`, html.EscapeString(url))
}

func (d *RodDriver) Wait(ctx context.Context, ms int) {
	if ms <= 0 {
		return
	}
	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// evalHarness wraps a caller script so that synchronous throws, asynchronous
// rejections, and an overrun clock are all reduced to the same envelope
// shape: {success, result, error}. The race between the script's own promise
// and the timeout promise happens inside the page, not in Go, so a runaway
// synchronous loop is the only case the outer context timeout needs to
// guard against.
const evalHarnessTemplate = `
() => {
  const __timeoutMs = %d;
  const __userScript = async () => {
    %s
  };
  const __timeout = new Promise((_, reject) => {
    setTimeout(() => reject(new Error("script timed out")), __timeoutMs);
  });
  const __start = Date.now();
  return Promise.race([__userScript(), __timeout])
    .then((result) => ({ success: true, result: result === undefined ? null : result, executionMs: Date.now() - __start }))
    .catch((err) => ({ success: false, error: (err && err.message) ? err.message : String(err), executionMs: Date.now() - __start }));
}
`

func (d *RodDriver) Evaluate(ctx context.Context, script string, timeoutMs int) (model.ScriptResult, error) {
	if d.page == nil {
		return model.ScriptResult{}, fmt.Errorf("driver not started")
	}
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}

	wrapped := fmt.Sprintf(evalHarnessTemplate, timeoutMs, script)

	// Outer Go-side timeout as a backstop in case the page itself hangs
	// (e.g. a detached target) and never settles the promise race above.
	guard := time.Duration(timeoutMs+2000) * time.Millisecond
	page := d.page.Context(ctx).Timeout(guard)

	obj, err := page.Eval(wrapped)
	if err != nil {
		if isTimeoutErr(err) {
			return model.ScriptResult{
				Success:     false,
				Error:       "script timed out",
				ExecutionMs: int64(timeoutMs),
			}, nil
		}
		return model.ScriptResult{}, fmt.Errorf("evaluate: %w", err)
	}

	var envelope struct {
		Success     bool   `json:"success"`
		Result      any    `json:"result"`
		Error       string `json:"error"`
		ExecutionMs int64  `json:"executionMs"`
	}
	if err := obj.Value.Unmarshal(&envelope); err != nil {
		return model.ScriptResult{}, fmt.Errorf("decode script result: %w", err)
	}

	return model.ScriptResult{
		Success:     envelope.Success,
		Result:      envelope.Result,
		Error:       envelope.Error,
		ExecutionMs: envelope.ExecutionMs,
	}, nil
}

func (d *RodDriver) Screenshot(fullPage bool) ([]byte, error) {
	if d.page == nil {
		return nil, fmt.Errorf("driver not started")
	}
	data, err := d.page.Screenshot(fullPage, nil)
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return data, nil
}

func (d *RodDriver) PDF(opts model.PDFOptions) ([]byte, error) {
	if d.page == nil {
		return nil, fmt.Errorf("driver not started")
	}
	req := &proto.PagePrintToPDF{
		Landscape:       opts.Landscape,
		PrintBackground: opts.PrintBackground,
	}
	if opts.MarginTopMM > 0 {
		v := mmToInches(opts.MarginTopMM)
		req.MarginTop = &v
	}
	if opts.MarginBottomMM > 0 {
		v := mmToInches(opts.MarginBottomMM)
		req.MarginBottom = &v
	}
	if opts.MarginLeftMM > 0 {
		v := mmToInches(opts.MarginLeftMM)
		req.MarginLeft = &v
	}
	if opts.MarginRightMM > 0 {
		v := mmToInches(opts.MarginRightMM)
		req.MarginRight = &v
	}

	reader, err := d.page.PDF(req)
	if err != nil {
		return nil, fmt.Errorf("pdf: %w", err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf stream: %w", err)
	}
	return data, nil
}

func (d *RodDriver) Content() (string, error) {
	if d.page == nil {
		return "", fmt.Errorf("driver not started")
	}
	html, err := d.page.HTML()
	if err != nil {
		return "", fmt.Errorf("content: %w", err)
	}
	return html, nil
}

func (d *RodDriver) Title() (string, error) {
	if d.page == nil {
		return "", fmt.Errorf("driver not started")
	}
	info, err := d.page.Info()
	if err != nil {
		return "", fmt.Errorf("title: %w", err)
	}
	return info.Title, nil
}

func (d *RodDriver) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if d.page != nil {
		_ = d.page.Close()
	}
	if d.browser != nil {
		_ = d.browser.Close()
	}
	if d.launcher != nil {
		d.launcher.Kill()
	}
	return nil
}

func mmToInches(mm int) float64 {
	return float64(mm) / 25.4
}

func isTimeoutErr(err error) bool {
	return err == context.DeadlineExceeded || err != nil && isDeadlineExceededChain(err)
}

func isDeadlineExceededChain(err error) bool {
	for err != nil {
		if err == context.DeadlineExceeded {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

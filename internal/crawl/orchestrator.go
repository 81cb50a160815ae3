// Package crawl implements the orchestrator that drives one page through a
// browser driver, runs the markdown pipeline, and writes the resulting
// artifacts to storage.
package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"crawlforge/internal/artifact"
	"crawlforge/internal/browser"
	"crawlforge/internal/markdown"
	"crawlforge/internal/metrics"
	"crawlforge/internal/model"
	"crawlforge/internal/session"
)

// Summarizer runs an optional LLM summarization pass over extracted text.
// A failure here never fails the crawl; the orchestrator logs and moves on.
type Summarizer interface {
	Summarize(ctx context.Context, text, provider, token, model string) (string, error)
}

// Orchestrator ties the session pool, a raw driver factory (for one-off,
// non-durable crawls), the artifact store, and the markdown pipeline into
// the single Execute entry point C8 and the batch executor call into.
type Orchestrator struct {
	Sessions   *session.Pool
	NewDriver  session.DriverFactory
	Artifacts  *artifact.Store
	Summarizer Summarizer
	Robots     *RobotsGate
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// New constructs an Orchestrator. summarizer and m may be nil.
func New(sessions *session.Pool, newDriver session.DriverFactory, artifacts *artifact.Store, summarizer Summarizer, m *metrics.Metrics, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		Sessions:   sessions,
		NewDriver:  newDriver,
		Artifacts:  artifacts,
		Summarizer: summarizer,
		Robots:     NewRobotsGate(),
		Metrics:    m,
		Logger:     logger,
	}
}

// Execute runs one crawl to completion, never returning a Go error: every
// failure mode is expressed as a CrawlResult with Success:false and an
// ErrorKind, matching C4's "returns CrawlResult" contract.
func (o *Orchestrator) Execute(ctx context.Context, req model.CrawlRequest) model.CrawlResult {
	start := time.Now()
	opts := req.Options

	if opts.RespectRobots && !o.Robots.Allowed(ctx, req.URL) {
		return o.fail(req, model.ErrRobotsDisallowed, "URL disallowed by robots.txt", start)
	}

	drv, sessionID, ownsDriver, unlock, err := o.resolveDriver(ctx, req)
	if err != nil {
		return o.fail(req, model.ErrSessionGone, err.Error(), start)
	}
	defer unlock()
	if ownsDriver {
		defer func() { _ = drv.Close() }()
	}

	outcome, err := drv.Navigate(ctx, req.URL, opts.TimeoutMs)
	if err != nil {
		if opts.ContinueOnNavError {
			o.recordCrawl(false, model.ErrNavigationTimeout, opts, start)
			return o.partial(req, sessionID, model.ErrNavigationTimeout, err.Error())
		}
		o.recordCrawl(false, model.ErrNavigationTimeout, opts, start)
		return o.fail(req, model.ErrNavigationTimeout, err.Error(), start)
	}
	drv.Wait(ctx, int(settleTimeFor(req.URL).Milliseconds()))

	result := model.CrawlResult{Success: true, URL: req.URL, SessionID: sessionID}
	if outcome.TimedOut {
		// Not a failure per the NavigationTimeout tie-break: the page loaded
		// whatever content it had at the deadline, and we proceed with that.
		result.ErrorKind = model.ErrNavigationTimeout
		result.ErrorMessage = "navigation timed out before load event; continuing with partial page"
	}

	if opts.JavaScript && opts.JavaScriptPayload != "" {
		drv.Wait(ctx, opts.WaitBeforeScriptMs)
		scriptResult, evalErr := drv.Evaluate(ctx, opts.JavaScriptPayload, opts.ScriptTimeoutMs)
		if evalErr != nil {
			result.ScriptResult = &model.ScriptResult{Success: false, Error: evalErr.Error()}
		} else {
			result.ScriptResult = &scriptResult
			result.ScriptExecutionMs = scriptResult.ExecutionMs
		}
		drv.Wait(ctx, opts.WaitAfterScriptMs)
	}

	title, _ := drv.Title()
	content, err := drv.Content()
	if err != nil {
		o.recordCrawl(false, model.ErrFatal, opts, start)
		return o.fail(req, model.ErrFatal, err.Error(), start)
	}
	result.Title = title
	result.HTML = content

	if opts.Screenshot {
		fullPage := opts.ScreenshotMode == model.ScreenshotFull
		shot, shotErr := drv.Screenshot(fullPage)
		if shotErr != nil {
			result.ErrorKind = model.ErrScreenshotError
			result.ErrorMessage = shotErr.Error()
		} else {
			result.ScreenshotBytes = shot
		}
	}

	if opts.PDF {
		pdfOpts := model.PDFOptions{}
		if opts.PDFOptions != nil {
			pdfOpts = *opts.PDFOptions
		}
		data, pdfErr := drv.PDF(pdfOpts)
		if pdfErr != nil {
			result.ErrorKind = model.ErrPDFError
			result.ErrorMessage = pdfErr.Error()
		} else {
			result.PDFBytes = data
		}
	}

	// OCR is only meaningful over a captured screenshot; without one it is
	// silently dropped rather than treated as an error.
	if opts.OCRExtraction && opts.Screenshot && len(result.ScreenshotBytes) > 0 {
		result.ExtractedText = ""
	}

	if opts.MarkdownExtraction != model.MarkdownNone {
		md, mdErr := markdown.Convert(content, req.URL, opts.MarkdownExtraction)
		if mdErr != nil {
			o.Logger.Warn("markdown conversion failed", "url", req.URL, "error", mdErr)
		} else {
			result.Markdown = md
			if opts.Filter != nil && opts.Filter.Kind != model.FilterNone {
				filtered, filterErr := markdown.ApplyFilter(content, md, req.URL, *opts.Filter)
				if filterErr != nil {
					o.Logger.Warn("content filter failed", "url", req.URL, "error", filterErr)
				} else {
					result.FilteredMarkdown = filtered
				}
			}
		}
	}

	if o.Summarizer != nil && opts.LLMProvider != "" && opts.LLMToken != "" {
		text := result.Markdown
		if text == "" {
			text = result.HTML
		}
		if summary, sumErr := o.Summarizer.Summarize(ctx, text, opts.LLMProvider, opts.LLMToken, opts.LLMModel); sumErr != nil {
			o.Logger.Warn("llm summarization failed", "url", req.URL, "error", sumErr)
		} else {
			result.ExtractedText = summary
		}
	}

	o.writeArtifacts(ctx, req, &result)

	o.recordCrawl(true, "", opts, start)
	return result
}

// resolveDriver implements step 1 of the orchestrator algorithm: reuse a
// live pooled session, create a durable one under the caller's chosen ID,
// or start a bare ephemeral driver this call owns and must close. For the
// pooled cases it returns the unlock func from session.Pool.Get, which the
// caller must hold for the duration of its driver use so concurrent
// requests against the same session id serialize; for the ephemeral case
// it returns a no-op unlock since the driver is exclusively owned already.
func (o *Orchestrator) resolveDriver(ctx context.Context, req model.CrawlRequest) (browser.Driver, string, bool, func(), error) {
	if req.SessionID != "" {
		if _, drv, unlock, ok := o.Sessions.Get(req.SessionID); ok {
			return drv, req.SessionID, false, unlock, nil
		}
		sess, err := o.Sessions.CreateWithID(ctx, req.SessionID, req.Options.JavaScript)
		if err != nil {
			return nil, "", false, func() {}, fmt.Errorf("create durable session: %w", err)
		}
		_, drv, unlock, _ := o.Sessions.Get(sess.ID)
		return drv, sess.ID, false, unlock, nil
	}

	drv := o.NewDriver()
	if err := drv.Start(ctx, req.Options.JavaScript); err != nil {
		return nil, "", false, func() {}, fmt.Errorf("start driver: %w", err)
	}
	return drv, "", true, func() {}, nil
}

func (o *Orchestrator) writeArtifacts(ctx context.Context, req model.CrawlRequest, result *model.CrawlResult) {
	if o.Artifacts == nil {
		return
	}
	result.Artifacts = make(map[string]model.ArtifactReference)

	if result.Markdown != "" {
		if ref, err := o.Artifacts.Save(ctx, req.UserID, req.URL, result.Title, "md", "text/markdown", []byte(result.Markdown)); err == nil {
			result.Artifacts["markdown"] = ref
		}
	}
	if len(result.ScreenshotBytes) > 0 {
		if ref, err := o.Artifacts.Save(ctx, req.UserID, req.URL, result.Title, "png", "image/png", result.ScreenshotBytes); err == nil {
			result.Artifacts["screenshot"] = ref
		}
	}
	if len(result.PDFBytes) > 0 {
		if ref, err := o.Artifacts.Save(ctx, req.UserID, req.URL, result.Title, "pdf", "application/pdf", result.PDFBytes); err == nil {
			result.Artifacts["pdf"] = ref
		}
	}

	if dump, err := json.Marshal(result); err == nil {
		if ref, err := o.Artifacts.Save(ctx, req.UserID, req.URL, result.Title, "json", "application/json", dump); err == nil {
			result.Artifacts["result"] = ref
		}
	}
}

func (o *Orchestrator) fail(req model.CrawlRequest, kind model.ErrorKind, msg string, start time.Time) model.CrawlResult {
	return model.CrawlResult{
		Success:      false,
		URL:          req.URL,
		ErrorKind:    kind,
		ErrorMessage: msg,
	}
}

// partial builds the "ContinueOnNavError" result: still marked successful
// per spec's NavigationTimeout fallback policy, carrying the error kind for
// observability without failing the batch item it belongs to.
func (o *Orchestrator) partial(req model.CrawlRequest, sessionID string, kind model.ErrorKind, msg string) model.CrawlResult {
	return model.CrawlResult{
		Success:      true,
		URL:          req.URL,
		SessionID:    sessionID,
		ErrorKind:    kind,
		ErrorMessage: msg,
	}
}

func (o *Orchestrator) recordCrawl(success bool, kind model.ErrorKind, opts model.CrawlOptions, start time.Time) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.RecordCrawl(success, string(kind), opts.JavaScript, opts.Screenshot, time.Since(start).Seconds())
}

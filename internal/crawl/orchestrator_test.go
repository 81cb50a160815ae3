package crawl

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crawlforge/internal/artifact"
	"crawlforge/internal/browser"
	"crawlforge/internal/model"
	"crawlforge/internal/session"
	"crawlforge/internal/storage"
)

type fakeDriver struct {
	content       string
	title         string
	navErr        error
	timedOut      bool
	screenshotErr error
	evalResult    model.ScriptResult
	evalErr       error
	closed        bool
}

func (f *fakeDriver) Start(ctx context.Context, jsEnabled bool) error { return nil }
func (f *fakeDriver) Navigate(ctx context.Context, url string, timeoutMs int) (browser.NavigateOutcome, error) {
	if f.navErr != nil {
		return browser.NavigateOutcome{}, f.navErr
	}
	if f.timedOut {
		f.content = browser.SyntheticTimeoutDocument(url)
	}
	return browser.NavigateOutcome{TimedOut: f.timedOut}, nil
}
func (f *fakeDriver) Wait(ctx context.Context, ms int) {}
func (f *fakeDriver) Evaluate(ctx context.Context, script string, timeoutMs int) (model.ScriptResult, error) {
	return f.evalResult, f.evalErr
}
func (f *fakeDriver) Screenshot(fullPage bool) ([]byte, error) {
	if f.screenshotErr != nil {
		return nil, f.screenshotErr
	}
	return []byte("fake-png"), nil
}
func (f *fakeDriver) PDF(opts model.PDFOptions) ([]byte, error) { return []byte("fake-pdf"), nil }
func (f *fakeDriver) Content() (string, error)                  { return f.content, nil }
func (f *fakeDriver) Title() (string, error)                    { return f.title, nil }
func (f *fakeDriver) Close() error                               { f.closed = true; return nil }

func newTestOrchestrator(t *testing.T, drv *fakeDriver) *Orchestrator {
	t.Helper()
	factory := func() browser.Driver { return drv }
	pool := session.New(factory, session.Options{IdleTTL: time.Hour, SweepInterval: time.Hour}, nil)
	t.Cleanup(pool.CloseAll)

	blob, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	store := artifact.New(blob)

	return New(pool, factory, store, nil, nil, nil)
}

func TestExecuteSuccessfulCrawlWithMarkdown(t *testing.T) {
	drv := &fakeDriver{content: "<h1>Hello</h1><p>World</p>", title: "Hello Page"}
	orch := newTestOrchestrator(t, drv)

	req := model.CrawlRequest{
		URL:     "https://example.com",
		UserID:  "user-1",
		Options: model.CrawlOptions{MarkdownExtraction: model.MarkdownBasic},
	}

	result := orch.Execute(context.Background(), req)
	require.True(t, result.Success)
	assert.Equal(t, "Hello Page", result.Title)
	assert.Contains(t, result.Markdown, "Hello")
	assert.Contains(t, result.Artifacts, "markdown")
}

func TestExecuteNavigationErrorFailsUnlessContinueOnNavError(t *testing.T) {
	drv := &fakeDriver{navErr: errors.New("dns failure")}
	orch := newTestOrchestrator(t, drv)

	result := orch.Execute(context.Background(), model.CrawlRequest{URL: "https://bad.example"})
	assert.False(t, result.Success)
	assert.Equal(t, model.ErrNavigationTimeout, result.ErrorKind)
}

func TestExecuteNavigationErrorContinuesWhenOptedIn(t *testing.T) {
	drv := &fakeDriver{navErr: errors.New("dns failure")}
	orch := newTestOrchestrator(t, drv)

	req := model.CrawlRequest{URL: "https://bad.example", Options: model.CrawlOptions{ContinueOnNavError: true}}
	result := orch.Execute(context.Background(), req)
	assert.True(t, result.Success)
}

func TestExecuteNavigationTimeoutStillSucceeds(t *testing.T) {
	drv := &fakeDriver{content: "<p>partial</p>", timedOut: true}
	orch := newTestOrchestrator(t, drv)

	result := orch.Execute(context.Background(), model.CrawlRequest{URL: "https://slow.example"})
	assert.True(t, result.Success)
	assert.Equal(t, model.ErrNavigationTimeout, result.ErrorKind)
	assert.Contains(t, result.HTML, `data-crawlforge-synthetic="navigation-timeout"`)
	assert.Contains(t, result.HTML, "https://slow.example")
	assert.NotContains(t, result.HTML, "partial")
}

func TestExecuteScriptFailureDoesNotFailCrawl(t *testing.T) {
	drv := &fakeDriver{content: "<p>x</p>", evalErr: errors.New("script exploded")}
	orch := newTestOrchestrator(t, drv)

	req := model.CrawlRequest{
		URL: "https://example.com",
		Options: model.CrawlOptions{
			JavaScript:        true,
			JavaScriptPayload: "return 1",
		},
	}

	result := orch.Execute(context.Background(), req)
	assert.True(t, result.Success)
	require.NotNil(t, result.ScriptResult)
	assert.False(t, result.ScriptResult.Success)
}

func TestExecuteScreenshotWithoutJavaScriptStillCaptures(t *testing.T) {
	drv := &fakeDriver{content: "<p>x</p>"}
	orch := newTestOrchestrator(t, drv)

	req := model.CrawlRequest{URL: "https://example.com", Options: model.CrawlOptions{Screenshot: true}}
	result := orch.Execute(context.Background(), req)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.ScreenshotBytes)
}

func TestExecuteOCRWithoutScreenshotIsDropped(t *testing.T) {
	drv := &fakeDriver{content: "<p>x</p>"}
	orch := newTestOrchestrator(t, drv)

	req := model.CrawlRequest{URL: "https://example.com", Options: model.CrawlOptions{OCRExtraction: true}}
	result := orch.Execute(context.Background(), req)
	assert.True(t, result.Success)
	assert.Empty(t, result.ExtractedText)
}

func TestExecuteReusesLiveSession(t *testing.T) {
	drv := &fakeDriver{content: "<p>reuse</p>"}
	orch := newTestOrchestrator(t, drv)

	sess, err := orch.Sessions.Create(context.Background(), true)
	require.NoError(t, err)

	req := model.CrawlRequest{URL: "https://example.com", SessionID: sess.ID}
	result := orch.Execute(context.Background(), req)
	assert.True(t, result.Success)
	assert.Equal(t, sess.ID, result.SessionID)
	assert.False(t, drv.closed, "reused session driver must not be closed by the orchestrator")
}

func TestExecuteEphemeralDriverIsClosedAfterUse(t *testing.T) {
	drv := &fakeDriver{content: "<p>ephemeral</p>"}
	orch := newTestOrchestrator(t, drv)

	result := orch.Execute(context.Background(), model.CrawlRequest{URL: "https://example.com"})
	assert.True(t, result.Success)
	assert.True(t, drv.closed)
}

func TestExecuteRejectsURLDisallowedByRobotsWhenOptedIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	}))
	defer srv.Close()

	drv := &fakeDriver{content: "<p>x</p>"}
	orch := newTestOrchestrator(t, drv)
	orch.Robots = NewRobotsGate()

	req := model.CrawlRequest{URL: srv.URL + "/private/page", Options: model.CrawlOptions{RespectRobots: true}}
	result := orch.Execute(context.Background(), req)
	assert.False(t, result.Success)
	assert.Equal(t, model.ErrRobotsDisallowed, result.ErrorKind)

	allowed := model.CrawlRequest{URL: srv.URL + "/public", Options: model.CrawlOptions{RespectRobots: true}}
	result = orch.Execute(context.Background(), allowed)
	assert.True(t, result.Success)
}

func TestExecuteIgnoresRobotsWhenNotOptedIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	}))
	defer srv.Close()

	drv := &fakeDriver{content: "<p>x</p>"}
	orch := newTestOrchestrator(t, drv)
	orch.Robots = NewRobotsGate()

	req := model.CrawlRequest{URL: srv.URL + "/private/page"}
	result := orch.Execute(context.Background(), req)
	assert.True(t, result.Success)
}

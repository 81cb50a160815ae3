// Package model holds the value and entity types shared across crawlforge's
// core subsystems: crawl requests/results, sessions, jobs, tool schemas, and
// artifact references.
package model

import "time"

// ScreenshotMode controls whether a screenshot captures the viewport or the
// full scrollable page.
type ScreenshotMode string

const (
	ScreenshotViewport ScreenshotMode = "viewport"
	ScreenshotFull     ScreenshotMode = "full"
)

// MarkdownMode selects which markdown pipeline stage to run.
type MarkdownMode string

const (
	MarkdownNone     MarkdownMode = "none"
	MarkdownBasic    MarkdownMode = "basic"
	MarkdownEnhanced MarkdownMode = "enhanced"
)

// FilterKind selects the post-markdown content filter.
type FilterKind string

const (
	FilterNone    FilterKind = ""
	FilterPruning FilterKind = "pruning"
	FilterBM25    FilterKind = "bm25"
	// FilterTermFrequency selects the simpler, line-level term-frequency
	// ranking (content_filter.py's actual apply_bm25_filter behavior,
	// despite its name) rather than FilterBM25's real BM25 score.
	FilterTermFrequency FilterKind = "term_frequency"
)

// ResponseFormat controls how much of a CrawlResult is projected back to a
// caller; it does not affect what is computed or stored.
type ResponseFormat string

const (
	ResponseFull        ResponseFormat = "full"
	ResponseContentOnly ResponseFormat = "content_only"
	ResponseMinimal     ResponseFormat = "minimal"
	ResponseLLM         ResponseFormat = "llm"
)

// PDFOptions mirrors the recognized pdf_options sub-object.
type PDFOptions struct {
	Format          string `json:"format,omitempty"`
	Landscape       bool   `json:"landscape,omitempty"`
	PrintBackground bool   `json:"printBackground,omitempty"`
	MarginTopMM     int    `json:"marginTop,omitempty"`
	MarginRightMM   int    `json:"marginRight,omitempty"`
	MarginBottomMM  int    `json:"marginBottom,omitempty"`
	MarginLeftMM    int    `json:"marginLeft,omitempty"`
	WaitForMs       int    `json:"waitForMs,omitempty"`
}

// FilterOptions carries the parameters for whichever FilterKind is active.
type FilterOptions struct {
	Kind      FilterKind `json:"kind,omitempty"`
	Threshold float64    `json:"threshold,omitempty"`
	MinWords  int        `json:"minWords,omitempty"`
	Query     string     `json:"query,omitempty"`
}

// CrawlOptions is the full recognized option bag a caller may set on a
// CrawlRequest.
type CrawlOptions struct {
	JavaScript         bool           `json:"javascript,omitempty"`
	Screenshot         bool           `json:"screenshot,omitempty"`
	ScreenshotMode     ScreenshotMode `json:"screenshotMode,omitempty"`
	PDF                bool           `json:"pdf,omitempty"`
	PDFOptions         *PDFOptions    `json:"pdfOptions,omitempty"`
	MarkdownExtraction MarkdownMode   `json:"markdownExtraction,omitempty"`
	Filter             *FilterOptions `json:"filter,omitempty"`
	OCRExtraction      bool           `json:"ocrExtraction,omitempty"`
	JavaScriptPayload  string         `json:"javascriptPayload,omitempty"`
	WaitBeforeScriptMs int            `json:"waitBeforeScriptMs,omitempty"`
	WaitAfterScriptMs  int            `json:"waitAfterScriptMs,omitempty"`
	ScriptTimeoutMs    int            `json:"scriptTimeoutMs,omitempty"`
	WaitMs             int            `json:"waitMs,omitempty"`
	TimeoutMs          int            `json:"timeoutMs,omitempty"`
	Depth              int            `json:"depth,omitempty"`
	ResponseFormat     ResponseFormat `json:"responseFormat,omitempty"`
	ForceSync          bool           `json:"forceSync,omitempty"`
	SessionID          string         `json:"sessionId,omitempty"`
	LLMProvider        string         `json:"llmProvider,omitempty"`
	LLMToken           string         `json:"llmToken,omitempty"`
	LLMModel           string         `json:"llmModel,omitempty"`
	ContinueOnNavError bool           `json:"continueOnNavError,omitempty"`
	RespectRobots      bool           `json:"respectRobots,omitempty"`
}

// CrawlRequest is an immutable value describing one crawl. Construct it once
// and never mutate it; the orchestrator and dispatcher both read from the
// same value concurrently in batch mode.
type CrawlRequest struct {
	URL       string       `json:"url"`
	Options   CrawlOptions `json:"options"`
	SessionID string       `json:"sessionId,omitempty"`
	UserID    string       `json:"userId,omitempty"`
}

// ErrorKind enumerates the internal error taxonomy returned on CrawlResult
// failure.
type ErrorKind string

const (
	ErrInvalidInput      ErrorKind = "InvalidInput"
	ErrNavigationTimeout ErrorKind = "NavigationTimeout"
	ErrScriptError       ErrorKind = "ScriptError"
	ErrScreenshotError   ErrorKind = "ScreenshotError"
	ErrPDFError          ErrorKind = "PdfError"
	ErrStorageError      ErrorKind = "StorageError"
	ErrSessionGone       ErrorKind = "SessionGone"
	ErrToolUnknown       ErrorKind = "ToolUnknown"
	ErrToolExecError     ErrorKind = "ToolExecError"
	ErrProviderError     ErrorKind = "ProviderError"
	ErrJobNotFound       ErrorKind = "JobNotFound"
	ErrFatal             ErrorKind = "Fatal"
	ErrRobotsDisallowed  ErrorKind = "RobotsDisallowed"
)

// ScriptResult is the outcome of evaluating a caller-supplied script inside
// the browser execution harness.
type ScriptResult struct {
	Success     bool   `json:"success"`
	Result      any    `json:"result,omitempty"`
	Error       string `json:"error,omitempty"`
	ExecutionMs int64  `json:"executionMs"`
}

// CrawlResult is the tagged outcome of one crawl: on success, artifact
// fields are present iff the corresponding option was requested; on
// failure, no artifact fields are populated.
type CrawlResult struct {
	Success bool `json:"success"`

	URL               string                       `json:"url,omitempty"`
	Title             string                       `json:"title,omitempty"`
	HTML              string                       `json:"html,omitempty"`
	Markdown          string                       `json:"markdown,omitempty"`
	FilteredMarkdown  string                       `json:"filteredMarkdown,omitempty"`
	ExtractedText     string                       `json:"extractedText,omitempty"`
	ScreenshotBytes   []byte                       `json:"screenshotBytes,omitempty"`
	PDFBytes          []byte                       `json:"pdfBytes,omitempty"`
	ScriptResult      *ScriptResult                `json:"scriptResult,omitempty"`
	ScriptExecutionMs int64                        `json:"scriptExecutionMs,omitempty"`
	SessionID         string                       `json:"sessionId,omitempty"`
	Artifacts         map[string]ArtifactReference `json:"artifacts,omitempty"`

	ErrorKind    ErrorKind `json:"errorKind,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// ArtifactReference is a pointer to one stored crawl output.
type ArtifactReference struct {
	Filename     string `json:"filename"`
	StoragePath  string `json:"storagePath"`
	RetrievalURL string `json:"retrievalUrl"`
}

// Session is the entity owned by the session pool. Metadata is deliberately
// untyped JSON-shaped data: different tools contribute different fields
// (current URL, login state, cookies, ...).
type Session struct {
	ID         string
	CreatedAt  time.Time
	LastUsedAt time.Time
	Metadata   map[string]any
}

// JobType enumerates the kinds of work the job registry tracks.
type JobType string

const (
	JobTypeCrawl      JobType = "crawl"
	JobTypeBatchCrawl JobType = "batch_crawl"
)

// JobStatus enumerates the monotonic lifecycle of a Job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is the entity owned by the job registry.
type Job struct {
	ID        string
	Type      JobType
	Status    JobStatus
	Progress  int
	CreatedAt time.Time
	UpdatedAt time.Time
	Request   CrawlRequest
	Requests  []CrawlRequest
	Result    *BatchResult
	Error     string
}

// BatchResult aggregates the outcome of a (possibly single-URL) crawl job.
type BatchResult struct {
	Total             int           `json:"total"`
	Completed         int           `json:"completed"`
	Failed            int           `json:"failed"`
	TotalWords        int           `json:"totalWords"`
	TotalChars        int           `json:"totalChars"`
	TotalTimeSeconds  float64       `json:"totalTime"`
	AverageTimePerURL float64       `json:"averageTimePerUrl"`
	Results           []CrawlResult `json:"results"`
	CollatedMarkdown  string        `json:"collatedMarkdown,omitempty"`
}

// DispatchResponse is what the dispatcher hands back to a caller: either an
// inline result, or a job handle.
type DispatchResponse struct {
	Async         bool         `json:"async"`
	Result        *CrawlResult `json:"result,omitempty"`
	JobID         string       `json:"jobId,omitempty"`
	EstimatedTime float64      `json:"estimatedTime,omitempty"`
	Status        JobStatus    `json:"status,omitempty"`
}

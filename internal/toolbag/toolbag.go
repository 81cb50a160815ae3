// Package toolbag implements C10: the tool-dispatch engine that lets an LLM
// orchestrate crawl and content operations by emitting structured tool
// calls, enforcing per-tool usage budgets and terminating within a bounded
// number of iterations.
package toolbag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"crawlforge/internal/llmprovider"
	"crawlforge/internal/metrics"
	"crawlforge/internal/model"
	"crawlforge/internal/tools"
)

const defaultMaxIterations = 3

// DefaultLimits are the design-default per-tool usage caps applied to a new
// execution unless the caller overrides them with SetToolLimit.
var DefaultLimits = model.ToolbagLimits{
	"create_session":  1,
	"generate_report": 1,
	"analyze_content": 3,
	"take_screenshot": 10,
}

// Transcript is the result of one execute() call: the full message history
// produced by the model/tool loop, plus whether it ended because the model
// stopped on its own or because the iteration cap was hit.
type Transcript struct {
	Messages  []model.Message `json:"messages"`
	Response  string          `json:"response"`
	Truncated bool            `json:"truncated"`
}

// Engine ties a tool registry and an LLM provider registry into the
// execute/execute_chain loop. Engine is safe for concurrent use: all
// per-call state lives in a freshly constructed execution, never on Engine
// itself, matching the "not shared across concurrent execute_chain calls"
// concurrency guarantee.
type Engine struct {
	Tools         *tools.Registry
	Providers     *llmprovider.Registry
	MaxIterations int
	Logger        *slog.Logger
	Metrics       *metrics.Metrics

	limits model.ToolbagLimits
}

// New constructs an Engine with DefaultLimits and the design-default
// iteration cap of 3.
func New(toolRegistry *tools.Registry, providers *llmprovider.Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	limits := make(model.ToolbagLimits, len(DefaultLimits))
	for k, v := range DefaultLimits {
		limits[k] = v
	}
	return &Engine{
		Tools:         toolRegistry,
		Providers:     providers,
		MaxIterations: defaultMaxIterations,
		Logger:        logger,
		limits:        limits,
	}
}

// SetToolLimit overrides the usage cap for one tool name. max <= 0 removes
// the cap (the tool becomes unbounded).
func (e *Engine) SetToolLimit(toolName string, max int) {
	if max <= 0 {
		delete(e.limits, toolName)
		return
	}
	if e.limits == nil {
		e.limits = make(model.ToolbagLimits)
	}
	e.limits[toolName] = max
}

// newExecution starts a fresh usage ledger and session store scoped to one
// execute/execute_chain call.
func (e *Engine) newExecution(sessionID string) *model.ToolbagExecution {
	limits := make(model.ToolbagLimits, len(e.limits))
	for k, v := range e.limits {
		limits[k] = v
	}
	return &model.ToolbagExecution{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		StartedAt:     time.Now().UTC(),
		Limits:        limits,
		UsageCounts:   make(map[string]int),
		SessionStore:  make(map[string]any),
		MaxIterations: e.MaxIterations,
	}
}

// Execute runs the model/tool loop for one query against the named tool
// subset, per C10 section 4.7's numbered algorithm.
func (e *Engine) Execute(ctx context.Context, toolNames []string, query, providerName, modelName, apiKey string, previousResult string) (Transcript, error) {
	exec := e.newExecution("")
	return e.execute(ctx, exec, toolNames, query, providerName, modelName, apiKey, previousResult)
}

func (e *Engine) execute(ctx context.Context, exec *model.ToolbagExecution, toolNames []string, query, providerName, modelName, apiKey string, previousResult string) (Transcript, error) {
	provider, ok := e.Providers.Get(providerName)
	if !ok {
		return Transcript{}, fmt.Errorf("unknown llm provider %q", providerName)
	}

	initial := query
	if previousResult != "" {
		initial = fmt.Sprintf("%s\n\nPrevious step result:\n%s", query, previousResult)
	}
	messages := []model.Message{{Role: "user", Content: initial}}

	maxIterations := exec.MaxIterations
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}

	var lastText string
	for iteration := 0; iteration < maxIterations; iteration++ {
		schemas := e.availableSchemas(toolNames, exec)

		resp, err := provider.Generate(ctx, model.GenerateRequest{
			Messages:   messages,
			Tools:      schemas,
			ToolChoice: "auto",
			Model:      modelName,
			APIKey:     apiKey,
		})
		if err != nil {
			return Transcript{}, fmt.Errorf("provider %s: %w", providerName, err)
		}
		if resp.Content != "" {
			lastText = resp.Content
		}

		if len(resp.ToolCalls) == 0 {
			messages = append(messages, model.Message{Role: "assistant", Content: resp.Content})
			return Transcript{Messages: messages, Response: resp.Content}, nil
		}

		assistantMsg := model.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls}
		messages = append(messages, assistantMsg)

		for _, call := range resp.ToolCalls {
			result := e.runTool(ctx, exec, call)
			messages = append(messages, model.Message{Role: "tool", ToolResult: &result})
			if sid := sessionIDFromOutput(result.Output); sid != "" {
				exec.SessionStore["sessionId"] = sid
			}
		}
	}

	return Transcript{Messages: messages, Response: lastText, Truncated: true}, nil
}

// availableSchemas intersects the requested tool names with the registry
// and the non-exhausted subset of exec's budget.
func (e *Engine) availableSchemas(toolNames []string, exec *model.ToolbagExecution) []model.ToolSchema {
	var out []model.ToolSchema
	for _, name := range toolNames {
		t, ok := e.Tools.Get(name)
		if !ok {
			continue
		}
		if remaining, bounded := exec.Remaining(name); bounded && remaining <= 0 {
			continue
		}
		out = append(out, t.Schema())
	}
	return out
}

// runTool enforces the budget via Pop before executing; a call that arrives
// for an exhausted tool (the model asked anyway) is rejected without
// running the executor.
func (e *Engine) runTool(ctx context.Context, exec *model.ToolbagExecution, call model.ToolCall) model.ToolResult {
	if !exec.Pop(call.Name) {
		e.Metrics.RecordToolCall(call.Name, false)
		return model.ToolResult{
			CallID:  call.ID,
			Name:    call.Name,
			IsError: true,
			Error:   fmt.Sprintf("tool %q usage limit exhausted for this execution", call.Name),
		}
	}
	result := e.Tools.Execute(ctx, call.ID, call.Name, call.Arguments)
	e.Metrics.RecordToolCall(call.Name, !result.IsError)
	return result
}

// ChainMode controls how execute_chain reacts to a step's provider-level
// failure. A tool's own execution failure never aborts the chain; only a
// provider/network-level abort is subject to mode.
type ChainMode string

const (
	// ChainContinue is the default: a step that aborts is recorded and the
	// chain proceeds to the next tool name regardless.
	ChainContinue ChainMode = "continue"
	// ChainStopOnError aborts the remaining chain on the first step whose
	// execute() call itself returns an error (not a tool-level failure).
	ChainStopOnError ChainMode = "stop_on_error"
)

// ChainStepResult is one step of an execute_chain run.
type ChainStepResult struct {
	Tool      string     `json:"tool"`
	Skipped   bool       `json:"skipped,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Transcript Transcript `json:"transcript,omitempty"`
}

// ChainResult is execute_chain's return shape per C10 section 4.7.
type ChainResult struct {
	Success       bool                   `json:"success"`
	Results       []ChainStepResult      `json:"results"`
	ToolsExecuted []string               `json:"toolsExecuted"`
	FinalContext  map[string]any         `json:"finalContext"`
	SessionStore  map[string]any         `json:"sessionStore"`
}

// ExecuteChain runs toolNames in order, one execute() call per tool, each
// step forwarding the prior step's textual response as previous_result. The
// whole chain shares one usage ledger and one session store so budgets and
// session IDs accumulate across steps, per C10's per-execute_chain-call
// isolation guarantee.
func (e *Engine) ExecuteChain(ctx context.Context, toolNames []string, query string, mode ChainMode, providerName, modelName, apiKey string) (ChainResult, error) {
	if mode == "" {
		mode = ChainContinue
	}
	exec := e.newExecution("")
	finalContext := make(map[string]any)

	result := ChainResult{SessionStore: exec.SessionStore}
	previous := ""

	for i, name := range toolNames {
		if remaining, bounded := exec.Remaining(name); bounded && remaining <= 0 {
			result.Results = append(result.Results, ChainStepResult{
				Tool: name, Skipped: true, Reason: "usage limit exhausted",
			})
			e.Logger.Warn("toolbag chain step skipped: tool exhausted", "tool", name)
			continue
		}

		transcript, err := e.execute(ctx, exec, []string{name}, query, providerName, modelName, apiKey, previous)
		if err != nil {
			result.Results = append(result.Results, ChainStepResult{Tool: name, Skipped: true, Reason: err.Error()})
			e.Logger.Warn("toolbag chain step aborted", "tool", name, "error", err)
			if mode == ChainStopOnError {
				break
			}
			continue
		}

		result.Results = append(result.Results, ChainStepResult{Tool: name, Transcript: transcript})
		result.ToolsExecuted = append(result.ToolsExecuted, name)
		finalContext[contextKey(i, name)] = transcript.Response
		previous = transcript.Response
	}

	result.FinalContext = finalContext
	result.SessionStore = exec.SessionStore
	result.Success = len(result.ToolsExecuted) > 0
	return result, nil
}

func contextKey(position int, toolName string) string {
	return fmt.Sprintf("%d_%s", position, toolName)
}

func sessionIDFromOutput(output any) string {
	m, ok := output.(map[string]any)
	if !ok {
		return ""
	}
	sid, _ := m["sessionId"].(string)
	return sid
}

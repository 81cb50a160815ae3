// Package workflow implements C11: a thin layer of named recipes over the
// tool-dispatch engine. A workflow adds no new core semantics beyond what
// toolbag.Engine.ExecuteChain already does — it exists only so a caller can
// say "analyze_website" instead of enumerating a tool-name sequence.
package workflow

import (
	"context"
	"fmt"

	"crawlforge/internal/model"
	"crawlforge/internal/toolbag"
)

// Recipe is one named, fixed execute_chain sequence.
type Recipe struct {
	Name        string
	Description string
	Tools       []string
	Mode        toolbag.ChainMode
}

// Recipes is the static table of named workflows. Ordering within each
// recipe mirrors the natural dependency between its steps: a session must
// exist before a crawl reuses it, content must be fetched before it is
// analyzed, and analyses must exist before a report synthesizes them.
var Recipes = map[string]Recipe{
	"analyze_website": {
		Name:        "analyze_website",
		Description: "Crawl a site, summarize its content, and produce a short report.",
		Tools:       []string{"create_session", "crawl_url", "analyze_content", "generate_report"},
		Mode:        toolbag.ChainStopOnError,
	},
	"monitor_changes": {
		Name:        "monitor_changes",
		Description: "Reuse a session to re-fetch a URL and summarize what changed since the prior snapshot.",
		Tools:       []string{"create_session", "crawl_url", "crawl_url", "analyze_content"},
		Mode:        toolbag.ChainContinue,
	},
	"extract_data": {
		Name:        "extract_data",
		Description: "Fetch a URL and return its content as filtered markdown, no summarization.",
		Tools:       []string{"create_session", "extract_markdown"},
		Mode:        toolbag.ChainStopOnError,
	},
	"research_topic": {
		Name:        "research_topic",
		Description: "Crawl several sources, analyze each, and synthesize the findings into one report.",
		Tools:       []string{"create_session", "crawl_url", "analyze_content", "crawl_url", "analyze_content", "generate_report"},
		Mode:        toolbag.ChainContinue,
	},
}

// Engine drives a toolbag engine on behalf of a named recipe.
type Engine struct {
	Toolbag *toolbag.Engine
}

// New constructs a workflow Engine over an existing toolbag engine.
func New(tb *toolbag.Engine) *Engine {
	return &Engine{Toolbag: tb}
}

// Run executes the named recipe's tool sequence via execute_chain, using
// query as the initial prompt carried into every step (the same text every
// tool sees as its starting instruction, per the toolbag's per-step
// previous_result threading picking up the rest).
func (e *Engine) Run(ctx context.Context, recipeName, query, providerName, modelName, apiKey string) (toolbag.ChainResult, error) {
	recipe, ok := Recipes[recipeName]
	if !ok {
		return toolbag.ChainResult{}, fmt.Errorf("unknown workflow %q", recipeName)
	}
	return e.Toolbag.ExecuteChain(ctx, recipe.Tools, query, recipe.Mode, providerName, modelName, apiKey)
}

// AsWorkflow renders a Recipe into the model.Workflow shape external callers
// see when listing available workflows.
func (r Recipe) AsWorkflow() model.Workflow {
	steps := make([]model.WorkflowStep, 0, len(r.Tools))
	for _, tool := range r.Tools {
		steps = append(steps, model.WorkflowStep{Tool: tool})
	}
	return model.Workflow{Name: r.Name, Steps: steps}
}

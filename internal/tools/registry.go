// Package tools implements the tool registry (C9): typed Go functions wrapped
// into named, schema-described tools an LLM can invoke through the toolbag.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	jsonschemav5 "github.com/santhosh-tekuri/jsonschema/v5"

	"crawlforge/internal/model"
)

// Executor runs one tool call with already-decoded, already-validated
// arguments and returns a JSON-marshalable result.
type Executor func(ctx context.Context, args map[string]any) (any, error)

// Tool is a registered {name, description, input_schema, executor} record.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any

	compiled *jsonschemav5.Schema
	run      Executor
}

// Schema projects the registered tool into the public-facing shape with no
// executor reference, matching C9's get_schemas() contract.
func (t *Tool) Schema() model.ToolSchema {
	return model.ToolSchema{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: t.InputSchema,
	}
}

// New builds a Tool whose input schema is reflected from Args's struct tags
// (json + jsonschema tags, the same vocabulary invopop/jsonschema reads:
// `jsonschema:"required,description=...,default=...,enum=a|b"`), and whose
// executor unmarshals the raw kwargs map into Args before calling fn.
func New[Args any](name, description string, fn func(ctx context.Context, args Args) (any, error)) (*Tool, error) {
	if name == "" {
		return nil, fmt.Errorf("tool name is required")
	}
	if description == "" {
		return nil, fmt.Errorf("tool %s: description is required", name)
	}

	schemaMap, err := reflectSchema[Args]()
	if err != nil {
		return nil, fmt.Errorf("tool %s: generate schema: %w", name, err)
	}

	raw, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("tool %s: marshal schema: %w", name, err)
	}
	compiled, err := jsonschemav5.CompileString(name+".schema.json", string(raw))
	if err != nil {
		return nil, fmt.Errorf("tool %s: compile schema: %w", name, err)
	}

	return &Tool{
		Name:        name,
		Description: description,
		InputSchema: schemaMap,
		compiled:    compiled,
		run: func(ctx context.Context, args map[string]any) (any, error) {
			var typed Args
			if err := decodeArgs(args, &typed); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
			return fn(ctx, typed)
		},
	}, nil
}

// reflectSchema produces a bare, property-level JSON schema for Args: no
// $schema/$id, required inferred only from the jsonschema:"required" tag; a
// field with neither that tag nor a default is left optional.
func reflectSchema[Args any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(Args))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}

func decodeArgs(m map[string]any, target any) error {
	if m == nil {
		m = map[string]any{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// Registry is the process-global tool catalog: append-only, safe for
// concurrent Register/Execute calls once built at module load.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// ErrToolAlreadyRegistered is returned by Register when name is already
// taken: replacements are disallowed, only additions.
type ErrToolAlreadyRegistered struct{ Name string }

func (e ErrToolAlreadyRegistered) Error() string {
	return fmt.Sprintf("tool %q already registered", e.Name)
}

// Register adds t to the registry. It rejects a duplicate name rather than
// overwriting, per C9's append-only contract.
func (r *Registry) Register(t *Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return ErrToolAlreadyRegistered{Name: t.Name}
	}
	r.tools[t.Name] = t
	return nil
}

// GetAll returns every registered tool, including its executor. Intended for
// internal callers (the toolbag); external surfaces should use GetSchemas.
func (r *Registry) GetAll() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

// Get looks up one tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// GetSchemas returns the public-facing projection of every registered tool.
func (r *Registry) GetSchemas() []model.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ToolSchema, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Schema())
	}
	return out
}

// Execute runs the named tool against kwargs, validating kwargs against the
// tool's compiled schema first. It never returns a Go error: an unknown tool,
// a schema violation, or an executor panic/error are all folded into a
// failed ToolResult so callers (the toolbag loop) can feed it back to the
// model uniformly.
func (r *Registry) Execute(ctx context.Context, callID, name string, kwargs map[string]any) model.ToolResult {
	t, ok := r.Get(name)
	if !ok {
		return model.ToolResult{CallID: callID, Name: name, IsError: true, Error: string(model.ErrToolUnknown)}
	}

	if err := validateArgs(t.compiled, kwargs); err != nil {
		return model.ToolResult{CallID: callID, Name: name, IsError: true, Error: err.Error()}
	}

	output, err := safeRun(ctx, t.run, kwargs)
	if err != nil {
		return model.ToolResult{CallID: callID, Name: name, IsError: true, Error: err.Error()}
	}
	return model.ToolResult{CallID: callID, Name: name, Output: output}
}

func validateArgs(schema *jsonschemav5.Schema, kwargs map[string]any) error {
	if schema == nil {
		return nil
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	data, err := json.Marshal(kwargs)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("arguments invalid: %w", err)
	}
	return nil
}

// safeRun recovers a panicking executor into an error so one misbehaving
// tool cannot take down the worker or API goroutine running the toolbag.
func safeRun(ctx context.Context, run Executor, args map[string]any) (output any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return run(ctx, args)
}

// Package llmprovider adapts third-party LLM SDKs to the toolbag's provider
// contract: one Generate call in, one tagged response out, no streaming.
// The toolbag loop is turn-based (model call, then tool executions, then
// another model call) so there is nothing to gain from a streaming surface.
package llmprovider

import (
	"context"
	"fmt"

	"crawlforge/internal/model"
)

// Provider is the toolbag's view of an LLM backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req model.GenerateRequest) (model.GenerateResponse, error)
}

// ProviderError wraps a provider-specific failure with enough context for
// C10's failure-semantics contract: "{success:false, error, provider}".
type ProviderError struct {
	Provider string
	Cause    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error: %v", e.Provider, e.Cause)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

func wrapErr(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Cause: err}
}

// Registry resolves a provider name (as requested per-crawl or per-tool-call)
// to a constructed Provider. It is built once at startup from configuration.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a Registry from a fixed set of providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get looks up a provider by name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

package config

import "testing"

func TestValidateRejectsMissingProvider(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{Root: "./data"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing llm.defaultProvider")
	}
}

func TestValidateRejectsUnsupportedProvider(t *testing.T) {
	cfg := &Config{
		Storage: StorageConfig{Root: "./data"},
		LLM:     LLMConfig{DefaultProvider: "gemini"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestValidateRejectsMissingModelForDefaultProvider(t *testing.T) {
	cfg := &Config{
		Storage: StorageConfig{Root: "./data"},
		LLM:     LLMConfig{DefaultProvider: "openai"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing llm.openai.model")
	}
}

func TestValidateRejectsMissingStorageRoot(t *testing.T) {
	cfg := &Config{
		LLM: LLMConfig{DefaultProvider: "anthropic", Anthropic: AnthropicConfig{Model: "claude-3-5-sonnet-latest"}},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing storage.root")
	}
}

func TestValidateRejectsNegativeThreshold(t *testing.T) {
	cfg := &Config{
		Storage:  StorageConfig{Root: "./data"},
		LLM:      LLMConfig{DefaultProvider: "anthropic", Anthropic: AnthropicConfig{Model: "claude-3-5-sonnet-latest"}},
		Dispatch: DispatchConfig{ThresholdSeconds: -1},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative dispatch.thresholdSeconds")
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := &Config{
		Storage: StorageConfig{Root: "./data"},
		LLM:     LLMConfig{DefaultProvider: "anthropic", Anthropic: AnthropicConfig{Model: "claude-3-5-sonnet-latest"}},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateRejectsNilConfig(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for nil config")
	}
}

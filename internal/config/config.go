package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// BrowserConfig holds browser timeout settings. Neither value is read
// outside this package: navigation and script timeouts come from each
// request's CrawlOptions.
type BrowserConfig struct {
	DefaultTimeoutMs  int `yaml:"defaultTimeoutMs"`
	ScriptTimeoutMs   int `yaml:"scriptTimeoutMs"`
}

// SessionConfig tunes the session pool's idle lifecycle.
type SessionConfig struct {
	IdleTTLMinutes      int `yaml:"idleTTLMinutes"`
	SweepIntervalSeconds int `yaml:"sweepIntervalSeconds"`
}

// StorageConfig points the artifact store at its backing filesystem root.
type StorageConfig struct {
	Root string `yaml:"root"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

// DispatchConfig tunes C8's sync/async routing threshold.
type DispatchConfig struct {
	ThresholdSeconds float64 `yaml:"thresholdSeconds"`
}

type WorkerConfig struct {
	MaxConcurrentJobs int `yaml:"maxConcurrentJobs"`
	PollIntervalMs    int `yaml:"pollIntervalMs"`
}

type OpenAIConfig struct {
	Model string `yaml:"model"`
}

type AnthropicConfig struct {
	Model string `yaml:"model"`
}

// LLMConfig holds each provider's default model, used when a request names
// a provider but no model. DefaultProvider is checked by Validate and is not
// used as a fallback: every caller names its provider explicitly. API keys
// are never stored in config; they travel per-request as described in
// SPEC_FULL.md's external-interfaces section.
type LLMConfig struct {
	DefaultProvider string          `yaml:"defaultProvider"`
	OpenAI          OpenAIConfig    `yaml:"openai"`
	Anthropic       AnthropicConfig `yaml:"anthropic"`
}

// JobTTLConfig holds job retention periods in days. The retention loop
// applies DefaultDays to every finished job; CrawlDays and BatchDays are
// not read.
type JobTTLConfig struct {
	DefaultDays int `yaml:"defaultDays"`
	CrawlDays   int `yaml:"crawlDays"`
	BatchDays   int `yaml:"batchDays"`
}

// RetentionConfig controls TTL-based deletion of finished jobs so the job
// store does not grow without bound.
type RetentionConfig struct {
	Enabled                bool         `yaml:"enabled"`
	CleanupIntervalMinutes int          `yaml:"cleanupIntervalMinutes"`
	Jobs                   JobTTLConfig `yaml:"jobs"`
}

// ToolbagConfig tunes C10's iteration cap and per-tool usage budgets.
type ToolbagConfig struct {
	MaxIterations int            `yaml:"maxIterations"`
	ToolLimits    map[string]int `yaml:"toolLimits"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Browser   BrowserConfig   `yaml:"browser"`
	Session   SessionConfig   `yaml:"session"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Worker    WorkerConfig    `yaml:"worker"`
	LLM       LLMConfig       `yaml:"llm"`
	Retention RetentionConfig `yaml:"retention"`
	Toolbag   ToolbagConfig   `yaml:"toolbag"`
}

func Load(path string) *Config {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}

	return &cfg
}

// Validate performs basic sanity checks on the loaded configuration so
// obviously broken setups fail fast at startup rather than on the first
// request.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	provider := strings.TrimSpace(cfg.LLM.DefaultProvider)
	if provider == "" {
		return errors.New("llm.defaultProvider must be set to 'openai' or 'anthropic'")
	}

	switch provider {
	case "openai":
		if cfg.LLM.OpenAI.Model == "" {
			return errors.New("llm.openai.model must be set")
		}
	case "anthropic":
		if cfg.LLM.Anthropic.Model == "" {
			return errors.New("llm.anthropic.model must be set")
		}
	default:
		return fmt.Errorf("unsupported llm.defaultProvider: %s", provider)
	}

	if strings.TrimSpace(cfg.Storage.Root) == "" {
		return errors.New("storage.root must be set")
	}

	if cfg.Dispatch.ThresholdSeconds < 0 {
		return errors.New("dispatch.thresholdSeconds must not be negative")
	}

	return nil
}

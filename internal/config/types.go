package config

import "time"

// Audience controls downstream rendering mode. The core only threads this
// value through to the render step; it never branches on it itself.
type Audience string

const (
	AudienceHuman Audience = "human"
	AudienceAI    Audience = "ai"
)

// ContextWindowConfig overrides the packer's budget and file priority.
type ContextWindowConfig struct {
	MaxTokens int      `yaml:"max_tokens" koanf:"max_tokens"`
	Pin       []string `yaml:"pin" koanf:"pin"`
	Boost     []string `yaml:"boost" koanf:"boost"`
}

// AnalysisConfig controls the static-analysis / rate-limiting surface.
type AnalysisConfig struct {
	Concurrency int  `yaml:"concurrency" koanf:"concurrency"`
	StaticOnly  bool `yaml:"static_only" koanf:"static_only"`
}

// Config is the top-level handover configuration, corresponding to .handover.yml.
type Config struct {
	Provider  ProviderType  `yaml:"provider" koanf:"provider"`
	Model     string        `yaml:"model" koanf:"model"`
	APIKeyEnv string        `yaml:"api_key_env" koanf:"api_key_env"`
	BaseURL   string        `yaml:"base_url" koanf:"base_url"`
	Timeout   time.Duration `yaml:"timeout" koanf:"timeout"`

	Output   string   `yaml:"output" koanf:"output"`
	Audience Audience `yaml:"audience" koanf:"audience"`

	Include []string `yaml:"include" koanf:"include"`
	Exclude []string `yaml:"exclude" koanf:"exclude"`

	Analysis      AnalysisConfig      `yaml:"analysis" koanf:"analysis"`
	ContextWindow ContextWindowConfig `yaml:"context_window" koanf:"context_window"`

	CostWarningThreshold float64 `yaml:"cost_warning_threshold" koanf:"cost_warning_threshold"`

	NoCache bool `yaml:"-" koanf:"-"` // set only from --no-cache, never persisted
	Verbose bool `yaml:"-" koanf:"-"`
}

// ProviderType identifies an LLM provider implementation.
type ProviderType string

const (
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOpenAI    ProviderType = "openai"
	ProviderGoogle    ProviderType = "google"
	ProviderOllama    ProviderType = "ollama"
)

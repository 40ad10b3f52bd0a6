package config

import "time"

// DefaultExcludes are glob patterns excluded from analysis by default.
var DefaultExcludes = []string{
	"vendor/**",
	"node_modules/**",
	".git/**",
	"dist/**",
	"build/**",
	"*.min.js",
	"*.min.css",
	"*.lock",
	"go.sum",
	"package-lock.json",
	"yarn.lock",
	".handover/**",
}

// defaultModels maps each provider to the model identifier used when the
// config and flags leave Model unset.
var defaultModels = map[ProviderType]string{
	ProviderAnthropic: "claude-sonnet-4-5",
	ProviderOpenAI:    "gpt-4o",
	ProviderGoogle:    "gemini-2.0-flash",
	ProviderOllama:    "llama3",
}

// DefaultConfig returns a Config with sensible built-in defaults, the
// bottom tier of the CLI flags > env > YAML > built-in defaults overlay.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderAnthropic,
		Model:    defaultModels[ProviderAnthropic],
		Timeout:  60 * time.Second,
		Output:   "handover-docs",
		Audience: AudienceHuman,
		Include:  []string{"**"},
		Exclude:  DefaultExcludes,
		Analysis: AnalysisConfig{
			Concurrency: 0, // 0 = provider-family default, resolved in cmd/helpers.go
			StaticOnly:  false,
		},
		ContextWindow: ContextWindowConfig{
			MaxTokens: 150_000,
		},
		CostWarningThreshold: 5.0,
	}
}

// DefaultModelFor returns the default model identifier for a provider,
// falling back to the Anthropic default if the provider is unrecognized.
func DefaultModelFor(provider ProviderType) string {
	if model, ok := defaultModels[provider]; ok {
		return model
	}
	return defaultModels[ProviderAnthropic]
}

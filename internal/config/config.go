package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/handoverhq/handover/internal/herrors"
)

// Load reads configuration from the given YAML file, then overlays
// HANDOVER_* environment variable overrides. CLI flags are overlaid on top
// of the result by cmd/ after Load returns, giving the
// flags > env > YAML > defaults precedence.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, herrors.ConfigInvalid(
				fmt.Sprintf("could not parse config file %s", path),
				err.Error(),
				"check the YAML syntax against the documented keys",
				err,
			)
		}
	} else if !os.IsNotExist(err) {
		return nil, herrors.ConfigInvalid(
			fmt.Sprintf("could not access config file %s", path),
			err.Error(),
			"check file permissions on the config path",
			err,
		)
	}

	if err := k.Load(env.Provider("HANDOVER_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "HANDOVER_"))
	}), nil); err != nil {
		return nil, herrors.ConfigInvalid(
			"could not load HANDOVER_* environment overrides",
			err.Error(),
			"check environment variable values match the expected types",
			err,
		)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, herrors.ConfigInvalid(
			"could not unmarshal configuration",
			err.Error(),
			"check that config keys match the documented schema",
			err,
		)
	}

	if cfg.Model == "" {
		cfg.Model = DefaultModelFor(cfg.Provider)
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderAnthropic: true,
	ProviderOpenAI:    true,
	ProviderGoogle:    true,
	ProviderOllama:    true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return herrors.ConfigInvalid("provider is required", "", "set provider to one of anthropic, openai, google, ollama", nil)
	}
	if !validProviders[c.Provider] {
		return herrors.ConfigInvalid(
			fmt.Sprintf("invalid provider %q", c.Provider),
			"provider must be one of anthropic, openai, google, ollama",
			"fix the provider key in your config",
			nil,
		)
	}

	if c.Model == "" {
		return herrors.ConfigInvalid("model is required", "", "set model to a provider-specific model identifier", nil)
	}

	if c.Output == "" {
		return herrors.ConfigInvalid("output is required", "", "set output to a directory for rendered documents", nil)
	}

	if c.Analysis.Concurrency < 0 {
		return herrors.ConfigInvalid("analysis.concurrency must be non-negative", "", "set analysis.concurrency to 0 or a positive integer", nil)
	}

	if c.CostWarningThreshold < 0 {
		return herrors.ConfigInvalid("cost_warning_threshold must be non-negative", "", "set cost_warning_threshold to 0 or a positive number", nil)
	}

	if c.ContextWindow.MaxTokens < 0 {
		return herrors.ConfigInvalid("context_window.max_tokens must be non-negative", "", "set context_window.max_tokens to a positive integer", nil)
	}

	return nil
}

// APIKeyEnvVar returns the environment variable name holding the API key
// for the given provider, honoring an explicit override in the config.
func APIKeyEnvVar(cfg *Config) string {
	if cfg.APIKeyEnv != "" {
		return cfg.APIKeyEnv
	}
	switch cfg.Provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGoogle:
		return "GOOGLE_API_KEY"
	default:
		return ""
	}
}

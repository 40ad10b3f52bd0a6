package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != ProviderAnthropic {
		t.Errorf("expected default provider %q, got %q", ProviderAnthropic, cfg.Provider)
	}
	if cfg.Output != "handover-docs" {
		t.Errorf("expected default output %q, got %q", "handover-docs", cfg.Output)
	}
	if cfg.Analysis.Concurrency != 0 {
		t.Errorf("expected default analysis.concurrency 0 (provider-family default), got %d", cfg.Analysis.Concurrency)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.handover.yml")

	original := DefaultConfig()
	original.Provider = ProviderOpenAI
	original.Model = "gpt-4o"
	original.Include = []string{"**/*.go", "**/*.py"}
	original.Output = "output"
	original.CostWarningThreshold = 25.5

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Provider != original.Provider {
		t.Errorf("provider: got %q, want %q", loaded.Provider, original.Provider)
	}
	if loaded.Model != original.Model {
		t.Errorf("model: got %q, want %q", loaded.Model, original.Model)
	}
	if loaded.Output != original.Output {
		t.Errorf("output: got %q, want %q", loaded.Output, original.Output)
	}
	if loaded.CostWarningThreshold != original.CostWarningThreshold {
		t.Errorf("cost_warning_threshold: got %f, want %f", loaded.CostWarningThreshold, original.CostWarningThreshold)
	}
	if len(loaded.Include) != len(original.Include) {
		t.Errorf("include length: got %d, want %d", len(loaded.Include), len(original.Include))
	}
	for i, v := range loaded.Include {
		if v != original.Include[i] {
			t.Errorf("include[%d]: got %q, want %q", i, v, original.Include[i])
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.Provider != ProviderAnthropic {
		t.Errorf("expected default provider, got %q", cfg.Provider)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")

	cfg := DefaultConfig()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	os.Setenv("HANDOVER_PROVIDER", "openai")
	defer os.Unsetenv("HANDOVER_PROVIDER")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Provider != ProviderOpenAI {
		t.Errorf("env override failed: got %q, want %q", loaded.Provider, ProviderOpenAI)
	}
}

func TestValidateValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}
}

func TestValidateInvalidProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = "invalid"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid provider")
	}
}

func TestValidateEmptyProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty provider")
	}
}

func TestValidateEmptyModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty model")
	}
}

func TestValidateEmptyOutput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty output")
	}
}

func TestValidateNegativeConcurrency(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Analysis.Concurrency = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for negative analysis.concurrency")
	}
}

func TestValidateNegativeCostThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CostWarningThreshold = -5.0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for negative cost_warning_threshold")
	}
}

func TestDefaultModelFor(t *testing.T) {
	if got := DefaultModelFor(ProviderOpenAI); got != "gpt-4o" {
		t.Errorf("DefaultModelFor(openai) = %q, want gpt-4o", got)
	}
	if got := DefaultModelFor("unknown"); got != defaultModels[ProviderAnthropic] {
		t.Errorf("DefaultModelFor(unknown) should fall back to anthropic default, got %q", got)
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	tests := []struct {
		provider ProviderType
		override string
		want     string
	}{
		{ProviderAnthropic, "", "ANTHROPIC_API_KEY"},
		{ProviderOpenAI, "", "OPENAI_API_KEY"},
		{ProviderGoogle, "", "GOOGLE_API_KEY"},
		{ProviderOllama, "", ""},
		{ProviderOpenAI, "MY_CUSTOM_KEY", "MY_CUSTOM_KEY"},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Provider = tt.provider
		cfg.APIKeyEnv = tt.override
		got := APIKeyEnvVar(cfg)
		if got != tt.want {
			t.Errorf("APIKeyEnvVar(%q, override=%q) = %q, want %q", tt.provider, tt.override, got, tt.want)
		}
	}
}

package llm

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/handoverhq/handover/internal/herrors"
)

// defaultAPIKeyEnvVars maps each cloud provider to the environment variable
// NewProvider reads when apiKeyEnv is empty.
var defaultAPIKeyEnvVars = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"google":    "GOOGLE_API_KEY",
}

// NewProvider creates the Provider implementation for providerType, reading
// its API key from apiKeyEnv (falling back to the provider's default env var
// name when empty). The anthropic and ollama providers honor both baseURL and
// timeout; openai honors baseURL but not timeout; google honors timeout but
// always calls its built-in endpoint and ignores baseURL. Ollama needs no
// API key; baseURL there is the local endpoint, defaulting to OLLAMA_HOST or
// http://localhost:11434.
func NewProvider(providerType, model, apiKeyEnv, baseURL string, timeout time.Duration) (Provider, error) {
	switch providerType {
	case "anthropic":
		apiKey, err := resolveAPIKey("anthropic", apiKeyEnv)
		if err != nil {
			return nil, err
		}
		p := NewAnthropicProvider(apiKey, model, baseURL)
		applyTimeout(p.client, timeout)
		return p, nil

	case "openai":
		apiKey, err := resolveAPIKey("openai", apiKeyEnv)
		if err != nil {
			return nil, err
		}
		return NewOpenAIProvider(apiKey, model, baseURL), nil

	case "google":
		apiKey, err := resolveAPIKey("google", apiKeyEnv)
		if err != nil {
			return nil, err
		}
		p := NewGoogleProvider(apiKey, model)
		applyTimeout(p.client, timeout)
		return p, nil

	case "ollama":
		host := baseURL
		if host == "" {
			host = os.Getenv("OLLAMA_HOST")
		}
		if host == "" {
			host = "http://localhost:11434"
		}
		p := NewOllamaProvider(host, model)
		applyTimeout(p.client, timeout)
		return p, nil

	default:
		return nil, herrors.ConfigInvalid(
			fmt.Sprintf("unsupported provider %q", providerType),
			"provider must be one of anthropic, openai, google, ollama",
			"fix the provider key in your config",
			nil,
		)
	}
}

func resolveAPIKey(provider, apiKeyEnv string) (string, error) {
	envName := apiKeyEnv
	if envName == "" {
		envName = defaultAPIKeyEnvVars[provider]
	}
	apiKey := os.Getenv(envName)
	if apiKey == "" {
		return "", herrors.ProviderNoApiKey(
			fmt.Sprintf("no API key found for provider %q", provider),
			fmt.Sprintf("environment variable %s is unset or empty", envName),
			fmt.Sprintf("export %s, or set api_key_env in your config to a different variable", envName),
		)
	}
	return apiKey, nil
}

func applyTimeout(client *http.Client, timeout time.Duration) {
	if client != nil && timeout > 0 {
		client.Timeout = timeout
	}
}

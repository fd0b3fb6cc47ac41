package config

import (
	"fmt"
	"time"
)

// Supported LLM provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderGemini    = "gemini"
)

// LLMConfig selects and tunes the language model used for answer
// generation, query expansion and optional metadata extraction.
type LLMConfig struct {
	// Provider is one of anthropic, openai, ollama, gemini. When empty the
	// provider is picked from the environment: anthropic if
	// ANTHROPIC_API_KEY is set, else openai if OPENAI_API_KEY is set,
	// else ollama.
	Provider string `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"title=Provider,enum=anthropic,enum=openai,enum=ollama,enum=gemini"`

	// Model names the model. Defaults depend on the provider.
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model"`

	// APIKey overrides the provider environment variable.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key"`

	// BaseURL overrides the provider endpoint (required for self-hosted
	// OpenAI-compatible servers, optional otherwise).
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"title=Base URL"`

	Temperature float64       `yaml:"temperature,omitempty" json:"temperature,omitempty" jsonschema:"title=Temperature,default=0"`
	MaxTokens   int           `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" jsonschema:"title=Max Tokens,default=4096"`
	Timeout     time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,description=Request timeout,default=60s"`
}

func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = detectProvider()
	}
	if c.Model == "" {
		switch c.Provider {
		case ProviderAnthropic:
			c.Model = "claude-sonnet-4-20250514"
		case ProviderOpenAI:
			c.Model = "gpt-4o"
		case ProviderGemini:
			c.Model = "gemini-2.0-flash"
		default:
			c.Model = "llama2"
		}
	}
	if c.APIKey == "" {
		c.APIKey = ProviderAPIKey(c.Provider)
	}
	if c.BaseURL == "" {
		switch c.Provider {
		case ProviderAnthropic:
			c.BaseURL = "https://api.anthropic.com"
		case ProviderOpenAI:
			c.BaseURL = "https://api.openai.com/v1"
		case ProviderOllama:
			c.BaseURL = "http://localhost:11434"
		}
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
}

func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderOllama, ProviderGemini:
	default:
		return fmt.Errorf("invalid provider %q (valid: anthropic, openai, ollama, gemini)", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", c.Temperature)
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// detectProvider picks an LLM provider from the environment, preferring
// hosted APIs when a key is present and falling back to a local ollama.
func detectProvider() string {
	if ProviderAPIKey(ProviderAnthropic) != "" {
		return ProviderAnthropic
	}
	if ProviderAPIKey(ProviderOpenAI) != "" {
		return ProviderOpenAI
	}
	return ProviderOllama
}

package config

import (
	"fmt"
	"time"
)

// EmbeddingsConfig selects the dense embedding provider and sizes the
// embedding cache.
type EmbeddingsConfig struct {
	// Provider is one of tei (text-embeddings-inference server), ollama,
	// openai, cohere.
	Provider string `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"title=Provider,enum=tei,enum=ollama,enum=openai,enum=cohere,default=tei"`

	// Model names the embedding model served by the provider.
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,default=intfloat/multilingual-e5-base"`

	// BaseURL is the provider endpoint.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"title=Base URL"`

	// APIKey for hosted providers (openai, cohere).
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key"`

	// Dimension is the dense vector size produced by the model.
	Dimension int `yaml:"dimension,omitempty" json:"dimension,omitempty" jsonschema:"title=Dimension,default=768"`

	// CacheSize bounds the in-memory embedding cache (entries).
	CacheSize int `yaml:"cache_size,omitempty" json:"cache_size,omitempty" jsonschema:"title=Cache Size,default=10000"`

	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,default=60s"`
}

func (c *EmbeddingsConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "tei"
	}
	if c.Model == "" {
		c.Model = "intfloat/multilingual-e5-base"
	}
	if c.BaseURL == "" {
		switch c.Provider {
		case "tei":
			c.BaseURL = "http://localhost:8081"
		case "ollama":
			c.BaseURL = "http://localhost:11434"
		case "openai":
			c.BaseURL = "https://api.openai.com/v1"
		case "cohere":
			c.BaseURL = "https://api.cohere.ai"
		}
	}
	if c.APIKey == "" {
		c.APIKey = ProviderAPIKey(c.Provider)
	}
	if c.Dimension == 0 {
		c.Dimension = 768
	}
	if c.CacheSize == 0 {
		c.CacheSize = 10000
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
}

func (c *EmbeddingsConfig) Validate() error {
	switch c.Provider {
	case "tei", "ollama", "openai", "cohere":
	default:
		return fmt.Errorf("invalid provider %q (valid: tei, ollama, openai, cohere)", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Dimension < 1 {
		return fmt.Errorf("dimension must be positive, got %d", c.Dimension)
	}
	if c.CacheSize < 1 {
		return fmt.Errorf("cache_size must be positive, got %d", c.CacheSize)
	}
	return nil
}

package config

import (
	"fmt"
	"time"
)

// RerankerConfig selects the cross-encoder used to rescore retrieved chunks.
type RerankerConfig struct {
	// Provider is one of tei (text-embeddings-inference /rerank endpoint),
	// llm (score via the configured LLM), none (keep retrieval order).
	Provider string `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"title=Provider,enum=tei,enum=llm,enum=none,default=tei"`

	// Model names the cross-encoder model served by the provider.
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,default=BAAI/bge-reranker-v2-m3"`

	// BaseURL is the rerank server endpoint.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"title=Base URL"`

	// BaseThreshold is the floor for the adaptive relevance threshold.
	BaseThreshold float64 `yaml:"base_threshold,omitempty" json:"base_threshold,omitempty" jsonschema:"title=Base Threshold,default=0.2"`

	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,default=60s"`
}

func (c *RerankerConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "tei"
	}
	if c.Model == "" {
		c.Model = "BAAI/bge-reranker-v2-m3"
	}
	if c.BaseURL == "" && c.Provider == "tei" {
		c.BaseURL = "http://localhost:8082"
	}
	if c.BaseThreshold == 0 {
		c.BaseThreshold = 0.2
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
}

func (c *RerankerConfig) Validate() error {
	switch c.Provider {
	case "tei", "llm", "none":
	default:
		return fmt.Errorf("invalid provider %q (valid: tei, llm, none)", c.Provider)
	}
	if c.BaseThreshold < 0 || c.BaseThreshold > 1 {
		return fmt.Errorf("base_threshold must be between 0 and 1, got %g", c.BaseThreshold)
	}
	return nil
}

// Package embeddings provides dense embedding adapters over HTTP encoders,
// a term-frequency sparse encoder for hybrid retrieval, and a caching
// service shared by the ingest pipeline and the query path.
package embeddings

import (
	"context"
	"fmt"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
)

// Embedder encodes batches of texts into dense vectors.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the vector width this encoder produces.
	Dimension() int

	// Warmup primes the encoder so the first real request is not the one
	// paying model load time.
	Warmup(ctx context.Context) error
}

// New creates the embedder named by the configuration.
func New(cfg *config.EmbeddingsConfig) (Embedder, error) {
	switch cfg.Provider {
	case "tei":
		return NewTEIEmbedder(cfg)
	case "ollama":
		return NewOllamaEmbedder(cfg)
	case "openai":
		return NewOpenAIEmbedder(cfg)
	case "cohere":
		return NewCohereEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unsupported embeddings provider: %s", cfg.Provider)
	}
}

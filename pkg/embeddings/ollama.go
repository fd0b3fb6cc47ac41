package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
)

// Local Ollama servers handle concurrent embedding requests poorly; a single
// process-wide mutex serializes them.
var ollamaEmbedMu sync.Mutex

// OllamaEmbedder talks to a local Ollama server, one text per request.
type OllamaEmbedder struct {
	cfg    *config.EmbeddingsConfig
	client *http.Client
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// NewOllamaEmbedder creates an Ollama embedder from configuration.
func NewOllamaEmbedder(cfg *config.EmbeddingsConfig) (*OllamaEmbedder, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required for Ollama embedder")
	}
	return &OllamaEmbedder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (e *OllamaEmbedder) Dimension() int { return e.cfg.Dimension }

func (e *OllamaEmbedder) Warmup(ctx context.Context) error {
	_, err := e.Embed(ctx, []string{"warmup"})
	return err
}

func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := e.embedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

func (e *OllamaEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	ollamaEmbedMu.Lock()
	defer ollamaEmbedMu.Unlock()

	jsonData, err := json.Marshal(ollamaEmbedRequest{Model: e.cfg.Model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	const maxRetries = 3
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/api/embeddings", bytes.NewReader(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("ollama request failed: %w", err)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("ollama API returned status %d: %s", resp.StatusCode, string(body))
			continue
		}

		var response ollamaEmbedResponse
		if err := json.Unmarshal(body, &response); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		if response.Error != "" {
			return nil, fmt.Errorf("ollama API error: %s", response.Error)
		}
		if len(response.Embedding) == 0 {
			return nil, fmt.Errorf("ollama returned empty embedding")
		}
		return response.Embedding, nil
	}
	return nil, lastErr
}

package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/httpclient"
)

// OpenAIEmbedder talks to the OpenAI embeddings API or any compatible server.
type OpenAIEmbedder struct {
	cfg        *config.EmbeddingsConfig
	httpClient *httpclient.Client
}

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenAIEmbedder creates an OpenAI embedder from configuration.
func NewOpenAIEmbedder(cfg *config.EmbeddingsConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for OpenAI embedder")
	}
	return &OpenAIEmbedder{
		cfg: cfg,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
		),
	}, nil
}

func (e *OpenAIEmbedder) Dimension() int { return e.cfg.Dimension }

func (e *OpenAIEmbedder) Warmup(ctx context.Context) error {
	_, err := e.Embed(ctx, []string{"warmup"})
	return err
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	jsonData, err := json.Marshal(openAIEmbedRequest{Model: e.cfg.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(jsonData)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai API returned status %d: %s", resp.StatusCode, string(body))
	}

	var response openAIEmbedResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if response.Error != nil {
		return nil, fmt.Errorf("openai API error: %s", response.Error.Message)
	}
	if len(response.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d texts", len(response.Data), len(texts))
	}

	// The API may reorder results; the index field restores input order.
	vectors := make([][]float32, len(texts))
	for _, item := range response.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("openai returned out of range embedding index %d", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

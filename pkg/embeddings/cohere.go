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

// CohereEmbedder talks to the Cohere embeddings API.
type CohereEmbedder struct {
	cfg        *config.EmbeddingsConfig
	httpClient *httpclient.Client
}

type cohereEmbedRequest struct {
	Texts     []string `json:"texts"`
	Model     string   `json:"model,omitempty"`
	InputType string   `json:"input_type,omitempty"`
}

type cohereEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Message    string      `json:"message,omitempty"`
}

// NewCohereEmbedder creates a Cohere embedder from configuration.
func NewCohereEmbedder(cfg *config.EmbeddingsConfig) (*CohereEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for Cohere embedder")
	}
	return &CohereEmbedder{
		cfg: cfg,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		),
	}, nil
}

func (e *CohereEmbedder) Dimension() int { return e.cfg.Dimension }

func (e *CohereEmbedder) Warmup(ctx context.Context) error {
	_, err := e.Embed(ctx, []string{"warmup"})
	return err
}

func (e *CohereEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	jsonData, err := json.Marshal(cohereEmbedRequest{
		Texts:     texts,
		Model:     e.cfg.Model,
		InputType: "search_document",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/embed", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(jsonData)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cohere request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		var errResp cohereEmbedResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
			return nil, fmt.Errorf("cohere API error: %s", errResp.Message)
		}
		return nil, fmt.Errorf("cohere API returned status %d: %s", resp.StatusCode, string(body))
	}

	var response cohereEmbedResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("cohere returned %d embeddings for %d texts", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

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

// TEIEmbedder talks to a text-embeddings-inference server.
type TEIEmbedder struct {
	cfg        *config.EmbeddingsConfig
	httpClient *httpclient.Client
}

type teiEmbedRequest struct {
	Inputs   []string `json:"inputs"`
	Truncate bool     `json:"truncate"`
}

// NewTEIEmbedder creates a TEI embedder from configuration.
func NewTEIEmbedder(cfg *config.EmbeddingsConfig) (*TEIEmbedder, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required for TEI embedder")
	}
	return &TEIEmbedder{
		cfg: cfg,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		),
	}, nil
}

func (e *TEIEmbedder) Dimension() int { return e.cfg.Dimension }

func (e *TEIEmbedder) Warmup(ctx context.Context) error {
	_, err := e.Embed(ctx, []string{"warmup"})
	return err
}

func (e *TEIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	jsonData, err := json.Marshal(teiEmbedRequest{Inputs: texts, Truncate: true})
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
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tei request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tei API returned status %d: %s", resp.StatusCode, string(body))
	}

	var vectors [][]float32
	if err := json.Unmarshal(body, &vectors); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("tei returned %d embeddings for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

package reranking

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

// TEIReranker scores candidates with a text-embeddings-inference
// cross-encoder.
type TEIReranker struct {
	cfg        *config.RerankerConfig
	httpClient *httpclient.Client
}

type teiRerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type teiRerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// NewTEIReranker creates a TEI reranker from configuration.
func NewTEIReranker(cfg *config.RerankerConfig) (*TEIReranker, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required for TEI reranker")
	}
	return &TEIReranker{
		cfg: cfg,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		),
	}, nil
}

func (r *TEIReranker) Rerank(ctx context.Context, query string, candidates []Candidate, topK int, applyThreshold bool) ([]Candidate, error) {
	if len(candidates) == 0 {
		return []Candidate{}, nil
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}

	results, err := r.score(ctx, query, texts)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(candidates))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(scores) {
			return nil, fmt.Errorf("reranker returned out of range index %d", res.Index)
		}
		scores[res.Index] = res.Score
	}

	return selectCandidates(candidates, scores, topK, applyThreshold, r.cfg.BaseThreshold), nil
}

func (r *TEIReranker) score(ctx context.Context, query string, texts []string) ([]teiRerankResult, error) {
	jsonData, err := json.Marshal(teiRerankRequest{Query: query, Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/rerank", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(jsonData)), nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank API returned status %d: %s", resp.StatusCode, string(body))
	}

	var results []teiRerankResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return results, nil
}

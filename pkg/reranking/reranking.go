// Package reranking rescores retrieved candidates with a cross-encoder and
// filters them through an adaptive score threshold.
package reranking

import (
	"context"
	"fmt"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/llms"
)

// Candidate is one retrieved chunk entering the reranker.
type Candidate struct {
	ID       string
	Text     string
	Score    float64
	Metadata map[string]any
}

// Reranker reorders candidates by relevance to the query.
type Reranker interface {
	// Rerank scores candidates against the query, sorts them descending and
	// truncates to topK. With applyThreshold the adaptive threshold filters
	// low scorers and the first returned element carries threshold_used and
	// threshold_reason in its metadata.
	Rerank(ctx context.Context, query string, candidates []Candidate, topK int, applyThreshold bool) ([]Candidate, error)
}

// New creates the reranker named by the configuration.
func New(cfg *config.RerankerConfig, llm llms.Provider) (Reranker, error) {
	switch cfg.Provider {
	case "tei":
		return NewTEIReranker(cfg)
	case "llm":
		if llm == nil {
			return nil, fmt.Errorf("llm reranker requires an LLM provider")
		}
		return NewLLMReranker(cfg, llm), nil
	case "none":
		return &PassthroughReranker{baseThreshold: cfg.BaseThreshold}, nil
	default:
		return nil, fmt.Errorf("unsupported reranker provider: %s", cfg.Provider)
	}
}

// PassthroughReranker keeps retrieval scores untouched.
type PassthroughReranker struct {
	baseThreshold float64
}

func (r *PassthroughReranker) Rerank(_ context.Context, _ string, candidates []Candidate, topK int, applyThreshold bool) ([]Candidate, error) {
	if len(candidates) == 0 {
		return []Candidate{}, nil
	}
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = c.Score
	}
	return selectCandidates(candidates, scores, topK, applyThreshold, r.baseThreshold), nil
}

package reranking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/llms"
)

const llmRerankSystemPrompt = `You score how relevant text passages are to a question.
Respond with a JSON array of numbers between 0.0 and 1.0, one per passage,
in the order given. Respond with the JSON array only.`

// LLMReranker scores candidates by asking a chat model. It is the fallback
// when no cross-encoder is deployed.
type LLMReranker struct {
	cfg *config.RerankerConfig
	llm llms.Provider
}

// NewLLMReranker creates an LLM-backed reranker.
func NewLLMReranker(cfg *config.RerankerConfig, llm llms.Provider) *LLMReranker {
	return &LLMReranker{cfg: cfg, llm: llm}
}

func (r *LLMReranker) Rerank(ctx context.Context, query string, candidates []Candidate, topK int, applyThreshold bool) ([]Candidate, error) {
	if len(candidates) == 0 {
		return []Candidate{}, nil
	}

	scores, err := r.score(ctx, query, candidates)
	if err != nil {
		// Scoring failure falls back to retrieval order.
		slog.Warn("LLM rerank failed, keeping retrieval scores", "error", err)
		scores = make([]float64, len(candidates))
		for i, c := range candidates {
			scores[i] = c.Score
		}
	}

	return selectCandidates(candidates, scores, topK, applyThreshold, r.cfg.BaseThreshold), nil
}

func (r *LLMReranker) score(ctx context.Context, query string, candidates []Candidate) ([]float64, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\n", query)
	for i, c := range candidates {
		fmt.Fprintf(&sb, "Passage %d:\n%s\n\n", i+1, c.Text)
	}

	response, err := r.llm.Generate(ctx, []llms.Message{
		llms.System(llmRerankSystemPrompt),
		llms.User(sb.String()),
	})
	if err != nil {
		return nil, err
	}

	scores, err := parseScoreArray(response)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("expected %d scores, got %d", len(candidates), len(scores))
	}
	return scores, nil
}

// parseScoreArray pulls the first JSON array out of a model response, which
// may be wrapped in code fences or prose.
func parseScoreArray(response string) ([]float64, error) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var scores []float64
	if err := json.Unmarshal([]byte(response[start:end+1]), &scores); err != nil {
		return nil, fmt.Errorf("failed to parse scores: %w", err)
	}
	return scores, nil
}

package rag

import (
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
)

// contextTokenBudget caps how many tokens the retrieved contexts may take
// in the generation prompt, leaving room for history and the answer.
const contextTokenBudget = 12000

// tokenCounter counts prompt tokens, with a characters/4 estimate when no
// encoding is available.
type tokenCounter struct {
	encoding *tiktoken.Tiktoken
}

func newTokenCounter(model string) *tokenCounter {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		slog.Warn("Token encoding unavailable, estimating token counts", "model", model, "error", err)
		return &tokenCounter{}
	}
	return &tokenCounter{encoding: encoding}
}

func (t *tokenCounter) count(text string) int {
	if t.encoding == nil {
		return len(text) / 4
	}
	return len(t.encoding.Encode(text, nil, nil))
}

// truncate cuts text down to at most maxTokens tokens.
func (t *tokenCounter) truncate(text string, maxTokens int) string {
	if t.encoding == nil {
		return truncateRunes(text, maxTokens*4)
	}
	tokens := t.encoding.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return t.encoding.Decode(tokens[:maxTokens])
}

// fitContexts keeps contexts in order while they fit the budget. The first
// context is always kept, truncated if it alone overflows.
func (t *tokenCounter) fitContexts(contexts []string, budget int) []string {
	fitted := make([]string, 0, len(contexts))
	used := 0
	for i, ctx := range contexts {
		n := t.count(ctx)
		if used+n > budget {
			if i == 0 {
				fitted = append(fitted, t.truncate(ctx, budget))
			}
			break
		}
		fitted = append(fitted, ctx)
		used += n
	}
	return fitted
}

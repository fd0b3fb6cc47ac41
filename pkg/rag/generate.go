package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/llms"
)

// GenerateStream streams the answer for a question given its retrieved
// contexts and the recent chat history.
func (e *Engine) GenerateStream(ctx context.Context, question string, contexts []string, history []llms.Message) (<-chan llms.StreamChunk, error) {
	return e.llm.GenerateStreaming(ctx, e.buildMessages(question, contexts, history))
}

// Generate runs the blocking variant, used for tests and non-streaming
// callers.
func (e *Engine) Generate(ctx context.Context, question string, contexts []string, history []llms.Message) (string, error) {
	return e.llm.Generate(ctx, e.buildMessages(question, contexts, history))
}

func (e *Engine) buildMessages(question string, contexts []string, history []llms.Message) []llms.Message {
	e.counterOnce.Do(func() {
		e.counter = newTokenCounter(e.llm.ModelName())
	})
	contexts = e.counter.fitContexts(contexts, contextTokenBudget)

	numbered := make([]string, len(contexts))
	for i, ctx := range contexts {
		numbered[i] = fmt.Sprintf("Context %d:\n%s", i+1, ctx)
	}
	contextStr := strings.Join(numbered, "\n\n")

	messages := []llms.Message{llms.System(answerSystemPrompt)}
	if len(history) > maxChatHistory {
		history = history[len(history)-maxChatHistory:]
	}
	messages = append(messages, history...)
	messages = append(messages, llms.User(fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextStr, question)))
	return messages
}

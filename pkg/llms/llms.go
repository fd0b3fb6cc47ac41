// Package llms provides language model adapters for answer generation,
// query expansion and metadata extraction. Providers share one minimal
// capability: turn a message list into text, eagerly or as a token stream.
package llms

import (
	"context"
	"fmt"
	"strings"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
)

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation sent to the model.
type Message struct {
	Role    Role
	Content string
}

// System returns a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User returns a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant returns an assistant message.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// StreamChunk is one unit of a streaming response.
// Type is "text", "done" or "error".
type StreamChunk struct {
	Type   string
	Text   string
	Tokens int
	Error  error
}

// Provider is the capability shared by all LLM backends.
type Provider interface {
	// Generate runs a blocking completion and returns the full text.
	Generate(ctx context.Context, messages []Message) (string, error)

	// GenerateStreaming returns a channel of chunks. The channel is closed
	// after the final "done" or "error" chunk.
	GenerateStreaming(ctx context.Context, messages []Message) (<-chan StreamChunk, error)

	// ModelName reports the configured model identifier.
	ModelName() string

	// MaxTokens reports the configured completion budget.
	MaxTokens() int

	Close() error
}

// New creates a Provider from configuration.
func New(cfg *config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return NewAnthropicProvider(cfg)
	case config.ProviderOpenAI:
		return NewOpenAIProvider(cfg)
	case config.ProviderOllama:
		return NewOllamaProvider(cfg)
	case config.ProviderGemini:
		return NewGeminiProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s (supported: anthropic, openai, ollama, gemini)", cfg.Provider)
	}
}

// Collect drains a streaming channel into a single string, surfacing the
// first error chunk.
func Collect(ch <-chan StreamChunk) (string, error) {
	var sb strings.Builder
	for chunk := range ch {
		switch chunk.Type {
		case "text":
			sb.WriteString(chunk.Text)
		case "error":
			return sb.String(), chunk.Error
		}
	}
	return sb.String(), nil
}

// splitSystem separates leading system messages from the conversation for
// providers that carry the system prompt out-of-band.
func splitSystem(messages []Message) (string, []Message) {
	var systemParts []string
	rest := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if msg.Content != "" {
				systemParts = append(systemParts, msg.Content)
			}
			continue
		}
		rest = append(rest, msg)
	}
	return strings.Join(systemParts, "\n\n"), rest
}

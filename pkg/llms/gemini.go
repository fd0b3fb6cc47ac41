package llms

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
)

// GeminiProvider wraps the official Gemini SDK.
type GeminiProvider struct {
	cfg    *config.LLMConfig
	client *genai.Client
}

// NewGeminiProvider creates a Gemini provider from configuration.
func NewGeminiProvider(cfg *config.LLMConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for Gemini")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{cfg: cfg, client: client}, nil
}

func (p *GeminiProvider) ModelName() string { return p.cfg.Model }
func (p *GeminiProvider) MaxTokens() int    { return p.cfg.MaxTokens }
func (p *GeminiProvider) Close() error      { return nil }

func (p *GeminiProvider) buildContents(messages []Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	system, rest := splitSystem(messages)

	contents := make([]*genai.Content, 0, len(rest))
	for _, msg := range rest {
		role := genai.Role(genai.RoleUser)
		if msg.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(p.cfg.Temperature)),
		MaxOutputTokens: int32(p.cfg.MaxTokens),
	}
	if system != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	return contents, genCfg
}

// Generate runs a blocking completion.
func (p *GeminiProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	contents, genCfg := p.buildContents(messages)

	resp, err := p.client.Models.GenerateContent(ctx, p.cfg.Model, contents, genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	return resp.Text(), nil
}

// GenerateStreaming streams completion tokens as they arrive.
func (p *GeminiProvider) GenerateStreaming(ctx context.Context, messages []Message) (<-chan StreamChunk, error) {
	contents, genCfg := p.buildContents(messages)
	outputCh := make(chan StreamChunk, 100)

	go func() {
		defer close(outputCh)
		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.cfg.Model, contents, genCfg) {
			if err != nil {
				outputCh <- StreamChunk{Type: "error", Error: fmt.Errorf("gemini stream failed: %w", err)}
				return
			}
			if text := resp.Text(); text != "" {
				outputCh <- StreamChunk{Type: "text", Text: text}
			}
		}
		outputCh <- StreamChunk{Type: "done"}
	}()

	return outputCh, nil
}

package llms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/httpclient"
)

const anthropicVersion = "2023-06-01"

// AnthropicProvider speaks the Anthropic Messages API.
type AnthropicProvider struct {
	cfg        *config.LLMConfig
	httpClient *httpclient.Client
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	Stream      bool               `json:"stream"`
	System      string             `json:"system,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Usage   anthropicUsage     `json:"usage"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"delta,omitempty"`
	Usage *anthropicUsage `json:"usage,omitempty"`
}

// NewAnthropicProvider creates an Anthropic provider from configuration.
func NewAnthropicProvider(cfg *config.LLMConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for Anthropic")
	}
	return &AnthropicProvider{
		cfg: cfg,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
			httpclient.WithHeaderParser(httpclient.ParseAnthropicHeaders),
		),
	}, nil
}

func (p *AnthropicProvider) ModelName() string { return p.cfg.Model }
func (p *AnthropicProvider) MaxTokens() int    { return p.cfg.MaxTokens }
func (p *AnthropicProvider) Close() error      { return nil }

func (p *AnthropicProvider) buildRequest(messages []Message, stream bool) anthropicRequest {
	system, rest := splitSystem(messages)

	converted := make([]anthropicMessage, 0, len(rest))
	for _, msg := range rest {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "assistant"
		}
		converted = append(converted, anthropicMessage{Role: role, Content: msg.Content})
	}

	return anthropicRequest{
		Model:       p.cfg.Model,
		Messages:    converted,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
		Stream:      stream,
		System:      system,
	}
}

func (p *AnthropicProvider) newHTTPRequest(ctx context.Context, request anthropicRequest) (*http.Request, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/messages", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(jsonData)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	return req, nil
}

// Generate runs a blocking completion.
func (p *AnthropicProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	req, err := p.newHTTPRequest(ctx, p.buildRequest(messages, false))
	if err != nil {
		return "", err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic API returned status %d: %s", resp.StatusCode, string(body))
	}

	var response anthropicResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if response.Error != nil {
		return "", fmt.Errorf("anthropic API error: %s", response.Error.Message)
	}

	var sb strings.Builder
	for _, content := range response.Content {
		if content.Type == "text" {
			sb.WriteString(content.Text)
		}
	}
	return sb.String(), nil
}

// GenerateStreaming streams completion tokens as they arrive.
func (p *AnthropicProvider) GenerateStreaming(ctx context.Context, messages []Message) (<-chan StreamChunk, error) {
	outputCh := make(chan StreamChunk, 100)

	go func() {
		defer close(outputCh)
		if err := p.stream(ctx, p.buildRequest(messages, true), outputCh); err != nil {
			outputCh <- StreamChunk{Type: "error", Error: err}
		}
	}()

	return outputCh, nil
}

func (p *AnthropicProvider) stream(ctx context.Context, request anthropicRequest, outputCh chan<- StreamChunk) error {
	req, err := p.newHTTPRequest(ctx, request)
	if err != nil {
		return err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("anthropic API returned status %d: %s", resp.StatusCode, string(body))
	}

	var totalTokens int
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") || !strings.HasPrefix(line, "data: ") {
			continue
		}

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			return fmt.Errorf("failed to decode stream event: %w", err)
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta != nil && event.Delta.Text != "" {
				outputCh <- StreamChunk{Type: "text", Text: event.Delta.Text}
			}
		case "message_delta":
			if event.Usage != nil {
				totalTokens = event.Usage.OutputTokens
			}
		case "message_stop":
			outputCh <- StreamChunk{Type: "done", Tokens: totalTokens}
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stream: %w", err)
	}

	outputCh <- StreamChunk{Type: "done", Tokens: totalTokens}
	return nil
}

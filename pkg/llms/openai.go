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

// OpenAIProvider speaks the OpenAI Chat Completions API. It also serves any
// OpenAI-compatible server when base_url points elsewhere.
type OpenAIProvider struct {
	cfg        *config.LLMConfig
	httpClient *httpclient.Client
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	Stream      bool            `json:"stream"`
}

type openAIChoice struct {
	Message *openAIMessage `json:"message,omitempty"`
	Delta   *openAIMessage `json:"delta,omitempty"`
}

type openAIUsage struct {
	TotalTokens int `json:"total_tokens"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   *openAIUsage   `json:"usage,omitempty"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewOpenAIProvider creates an OpenAI provider from configuration.
func NewOpenAIProvider(cfg *config.LLMConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" && strings.Contains(cfg.BaseURL, "api.openai.com") {
		return nil, fmt.Errorf("API key is required for OpenAI")
	}
	return &OpenAIProvider{
		cfg: cfg,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
		),
	}, nil
}

func (p *OpenAIProvider) ModelName() string { return p.cfg.Model }
func (p *OpenAIProvider) MaxTokens() int    { return p.cfg.MaxTokens }
func (p *OpenAIProvider) Close() error      { return nil }

func (p *OpenAIProvider) buildRequest(messages []Message, stream bool) openAIRequest {
	converted := make([]openAIMessage, 0, len(messages))
	for _, msg := range messages {
		converted = append(converted, openAIMessage{Role: string(msg.Role), Content: msg.Content})
	}
	return openAIRequest{
		Model:       p.cfg.Model,
		Messages:    converted,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
		Stream:      stream,
	}
}

func (p *OpenAIProvider) newHTTPRequest(ctx context.Context, request openAIRequest) (*http.Request, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(jsonData)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
	return req, nil
}

// Generate runs a blocking completion.
func (p *OpenAIProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	req, err := p.newHTTPRequest(ctx, p.buildRequest(messages, false))
	if err != nil {
		return "", err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai API returned status %d: %s", resp.StatusCode, string(body))
	}

	var response openAIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if response.Error != nil {
		return "", fmt.Errorf("openai API error: %s", response.Error.Message)
	}
	if len(response.Choices) == 0 || response.Choices[0].Message == nil {
		return "", fmt.Errorf("openai API returned no choices")
	}
	return response.Choices[0].Message.Content, nil
}

// GenerateStreaming streams completion tokens as they arrive.
func (p *OpenAIProvider) GenerateStreaming(ctx context.Context, messages []Message) (<-chan StreamChunk, error) {
	outputCh := make(chan StreamChunk, 100)

	go func() {
		defer close(outputCh)
		if err := p.stream(ctx, p.buildRequest(messages, true), outputCh); err != nil {
			outputCh <- StreamChunk{Type: "error", Error: err}
		}
	}()

	return outputCh, nil
}

func (p *OpenAIProvider) stream(ctx context.Context, request openAIRequest, outputCh chan<- StreamChunk) error {
	req, err := p.newHTTPRequest(ctx, request)
	if err != nil {
		return err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("openai API returned status %d: %s", resp.StatusCode, string(body))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			outputCh <- StreamChunk{Type: "done"}
			return nil
		}

		var response openAIResponse
		if err := json.Unmarshal([]byte(data), &response); err != nil {
			return fmt.Errorf("failed to decode stream event: %w", err)
		}
		if len(response.Choices) > 0 && response.Choices[0].Delta != nil && response.Choices[0].Delta.Content != "" {
			outputCh <- StreamChunk{Type: "text", Text: response.Choices[0].Delta.Content}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stream: %w", err)
	}

	outputCh <- StreamChunk{Type: "done"}
	return nil
}

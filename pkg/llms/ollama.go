package llms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/httpclient"
)

// OllamaProvider speaks the Ollama chat API. Responses stream as NDJSON
// rather than SSE.
type OllamaProvider struct {
	cfg        *config.LLMConfig
	httpClient *httpclient.Client
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaResponse struct {
	Message   *ollamaMessage `json:"message,omitempty"`
	Done      bool           `json:"done"`
	EvalCount int            `json:"eval_count,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// NewOllamaProvider creates an Ollama provider from configuration.
func NewOllamaProvider(cfg *config.LLMConfig) (*OllamaProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required for Ollama")
	}
	return &OllamaProvider{
		cfg: cfg,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		),
	}, nil
}

func (p *OllamaProvider) ModelName() string { return p.cfg.Model }
func (p *OllamaProvider) MaxTokens() int    { return p.cfg.MaxTokens }
func (p *OllamaProvider) Close() error      { return nil }

func (p *OllamaProvider) buildRequest(messages []Message, stream bool) ollamaRequest {
	converted := make([]ollamaMessage, 0, len(messages))
	for _, msg := range messages {
		converted = append(converted, ollamaMessage{Role: string(msg.Role), Content: msg.Content})
	}
	return ollamaRequest{
		Model:    p.cfg.Model,
		Messages: converted,
		Stream:   stream,
		Options: ollamaOptions{
			Temperature: p.cfg.Temperature,
			NumPredict:  p.cfg.MaxTokens,
		},
	}
}

func (p *OllamaProvider) newHTTPRequest(ctx context.Context, request ollamaRequest) (*http.Request, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(jsonData)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Generate runs a blocking completion.
func (p *OllamaProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	req, err := p.newHTTPRequest(ctx, p.buildRequest(messages, false))
	if err != nil {
		return "", err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama API returned status %d: %s", resp.StatusCode, string(body))
	}

	var response ollamaResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if response.Error != "" {
		return "", fmt.Errorf("ollama API error: %s", response.Error)
	}
	if response.Message == nil {
		return "", fmt.Errorf("ollama API returned no message")
	}
	return response.Message.Content, nil
}

// GenerateStreaming streams completion tokens as they arrive.
func (p *OllamaProvider) GenerateStreaming(ctx context.Context, messages []Message) (<-chan StreamChunk, error) {
	outputCh := make(chan StreamChunk, 100)

	go func() {
		defer close(outputCh)
		if err := p.stream(ctx, p.buildRequest(messages, true), outputCh); err != nil {
			outputCh <- StreamChunk{Type: "error", Error: err}
		}
	}()

	return outputCh, nil
}

func (p *OllamaProvider) stream(ctx context.Context, request ollamaRequest, outputCh chan<- StreamChunk) error {
	req, err := p.newHTTPRequest(ctx, request)
	if err != nil {
		return err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama API returned status %d: %s", resp.StatusCode, string(body))
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			var response ollamaResponse
			if jsonErr := json.Unmarshal(bytes.TrimSpace(line), &response); jsonErr != nil {
				return fmt.Errorf("failed to decode stream line: %w", jsonErr)
			}
			if response.Error != "" {
				return fmt.Errorf("ollama API error: %s", response.Error)
			}
			if response.Message != nil && response.Message.Content != "" {
				outputCh <- StreamChunk{Type: "text", Text: response.Message.Content}
			}
			if response.Done {
				outputCh <- StreamChunk{Type: "done", Tokens: response.EvalCount}
				return nil
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read stream: %w", err)
		}
	}

	outputCh <- StreamChunk{Type: "done"}
	return nil
}

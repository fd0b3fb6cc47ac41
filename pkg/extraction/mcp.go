package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
)

// Tool and parameter names vary across converter servers; each is tried in
// order until one works.
var (
	converterToolNames  = []string{"convert_document", "convert", "extract_text"}
	converterParamNames = []string{"file_path", "path", "input", "document"}
)

// MCPConverter runs an external document converter over MCP stdio. The
// subprocess is started lazily on first use.
type MCPConverter struct {
	cfg *config.MCPConverterConfig

	mu        sync.Mutex
	client    *client.Client
	connected bool
	toolName  string
	paramName string
}

// NewMCPConverter creates a converter from configuration. Returns nil when
// no command is configured.
func NewMCPConverter(cfg *config.MCPConverterConfig) *MCPConverter {
	if cfg == nil || cfg.Command == "" {
		return nil
	}
	return &MCPConverter{cfg: cfg}
}

// Convert extracts text from the file through the converter server.
func (c *MCPConverter) Convert(path string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()

	if !c.connected {
		if err := c.connect(ctx); err != nil {
			return "", fmt.Errorf("failed to connect to converter: %w", err)
		}
	}

	if c.toolName != "" {
		return c.call(ctx, c.toolName, c.paramName, path)
	}

	// Unknown server: probe the tool and parameter name combinations.
	var lastErr error
	for _, tool := range converterToolNames {
		for _, param := range converterParamNames {
			text, err := c.call(ctx, tool, param, path)
			if err == nil {
				c.toolName = tool
				c.paramName = param
				return text, nil
			}
			lastErr = err
		}
	}
	return "", fmt.Errorf("no converter tool accepted the request: %w", lastErr)
}

func (c *MCPConverter) connect(ctx context.Context) error {
	mcpClient, err := client.NewStdioMCPClient(c.cfg.Command, c.cfg.Env, c.cfg.Args...)
	if err != nil {
		return fmt.Errorf("failed to create MCP client: %w", err)
	}

	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("failed to start MCP client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "minirag",
		Version: "1.0.0",
	}
	initReq.Params.ProtocolVersion = "2024-11-05"

	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return fmt.Errorf("failed to initialize MCP: %w", err)
	}

	// Resolve the tool name up front when the server advertises one we know.
	if listResp, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{}); err == nil {
		available := make(map[string]bool, len(listResp.Tools))
		for _, tool := range listResp.Tools {
			available[tool.Name] = true
		}
		for _, name := range converterToolNames {
			if available[name] {
				c.toolName = name
				c.paramName = converterParamNames[0]
				break
			}
		}
	}

	c.client = mcpClient
	c.connected = true
	slog.Info("Connected to MCP document converter", "command", c.cfg.Command)
	return nil
}

func (c *MCPConverter) call(ctx context.Context, tool, param, path string) (string, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = map[string]any{param: path}

	resp, err := c.client.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("MCP call failed: %w", err)
	}

	var texts []string
	for _, content := range resp.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			texts = append(texts, textContent.Text)
		}
	}
	if resp.IsError {
		msg := "unknown error"
		if len(texts) > 0 {
			msg = texts[0]
		}
		return "", fmt.Errorf("converter error: %s", msg)
	}
	return strings.Join(texts, "\n"), nil
}

// Close shuts down the converter subprocess.
func (c *MCPConverter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		c.connected = false
		return err
	}
	return nil
}

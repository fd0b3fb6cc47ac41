package config

import (
	"fmt"
	"time"
)

// IngestConfig tunes the background processing worker.
type IngestConfig struct {
	// CheckInterval is how often the worker scans for pending documents.
	CheckInterval time.Duration `yaml:"check_interval,omitempty" json:"check_interval,omitempty" jsonschema:"title=Check Interval,default=10s"`

	// WatchUploads installs a filesystem watcher on the upload directory
	// that nudges the worker as soon as a file lands, instead of waiting
	// for the next tick.
	WatchUploads *bool `yaml:"watch_uploads,omitempty" json:"watch_uploads,omitempty" jsonschema:"title=Watch Uploads,default=true"`

	// MCPConverter optionally runs a structured PDF-to-text converter as an
	// MCP tool subprocess. Empty command disables the converter; extraction
	// then falls back to page-by-page text.
	MCPConverter MCPConverterConfig `yaml:"mcp_converter,omitempty" json:"mcp_converter,omitempty" jsonschema:"title=MCP Converter"`
}

// MCPConverterConfig launches an external document converter speaking the
// Model Context Protocol over stdio.
type MCPConverterConfig struct {
	Command string        `yaml:"command,omitempty" json:"command,omitempty" jsonschema:"title=Command,description=Converter executable (empty disables)"`
	Args    []string      `yaml:"args,omitempty" json:"args,omitempty" jsonschema:"title=Arguments"`
	Env     []string      `yaml:"env,omitempty" json:"env,omitempty" jsonschema:"title=Environment,description=KEY=VALUE pairs for the subprocess"`
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,default=120s"`
}

func (c *IngestConfig) SetDefaults() {
	if c.CheckInterval == 0 {
		c.CheckInterval = 10 * time.Second
	}
	if c.WatchUploads == nil {
		t := true
		c.WatchUploads = &t
	}
	if c.MCPConverter.Timeout == 0 {
		c.MCPConverter.Timeout = 120 * time.Second
	}
}

func (c *IngestConfig) Validate() error {
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check_interval must be positive")
	}
	if c.MCPConverter.Timeout <= 0 {
		return fmt.Errorf("mcp_converter.timeout must be positive")
	}
	return nil
}

// WatchUploadsEnabled reports whether the upload directory watcher runs.
func (c *IngestConfig) WatchUploadsEnabled() bool {
	return c.WatchUploads == nil || *c.WatchUploads
}

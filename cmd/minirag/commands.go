package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
)

// ValidateCmd checks a configuration file without starting anything.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required for validate")
	}
	cfg, loader, err := config.Load(context.Background(), cli.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}
	if cfg == nil {
		return fmt.Errorf("config file not found: %s", cli.Config)
	}
	fmt.Printf("Configuration is valid: %s\n", cli.Config)
	return nil
}

// SchemaCmd prints the config JSON schema for editors and UIs.
type SchemaCmd struct{}

func (c *SchemaCmd) Run() error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(config.Schema())
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("minirag %s\n", version)
	return nil
}

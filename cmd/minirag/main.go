// Command minirag runs the document QA engine.
//
// Usage:
//
//	minirag serve --config config.yaml
//	minirag validate --config config.yaml
//	minirag schema
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/logger"
)

// CLI defines the command-line interface.
type CLI struct {
	Serve    ServeCmd    `cmd:"" default:"1" help:"Start the HTTP server and background workers."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`
	Schema   SchemaCmd   `cmd:"" help:"Print the configuration JSON schema."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Config file path or provider URI (consul://, etcd://, zk://)." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (simple, verbose, json)." default:"simple"`
	LogFile   string `help:"Log file path (empty = stderr)."`
}

func main() {
	_ = config.LoadEnvFiles()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("minirag"),
		kong.Description("Document-grounded question answering engine"),
		kong.UsageOnError(),
	)

	level, _ := logger.ParseLevel(cli.LogLevel)
	output := os.Stderr
	if cli.LogFile != "" {
		file, cleanup, err := logger.OpenLogFile(cli.LogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		output = file
	}
	logger.Init(level, output, cli.LogFormat)

	ctx.FatalIfErrorf(ctx.Run(&cli))
}

// Package main is the entry point for the repoknow CLI.
//
// repoknow analyzes a local git repository and saves documentation, diagrams,
// an analysis record and code snippets to a knowledge base API. Runs are
// checkpointed so an interrupted or partially failed analysis can be resumed
// without creating records twice. The same pipeline is served to AI
// assistants over MCP by the mcp subcommand.
package main

import (
	"context"
	"fmt"
	"os"

	"repoknow/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	logger := logging.NewAppLogger()

	root := newRootCmd(logger)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

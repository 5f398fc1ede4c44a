package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"repoknow/internal/mcp"
)

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the analysis tools over MCP on stdin/stdout",
		Long: `Start a Model Context Protocol server on stdin/stdout. AI assistants start it
as a subprocess and call analyze_repository, get_analysis_progress,
list_checkpoints, delete_checkpoint and clear_analysis_cache.

Stdout carries protocol messages only. Set REPOKNOW_DEBUG=1 to write a debug
log file instead of logging warnings to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			store, err := a.checkpoints()
			if err != nil {
				return err
			}
			c, err := a.analysisCache()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := mcp.NewServer(p, store, c, a.logger, version)
			return server.Serve(ctx, cmd.InOrStdin(), os.Stdout)
		},
	}
}

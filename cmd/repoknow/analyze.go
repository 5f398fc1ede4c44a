package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"repoknow/internal/checkpoint"
	"repoknow/internal/pipeline"
)

type analyzeFlags struct {
	repositoryID       string
	projectID          string
	checkpointID       string
	deep               bool
	includeNodeModules bool
	noCache            bool
	force              bool
	resume             bool
	render             bool
	jsonOutput         bool
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var f analyzeFlags
	cmd := &cobra.Command{
		Use:   "analyze [path]",
		Short: "Analyze a repository and save the results to the knowledge base",
		Long: `Analyze the git repository at path (default: the current directory) and save
documentation, diagrams, coding standards, an analysis record and code snippets
to the knowledge base.

Interrupting with Ctrl-C pauses the run. Continue it with --resume; artifacts
saved before the interruption are not created again.

Examples:
  repoknow analyze
  repoknow analyze ~/src/shop --deep
  repoknow analyze ~/src/shop --resume
  repoknow analyze ~/src/shop --resume --checkpoint 4f0c...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			return runAnalyze(cmd, a, path, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.repositoryID, "repository-id", "", "reuse this knowledge base repository")
	flags.StringVar(&f.projectID, "project-id", "", "reuse this knowledge base project")
	flags.StringVar(&f.checkpointID, "checkpoint", "", "checkpoint to resume (implies --resume)")
	flags.BoolVar(&f.deep, "deep", false, "generate model-written insights")
	flags.BoolVar(&f.includeNodeModules, "include-node-modules", false, "crawl node_modules too")
	flags.BoolVar(&f.noCache, "no-cache", false, "neither read nor write the analysis cache")
	flags.BoolVar(&f.force, "force", false, "ignore the cache and earlier checkpoints")
	flags.BoolVar(&f.resume, "resume", false, "continue the latest unfinished run for path")
	flags.BoolVar(&f.render, "render", false, "render the generated summary in the terminal")
	flags.BoolVar(&f.jsonOutput, "json", false, "print the run result as JSON")
	cmd.MarkFlagsMutuallyExclusive("force", "resume")
	cmd.MarkFlagsMutuallyExclusive("json", "render")
	return cmd
}

func runAnalyze(cmd *cobra.Command, a *app, path string, f analyzeFlags) error {
	p, err := a.pipeline()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := p.Run(ctx, pipeline.Options{
		Path:               path,
		RepositoryID:       f.repositoryID,
		ProjectID:          f.projectID,
		DeepAnalysis:       f.deep,
		IncludeNodeModules: f.includeNodeModules,
		UseCache:           !f.noCache,
		ForceRefresh:       f.force,
		Resume:             f.resume || f.checkpointID != "",
		CheckpointID:       f.checkpointID,
	})
	if result == nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	if f.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
		return runErr
	}

	writeResult(out, result)
	if f.render && result.Analysis != nil {
		rendered, err := renderMarkdown(pipeline.RenderSummary(result.Analysis), 100)
		if err != nil {
			a.logger.Warn("Failed to render summary", "error", err)
		} else {
			fmt.Fprint(out, rendered)
		}
	}

	resumeHint := fmt.Sprintf("repoknow analyze %s --checkpoint %s", path, result.CheckpointID)
	switch {
	case errors.Is(runErr, context.Canceled):
		fmt.Fprintln(out, warningStyle.Render("Paused. Continue with: ")+resumeHint)
		return runErr
	case runErr != nil:
		if result.Status == checkpoint.StatusFailed && result.Analysis != nil {
			fmt.Fprintln(out, subtleStyle.Render("Fix the cause and continue with: ")+resumeHint)
		}
		return runErr
	case result.Status != checkpoint.StatusCompleted:
		fmt.Fprintln(out, subtleStyle.Render("Retry the unsaved artifacts with: ")+resumeHint)
		return fmt.Errorf("analysis finished with %d unsaved artifacts", len(result.Unsaved))
	}
	return nil
}

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"repoknow/internal/cache"
	"repoknow/internal/checkpoint"
	"repoknow/internal/logging"
	"repoknow/internal/pipeline"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Tool names.
const (
	ToolAnalyzeRepository = "analyze_repository"
	ToolAnalysisProgress  = "get_analysis_progress"
	ToolListCheckpoints   = "list_checkpoints"
	ToolDeleteCheckpoint  = "delete_checkpoint"
	ToolClearCache        = "clear_analysis_cache"
)

const serverInstructions = `repoknow analyzes a local git repository and stores what it learns in the knowledge base.
- Call analyze_repository with the repository path. Interrupted or partially failed runs can be
  continued with resume=true; already saved artifacts are never created twice.
- get_analysis_progress reports which steps of a run are done and which errors were recorded.`

// Server exposes the analysis pipeline as MCP tools.
type Server struct {
	pipeline  *pipeline.Pipeline
	store     *checkpoint.Store
	cache     *cache.Cache
	logger    *logging.AppLogger
	version   string
	mcpServer *server.MCPServer
}

// NewServer creates a server. The cache may be nil.
func NewServer(p *pipeline.Pipeline, store *checkpoint.Store, c *cache.Cache, logger *logging.AppLogger, version string) *Server {
	return &Server{
		pipeline: p,
		store:    store,
		cache:    c,
		logger:   logger,
		version:  version,
	}
}

// MCPServer returns the underlying mcp-go server, registering the tools on
// first use.
func (s *Server) MCPServer() *server.MCPServer {
	if s.mcpServer != nil {
		return s.mcpServer
	}
	s.mcpServer = server.NewMCPServer(
		"repoknow",
		s.version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions),
	)
	s.mcpServer.AddTool(s.toolAnalyzeRepository())
	s.mcpServer.AddTool(s.toolAnalysisProgress())
	s.mcpServer.AddTool(s.toolListCheckpoints())
	s.mcpServer.AddTool(s.toolDeleteCheckpoint())
	s.mcpServer.AddTool(s.toolClearCache())
	return s.mcpServer
}

// Serve speaks JSON-RPC over in and out until ctx is done or in reaches EOF.
// Stdout belongs to the protocol; diagnostics go through the logger.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("Starting MCP server", "version", s.version)
	stdio := server.NewStdioServer(s.MCPServer())
	stdio.SetErrorLogger(s.logger.StandardLog())
	if err := stdio.Listen(ctx, in, out); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	s.logger.Info("MCP server stopped")
	return nil
}

func (s *Server) toolAnalyzeRepository() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool(ToolAnalyzeRepository,
		mcp.WithDescription("Analyze a local git repository and save documentation, diagrams, an analysis record and code snippets to the knowledge base. Progress is checkpointed so an interrupted run can be resumed."),
		mcp.WithString("path",
			mcp.Description("Absolute path of the repository working tree"),
			mcp.Required(),
		),
		mcp.WithString("repository_id",
			mcp.Description("Existing knowledge base repository id to reuse"),
		),
		mcp.WithString("project_id",
			mcp.Description("Existing knowledge base project id to reuse"),
		),
		mcp.WithBoolean("deep_analysis",
			mcp.Description("Also generate model-written insights"),
			mcp.DefaultBool(false),
		),
		mcp.WithBoolean("include_node_modules",
			mcp.Description("Crawl node_modules too"),
			mcp.DefaultBool(false),
		),
		mcp.WithBoolean("use_cache",
			mcp.Description("Reuse a cached analysis of the same commit"),
			mcp.DefaultBool(true),
		),
		mcp.WithBoolean("force_refresh",
			mcp.Description("Ignore the cache and earlier checkpoints"),
			mcp.DefaultBool(false),
		),
		mcp.WithBoolean("resume",
			mcp.Description("Continue the latest unfinished run for this path, or the one named by checkpoint_id"),
			mcp.DefaultBool(false),
		),
		mcp.WithString("checkpoint_id",
			mcp.Description("Checkpoint to resume"),
		),
	)
	return tool, s.handleAnalyzeRepository
}

func (s *Server) handleAnalyzeRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts := pipeline.Options{
		Path:               path,
		RepositoryID:       request.GetString("repository_id", ""),
		ProjectID:          request.GetString("project_id", ""),
		DeepAnalysis:       request.GetBool("deep_analysis", false),
		IncludeNodeModules: request.GetBool("include_node_modules", false),
		UseCache:           request.GetBool("use_cache", true),
		ForceRefresh:       request.GetBool("force_refresh", false),
		Resume:             request.GetBool("resume", false),
		CheckpointID:       request.GetString("checkpoint_id", ""),
	}

	result, err := s.pipeline.Run(ctx, opts)
	if err != nil {
		s.logger.Warn("Analysis tool call failed", "path", path, "error", err)
		msg := fmt.Sprintf("analysis of %s failed: %v", path, err)
		if result != nil {
			msg += fmt.Sprintf(" (checkpoint %s, status %s; call %s with resume=true to continue)",
				result.CheckpointID, result.Status, ToolAnalyzeRepository)
		}
		return mcp.NewToolResultError(msg), nil
	}
	return jsonResult(result)
}

func (s *Server) toolAnalysisProgress() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool(ToolAnalysisProgress,
		mcp.WithDescription("Report step completion and recorded errors of an analysis run. Give checkpoint_id, or path for the latest run of a repository."),
		mcp.WithString("checkpoint_id",
			mcp.Description("Checkpoint id returned by analyze_repository"),
		),
		mcp.WithString("path",
			mcp.Description("Repository path; used when checkpoint_id is empty"),
		),
	)
	return tool, s.handleAnalysisProgress
}

func (s *Server) handleAnalysisProgress(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("checkpoint_id", "")
	path := request.GetString("path", "")

	var (
		report *pipeline.ProgressReport
		err    error
	)
	switch {
	case id != "":
		report, err = s.pipeline.Progress(id)
	case path != "":
		report, err = s.pipeline.LatestProgress(path)
	default:
		return mcp.NewToolResultError("either checkpoint_id or path is required"), nil
	}
	if err != nil {
		return mcp.NewToolResultErrorFromErr("cannot read progress", err), nil
	}
	return jsonResult(report)
}

func (s *Server) toolListCheckpoints() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool(ToolListCheckpoints,
		mcp.WithDescription("List analysis checkpoints, most recent first."),
		mcp.WithString("path",
			mcp.Description("Only list checkpoints of this repository path"),
		),
	)
	return tool, s.handleListCheckpoints
}

func (s *Server) handleListCheckpoints(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.pipeline.Checkpoints(request.GetString("path", ""))
	if err != nil {
		return mcp.NewToolResultErrorFromErr("cannot list checkpoints", err), nil
	}
	return jsonResult(list)
}

func (s *Server) toolDeleteCheckpoint() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool(ToolDeleteCheckpoint,
		mcp.WithDescription("Delete an analysis checkpoint. Records already saved to the knowledge base are kept."),
		mcp.WithString("checkpoint_id",
			mcp.Description("Checkpoint to delete"),
			mcp.Required(),
		),
		mcp.WithDestructiveHintAnnotation(true),
	)
	return tool, s.handleDeleteCheckpoint
}

func (s *Server) handleDeleteCheckpoint(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("checkpoint_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.store.Delete(id); err != nil {
		return mcp.NewToolResultErrorFromErr("cannot delete checkpoint", err), nil
	}
	s.logger.Info("Checkpoint deleted", "checkpoint", id)
	return mcp.NewToolResultText(fmt.Sprintf("Deleted checkpoint %s.", id)), nil
}

func (s *Server) toolClearCache() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool(ToolClearCache,
		mcp.WithDescription("Remove cached analyses so the next run analyzes from scratch."),
		mcp.WithString("path",
			mcp.Description("Only clear entries of this repository path; all entries when empty"),
		),
		mcp.WithDestructiveHintAnnotation(true),
	)
	return tool, s.handleClearCache
}

func (s *Server) handleClearCache(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.cache == nil {
		return mcp.NewToolResultError("the analysis cache is not configured"), nil
	}

	var (
		removed int
		err     error
	)
	if path := request.GetString("path", ""); path != "" {
		root, absErr := pipeline.ResolveRoot(path)
		if absErr != nil {
			return mcp.NewToolResultErrorFromErr("cannot resolve path", absErr), nil
		}
		removed, err = s.cache.ClearPath(root)
	} else {
		removed, err = s.cache.Clear()
	}
	if err != nil {
		return mcp.NewToolResultErrorFromErr("cannot clear cache", err), nil
	}
	s.logger.Info("Analysis cache cleared", "removed", removed)
	return mcp.NewToolResultText(fmt.Sprintf("Removed %d cached analyses.", removed)), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

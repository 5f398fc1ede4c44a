package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repoknow/internal/cache"
	"repoknow/internal/checkpoint"
	"repoknow/internal/knowledge"
	"repoknow/internal/logging"
	"repoknow/internal/model"
	"repoknow/internal/pipeline"
)

type testServer struct {
	*Server
	store *checkpoint.Store
	cache *cache.Cache
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	logger, _ := logging.NewTestLogger()
	store, err := checkpoint.NewStore(filepath.Join(t.TempDir(), "checkpoints"), logger)
	require.NoError(t, err)
	c, err := cache.New(filepath.Join(t.TempDir(), "cache"), logger)
	require.NoError(t, err)
	client, err := knowledge.NewClient(knowledge.Options{BaseURL: "http://127.0.0.1:1", Logger: logger})
	require.NoError(t, err)

	p, err := pipeline.New(pipeline.Dependencies{
		API:         client,
		Checkpoints: store,
		Cache:       c,
		Logger:      logger,
	})
	require.NoError(t, err)
	return testServer{Server: NewServer(p, store, c, logger, "test"), store: store, cache: c}
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestMCPServerRegistersTools(t *testing.T) {
	s := newTestServer(t)
	first := s.MCPServer()
	require.NotNil(t, first)
	assert.Same(t, first, s.MCPServer(), "tools are registered once")

	reply := first.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(reply)
	require.NoError(t, err)
	for _, name := range []string{ToolAnalyzeRepository, ToolAnalysisProgress, ToolListCheckpoints, ToolDeleteCheckpoint, ToolClearCache} {
		assert.Contains(t, string(data), `"name":"`+name+`"`)
	}
}

func TestAnalyzeRepositoryRequiresPath(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleAnalyzeRepository(context.Background(), call(ToolAnalyzeRepository, map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestAnalyzeRepositoryReportsFatalFailure(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))

	res, err := s.handleAnalyzeRepository(context.Background(), call(ToolAnalyzeRepository, map[string]any{"path": dir}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	text := resultText(t, res)
	assert.Contains(t, text, "not a git repository")
	assert.Contains(t, text, "resume=true")

	list, err := s.store.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, checkpoint.StatusFailed, list[0].Status)
}

func TestAnalysisProgress(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()
	cp, err := s.store.Create(dir)
	require.NoError(t, err)
	cp.Complete(pipeline.StepReadRepository)
	require.NoError(t, s.store.Save(cp))

	res, err := s.handleAnalysisProgress(context.Background(), call(ToolAnalysisProgress, map[string]any{"checkpoint_id": cp.ID}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var report pipeline.ProgressReport
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &report))
	assert.Equal(t, cp.ID, report.CheckpointID)
	assert.Equal(t, checkpoint.StatusInProgress, report.Status)
	require.NotEmpty(t, report.Steps)
	assert.Equal(t, pipeline.StepReadRepository, report.Steps[0].Name)
	assert.True(t, report.Steps[0].Completed)

	byPath, err := s.handleAnalysisProgress(context.Background(), call(ToolAnalysisProgress, map[string]any{"path": dir}))
	require.NoError(t, err)
	assert.False(t, byPath.IsError)
	assert.Contains(t, resultText(t, byPath), cp.ID)

	missing, err := s.handleAnalysisProgress(context.Background(), call(ToolAnalysisProgress, map[string]any{}))
	require.NoError(t, err)
	assert.True(t, missing.IsError)

	unknown, err := s.handleAnalysisProgress(context.Background(), call(ToolAnalysisProgress, map[string]any{"checkpoint_id": checkpoint.GenerateID()}))
	require.NoError(t, err)
	assert.True(t, unknown.IsError)
}

func TestListAndDeleteCheckpoints(t *testing.T) {
	s := newTestServer(t)
	a, err := s.store.Create(t.TempDir())
	require.NoError(t, err)
	_, err = s.store.Create(t.TempDir())
	require.NoError(t, err)

	res, err := s.handleListCheckpoints(context.Background(), call(ToolListCheckpoints, nil))
	require.NoError(t, err)
	var all []pipeline.CheckpointSummary
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &all))
	assert.Len(t, all, 2)

	res, err = s.handleListCheckpoints(context.Background(), call(ToolListCheckpoints, map[string]any{"path": a.ProjectPath}))
	require.NoError(t, err)
	var filtered []pipeline.CheckpointSummary
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &filtered))
	require.Len(t, filtered, 1)
	assert.Equal(t, a.ID, filtered[0].CheckpointID)

	res, err = s.handleDeleteCheckpoint(context.Background(), call(ToolDeleteCheckpoint, map[string]any{"checkpoint_id": a.ID}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	_, err = s.store.Load(a.ID)
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)

	res, err = s.handleDeleteCheckpoint(context.Background(), call(ToolDeleteCheckpoint, map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestClearCache(t *testing.T) {
	s := newTestServer(t)
	keep, drop := t.TempDir(), t.TempDir()
	analysis := &model.ComprehensiveAnalysis{Repository: model.RepositoryInfo{Name: "demo"}}
	require.NoError(t, s.cache.Put(keep, "abc", analysis, cache.Metadata{}))
	require.NoError(t, s.cache.Put(drop, "abc", analysis, cache.Metadata{}))

	res, err := s.handleClearCache(context.Background(), call(ToolClearCache, map[string]any{"path": drop}))
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 cached analyses.", resultText(t, res))

	_, err = s.cache.Get(keep, "abc")
	assert.NoError(t, err)
	_, err = s.cache.Get(drop, "abc")
	assert.ErrorIs(t, err, cache.ErrMiss)

	res, err = s.handleClearCache(context.Background(), call(ToolClearCache, nil))
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 cached analyses.", resultText(t, res))
}

package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repoknow/internal/model"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	return c
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("/work/demo", "abc"), Key("/work/demo", "abc"), "same input yields same key")
	assert.NotEqual(t, Key("/work/demo", "abc"), Key("/work/demo", "def"))
	assert.NotEqual(t, Key("/work/demo", ""), Key("/work/demo", "abc"))
	assert.NotEqual(t, Key("/work/demo", ""), Key("/work/other", ""))
	assert.Len(t, Key("/work/demo", ""), 64)
}

func TestNew_EmptyDir(t *testing.T) {
	_, err := New("", nil)
	assert.Error(t, err)
}

func TestPutGet(t *testing.T) {
	c := newTestCache(t)
	analyzedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	analysis := &model.ComprehensiveAnalysis{
		Repository: model.RepositoryInfo{Name: "demo", CommitHash: "abc"},
		Functions:  []model.FunctionRecord{{Name: "getX", FilePath: "src/utils/x.ts", Category: model.CategoryUtility}},
		AnalyzedAt: analyzedAt,
	}

	_, err := c.Get("/work/demo", "abc")
	require.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Put("/work/demo", "abc", analysis, Metadata{RepositoryID: "r1", ProjectID: "p1", SavedToAPI: true}))

	entry, err := c.Get("/work/demo", "abc")
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, entry.SchemaVersion)
	assert.Equal(t, "demo", entry.Analysis.Repository.Name)
	require.Len(t, entry.Analysis.Functions, 1)
	assert.Equal(t, "getX", entry.Analysis.Functions[0].Name)

	meta := entry.Metadata
	assert.Equal(t, "/work/demo", meta.ProjectPath)
	assert.Equal(t, "abc", meta.CommitHash)
	assert.Equal(t, "r1", meta.RepositoryID)
	assert.Equal(t, "p1", meta.ProjectID)
	assert.True(t, meta.SavedToAPI)
	assert.True(t, meta.AnalyzedAt.Equal(analyzedAt))
	assert.False(t, meta.CachedAt.IsZero())

	_, err = c.Get("/work/demo", "def")
	assert.ErrorIs(t, err, ErrMiss, "a different commit misses")
}

func TestGet_CorruptAndNewerEntries(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, os.WriteFile(filepath.Join(c.dir, Key("/a", "")+".json"), []byte("{"), 0o600))
	_, err := c.Get("/a", "")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, os.WriteFile(filepath.Join(c.dir, Key("/b", "")+".json"), []byte(`{"schemaVersion": 7}`), 0o600))
	_, err = c.Get("/b", "")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestDeleteAndClear(t *testing.T) {
	c := newTestCache(t)
	analysis := &model.ComprehensiveAnalysis{}

	require.NoError(t, c.Put("/work/demo", "c1", analysis, Metadata{}))
	require.NoError(t, c.Put("/work/demo", "c2", analysis, Metadata{}))
	require.NoError(t, c.Put("/work/other", "", analysis, Metadata{}))

	require.NoError(t, c.Delete("/work/demo", "c1"))
	require.NoError(t, c.Delete("/work/demo", "c1"), "deleting a missing entry is not an error")
	_, err := c.Get("/work/demo", "c1")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Put("/work/demo", "c3", analysis, Metadata{}))
	removed, err := c.ClearPath("/work/demo")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = c.Get("/work/other", "")
	require.NoError(t, err)

	removed, err = c.Clear()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/go-git/go-git/v6"
	gitconfig "github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repoknow/internal/cache"
	"repoknow/internal/checkpoint"
	"repoknow/internal/config"
	"repoknow/internal/docs"
	"repoknow/internal/gitmeta"
	"repoknow/internal/knowledge"
	"repoknow/internal/logging"
	"repoknow/internal/model"
)

const utilitySource = "function getX() {}\n"

// initRepo commits files into a new repository named demo and returns its
// path.
func initRepo(t *testing.T, files map[string]string) (string, *git.Repository) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "demo")
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)

	paths := make([]string, 0, len(files))
	for rel := range files {
		paths = append(paths, rel)
	}
	slices.Sort(paths)
	for _, rel := range paths {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(files[rel]), 0o644))
		_, err := wt.Add(rel)
		require.NoError(t, err)
	}

	_, err = wt.Commit("initial commit", &git.CommitOptions{
		Author: &object.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return root, repo
}

type testEnv struct {
	api      *fakeAPI
	pipeline *Pipeline
	store    *checkpoint.Store
	cache    *cache.Cache
}

func newTestEnv(t *testing.T, mutate ...func(*Dependencies)) *testEnv {
	t.Helper()
	store, err := checkpoint.NewStore(filepath.Join(t.TempDir(), "checkpoints"), nil)
	require.NoError(t, err)
	c, err := cache.New(filepath.Join(t.TempDir(), "cache"), nil)
	require.NoError(t, err)
	logger, _ := logging.NewTestLogger()

	api := newFakeAPI()
	deps := Dependencies{
		API:         api,
		Checkpoints: store,
		Cache:       c,
		Analysis:    config.DefaultConfig().Analysis,
		Logger:      logger,
	}
	for _, m := range mutate {
		m(&deps)
	}
	p, err := New(deps)
	require.NoError(t, err)
	return &testEnv{api: api, pipeline: p, store: store, cache: c}
}

func stepSummary(t *testing.T, steps []checkpoint.StepSummary, name string) checkpoint.StepSummary {
	t.Helper()
	for _, s := range steps {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("step %s not reported", name)
	return checkpoint.StepSummary{}
}

func hasError(entries []checkpoint.ErrorEntry, step string) bool {
	return slices.ContainsFunc(entries, func(e checkpoint.ErrorEntry) bool { return e.Step == step })
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Dependencies{})
	assert.Error(t, err)

	_, err = New(Dependencies{API: newFakeAPI()})
	assert.Error(t, err)
}

func TestRun_SingleUtilityFunction(t *testing.T) {
	root, _ := initRepo(t, map[string]string{
		"README.md":      "# Demo\n\nA tiny demo.\n",
		"src/utils/x.ts": utilitySource,
	})
	env := newTestEnv(t)

	result, err := env.pipeline.Run(context.Background(), Options{Path: root})
	require.NoError(t, err)

	assert.Equal(t, checkpoint.StatusCompleted, result.Status)
	assert.False(t, result.Resumed)
	assert.Empty(t, result.Unsaved)
	assert.Empty(t, result.Errors)

	require.Len(t, result.Analysis.Functions, 1)
	fn := result.Analysis.Functions[0]
	assert.Equal(t, "getX", fn.Name)
	assert.Equal(t, model.CategoryUtility, fn.Category)
	assert.Equal(t, "src/utils/x.ts", fn.FilePath)

	assert.Equal(t, 1, env.api.snippetsTitled("getX"), "exactly one snippet for getX")
	assert.Equal(t, 1, env.api.snippetsTitled("src/utils/x.ts"), "the file is saved as a key file")
	assert.Equal(t, 1, env.api.repoCreates)
	assert.Equal(t, 1, env.api.projectCreates)
	assert.NotEmpty(t, result.RepositoryID)
	assert.NotEmpty(t, result.ProjectID)

	require.Len(t, env.api.docs, 2, "README plus the main documentation")
	assert.Equal(t, "README.md", env.api.docs[0].FilePath)
	assert.Equal(t, "readme", env.api.docs[0].DocType)
	assert.Equal(t, "overview", env.api.docs[1].DocType)
	assert.NotContains(t, env.api.docs[1].Metadata, "analysis")

	require.Len(t, env.api.analyses, 1)
	assert.Equal(t, result.RepositoryID, env.api.analyses[0].RepositoryID)
	assert.Len(t, env.api.markdownOfType("coding-standards"), 1)
	assert.Len(t, env.api.markdownOfType("folder-structure"), 1)
	assert.Len(t, env.api.markdownOfType("summary"), 1)
	assert.Empty(t, env.api.markdownOfType("api-routes"), "no routes, no routes document")

	for _, s := range result.Steps {
		assert.True(t, s.Completed, "step %s", s.Name)
	}

	cp, err := env.store.Load(result.CheckpointID)
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusCompleted, cp.Status)
	assert.Equal(t, result.RepositoryID, cp.Remote.RepositoryID)
}

func TestRun_ResumeAfterInterruptedSnippets(t *testing.T) {
	root, _ := initRepo(t, map[string]string{"src/utils/x.ts": utilitySource})
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.api.afterSnippet = func(s knowledge.Snippet) {
		if s.Title == "getX" {
			cancel()
		}
	}

	first, err := env.pipeline.Run(ctx, Options{Path: root})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, first)
	assert.Equal(t, checkpoint.StatusPaused, first.Status)

	progress, err := env.pipeline.Progress(first.CheckpointID)
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusPaused, progress.Status)
	snippets := stepSummary(t, progress.Steps, StepSaveSnippets)
	assert.False(t, snippets.Completed)
	assert.Equal(t, 1, snippets.Saved)
	assert.True(t, stepSummary(t, progress.Steps, StepSaveSummary).Completed)

	env.api.afterSnippet = nil
	second, err := env.pipeline.Run(context.Background(), Options{
		Path:         root,
		Resume:       true,
		CheckpointID: first.CheckpointID,
	})
	require.NoError(t, err)

	assert.True(t, second.Resumed)
	assert.Equal(t, first.CheckpointID, second.CheckpointID)
	assert.Equal(t, checkpoint.StatusCompleted, second.Status)
	assert.Equal(t, 1, env.api.snippetsTitled("getX"), "getX is created once across both runs")
	assert.Equal(t, 1, env.api.snippetsTitled("src/utils/x.ts"))
	assert.Equal(t, 1, env.api.repoCreates)
	assert.Len(t, env.api.markdownOfType("summary"), 1, "completed steps are not repeated")
}

func TestRun_ResumeSavesRemainingBatchItems(t *testing.T) {
	root, _ := initRepo(t, map[string]string{
		"src/utils/math.ts": "export function addOne(n) { return n + 1 }\n" +
			"export function addTwo(n) { return n + 2 }\n" +
			"export function double(n) { return n * 2 }\n" +
			"export function negate(n) { return -n }\n",
	})
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	created := 0
	env.api.afterSnippet = func(knowledge.Snippet) {
		created++
		if created == 2 {
			cancel()
		}
	}

	first, err := env.pipeline.Run(ctx, Options{Path: root})
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, env.api.snippets, 2)

	env.api.afterSnippet = nil
	_, err = env.pipeline.Run(context.Background(), Options{Path: root, Resume: true})
	require.NoError(t, err)

	for _, name := range []string{"addOne", "addTwo", "double", "negate"} {
		assert.Equal(t, 1, env.api.snippetsTitled(name), "snippet %s", name)
	}

	cp, err := env.store.Load(first.CheckpointID)
	require.NoError(t, err)
	batch := cp.Steps[StepSaveSnippets].Batches[BatchUtility]
	require.NotNil(t, batch)
	assert.Equal(t, 4, batch.Saved)
	assert.Equal(t, 4, batch.Total)
	assert.Len(t, batch.IDs, 4)
}

func TestRun_SnippetCheckpointCadence(t *testing.T) {
	root, _ := initRepo(t, map[string]string{
		"src/utils/math.ts": "export function addOne(n) { return n + 1 }\n" +
			"export function addTwo(n) { return n + 2 }\n" +
			"export function double(n) { return n * 2 }\n" +
			"export function negate(n) { return -n }\n",
	})
	env := newTestEnv(t, func(d *Dependencies) {
		d.Analysis.CheckpointEvery = 2
	})

	// Saved counts on disk as each snippet is being created.
	var onDisk []int
	env.api.afterSnippet = func(knowledge.Snippet) {
		list, err := env.store.List()
		require.NoError(t, err)
		require.NotEmpty(t, list)
		saved := 0
		if step, ok := list[0].Steps[StepSaveSnippets]; ok {
			if b, ok := step.Batches[BatchUtility]; ok {
				saved = b.Saved
			}
		}
		onDisk = append(onDisk, saved)
	}

	result, err := env.pipeline.Run(context.Background(), Options{Path: root})
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusCompleted, result.Status)

	require.GreaterOrEqual(t, len(onDisk), 5)
	assert.Equal(t, []int{0, 0, 2, 2, 4}, onDisk[:5], "at most CheckpointEvery-1 creations are unrecorded")

	cp, err := env.store.Load(result.CheckpointID)
	require.NoError(t, err)
	assert.Equal(t, 4, cp.Steps[StepSaveSnippets].Batches[BatchUtility].Saved)
}

// interruptingDocs wraps the documentation reader, remembering which files
// it opens and canceling the run after stopAfter documents.
type interruptingDocs struct {
	inner     *docs.Reader
	stopAfter int
	cancel    context.CancelFunc
	reads     []string
}

func (d *interruptingDocs) ReadAll(ctx context.Context, files []model.FileRecord, known []model.DocumentationFile, read docs.FileReader, onRead func(model.DocumentationFile) error) ([]model.DocumentationFile, error) {
	delivered := 0
	return d.inner.ReadAll(ctx, files, known,
		func(rel string) ([]byte, error) {
			d.reads = append(d.reads, rel)
			return read(rel)
		},
		func(doc model.DocumentationFile) error {
			if err := onRead(doc); err != nil {
				return err
			}
			delivered++
			if d.cancel != nil && delivered == d.stopAfter {
				d.cancel()
			}
			return nil
		})
}

func TestRun_ResumeAfterInterruptedDocumentationRead(t *testing.T) {
	root, _ := initRepo(t, map[string]string{
		"README.md":   "# Demo\n",
		"docs/a.md":   "# A\n",
		"docs/b.md":   "# B\n",
		"docs/c.md":   "# C\n",
		"src/main.ts": "export function main() {}\n",
	})
	reader := &interruptingDocs{inner: docs.NewReader(nil), stopAfter: 2}
	env := newTestEnv(t, func(d *Dependencies) {
		d.Documentation = reader
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader.cancel = cancel

	first, err := env.pipeline.Run(ctx, Options{Path: root})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, checkpoint.StatusPaused, first.Status)
	assert.Equal(t, []string{"README.md", "docs/a.md"}, reader.reads)

	cp, err := env.store.Load(first.CheckpointID)
	require.NoError(t, err)
	step := cp.Steps[StepReadDocs]
	require.NotNil(t, step)
	assert.False(t, step.Completed)
	assert.Equal(t, []string{"README.md", "docs/a.md"}, step.Items)
	var recorded []model.DocumentationFile
	ok, err := cp.Data(StepReadDocs, &recorded)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, recorded, 2)

	reader.cancel = nil
	reader.reads = nil
	second, err := env.pipeline.Run(context.Background(), Options{Path: root, Resume: true})
	require.NoError(t, err)
	assert.Equal(t, first.CheckpointID, second.CheckpointID)
	assert.Equal(t, checkpoint.StatusCompleted, second.Status)
	assert.Equal(t, []string{"docs/b.md", "docs/c.md"}, reader.reads, "recorded documents are not read again")

	var saved []string
	for _, d := range env.api.docs {
		if d.DocType != "overview" {
			saved = append(saved, d.FilePath)
		}
	}
	assert.Equal(t, []string{"README.md", "docs/a.md", "docs/b.md", "docs/c.md"}, saved)
}

func TestRun_SubdirectoryAnalyzesWholeCheckout(t *testing.T) {
	root, _ := initRepo(t, map[string]string{
		"README.md":      "# Demo\n",
		"src/utils/x.ts": utilitySource,
	})
	env := newTestEnv(t)

	result, err := env.pipeline.Run(context.Background(), Options{Path: filepath.Join(root, "src")})
	require.NoError(t, err)

	repo := result.Analysis.Repository
	assert.Equal(t, root, repo.RootPath)
	assert.Equal(t, "demo", repo.Name)
	require.Len(t, result.Analysis.Functions, 1)
	assert.Equal(t, "src/utils/x.ts", result.Analysis.Functions[0].FilePath)

	cp, err := env.store.Load(result.CheckpointID)
	require.NoError(t, err)
	assert.Equal(t, root, cp.ProjectPath)

	latest, err := env.pipeline.LatestProgress(filepath.Join(root, "src", "utils"))
	require.NoError(t, err)
	assert.Equal(t, result.CheckpointID, latest.CheckpointID)

	_, err = env.cache.Get(root, repo.CommitHash)
	assert.NoError(t, err, "the cache is keyed by the checkout root")
}

func TestRun_LogsOptionsAtDebugLevel(t *testing.T) {
	root, _ := initRepo(t, map[string]string{"src/utils/x.ts": utilitySource})
	logger, buf := logging.NewTestLogger()
	env := newTestEnv(t, func(d *Dependencies) {
		d.Logger = logger
	})

	_, err := env.pipeline.Run(context.Background(), Options{Path: root, DeepAnalysis: true})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Object dump")
	assert.Contains(t, out, "DeepAnalysis:true")
}

func TestRun_NotAGitRepository(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))
	env := newTestEnv(t)

	result, err := env.pipeline.Run(context.Background(), Options{Path: dir})
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, gitmeta.ErrNotAGitRepository)
	require.NotNil(t, result)
	assert.Equal(t, checkpoint.StatusFailed, result.Status)

	cp, err := env.store.Load(result.CheckpointID)
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusFailed, cp.Status)
	assert.True(t, hasError(cp.Errors, StepReadRepository))
}

func TestRun_PreconditionFailureAborts(t *testing.T) {
	root, _ := initRepo(t, map[string]string{"src/utils/x.ts": utilitySource})
	env := newTestEnv(t)
	env.api.failCreateRepo = serverError("repositories")

	result, err := env.pipeline.Run(context.Background(), Options{Path: root})
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, ErrPreconditionFailed)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepEnsureRepository, stepErr.Step)

	assert.Equal(t, checkpoint.StatusFailed, result.Status)
	assert.Empty(t, env.api.snippets)
	assert.Empty(t, env.api.docs)
	assert.Len(t, result.Unsaved, len(PersistenceSteps))
	assert.True(t, hasError(result.Errors, StepEnsureRepository))

	// The analysis phase is kept; a resume only retries persistence.
	env.api.failCreateRepo = nil
	resumed, err := env.pipeline.Run(context.Background(), Options{Path: root, Resume: true})
	require.NoError(t, err)
	assert.Equal(t, result.CheckpointID, resumed.CheckpointID)
	assert.Equal(t, checkpoint.StatusCompleted, resumed.Status)
	assert.Equal(t, 1, env.api.snippetsTitled("getX"))
}

func TestRun_StepFailureIsRecordedAndRunContinues(t *testing.T) {
	root, _ := initRepo(t, map[string]string{"src/utils/x.ts": utilitySource})
	env := newTestEnv(t)
	env.api.failMarkdown = func(doc knowledge.MarkdownDocument) error {
		if doc.DocumentType == "coding-standards" {
			return serverError("markdown-documents")
		}
		return nil
	}

	result, err := env.pipeline.Run(context.Background(), Options{Path: root})
	require.NoError(t, err, "a failed step is not fatal")
	assert.Equal(t, checkpoint.StatusFailed, result.Status)
	assert.True(t, hasError(result.Errors, StepSaveStandards))
	assert.Contains(t, result.Unsaved, Artifact{Step: StepSaveStandards, Error: result.Errors[0].Message})
	assert.False(t, stepSummary(t, result.Steps, StepSaveStandards).Completed)
	assert.True(t, stepSummary(t, result.Steps, StepSaveSnippets).Completed, "later steps still run")
	assert.Equal(t, 1, env.api.snippetsTitled("getX"))

	env.api.failMarkdown = nil
	resumed, err := env.pipeline.Run(context.Background(), Options{Path: root, Resume: true})
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusCompleted, resumed.Status)
	assert.Len(t, env.api.markdownOfType("coding-standards"), 1)
	assert.Len(t, env.api.markdownOfType("summary"), 1)
	assert.Equal(t, 1, env.api.snippetsTitled("getX"))
}

func TestRun_AnalysisRecordFallsBackToFile(t *testing.T) {
	root, _ := initRepo(t, map[string]string{"src/utils/x.ts": utilitySource})
	env := newTestEnv(t)
	env.api.noAnalysisEndpoint = true

	result, err := env.pipeline.Run(context.Background(), Options{Path: root})
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusCompleted, result.Status)

	require.Len(t, env.api.files, 1)
	assert.Equal(t, "repository-analysis.json", env.api.files[0].Name)
	assert.Equal(t, "application/json", env.api.files[0].MimeType)
	assert.Contains(t, env.api.files[0].Content, `"getX"`)

	overview := env.api.docs[len(env.api.docs)-1]
	assert.NotContains(t, overview.Metadata, "analysis")
}

func TestRun_AnalysisEmbeddedWhenNoRecordCanBeSaved(t *testing.T) {
	root, _ := initRepo(t, map[string]string{"src/utils/x.ts": utilitySource})
	env := newTestEnv(t)
	env.api.noAnalysisEndpoint = true
	env.api.failFiles = true

	result, err := env.pipeline.Run(context.Background(), Options{Path: root})
	require.NoError(t, err)
	assert.True(t, hasError(result.Errors, StepSaveAnalysis))
	assert.True(t, stepSummary(t, result.Steps, StepSaveMainDoc).Completed)

	overview := env.api.docs[len(env.api.docs)-1]
	assert.Equal(t, "overview", overview.DocType)
	assert.Contains(t, overview.Metadata, "analysis")
}

func TestRun_CacheShortCircuit(t *testing.T) {
	root, _ := initRepo(t, map[string]string{"src/utils/x.ts": utilitySource})
	env := newTestEnv(t)

	first, err := env.pipeline.Run(context.Background(), Options{Path: root, UseCache: true})
	require.NoError(t, err)
	require.Equal(t, checkpoint.StatusCompleted, first.Status)
	snippets := len(env.api.snippets)

	entry, err := env.cache.Get(root, first.Analysis.Repository.CommitHash)
	require.NoError(t, err)
	assert.True(t, entry.Metadata.SavedToAPI)
	assert.Equal(t, first.RepositoryID, entry.Metadata.RepositoryID)

	cached, err := env.pipeline.Run(context.Background(), Options{Path: root, UseCache: true})
	require.NoError(t, err)
	assert.True(t, cached.FromCache)
	assert.Equal(t, checkpoint.StatusCompleted, cached.Status)
	assert.Equal(t, first.RepositoryID, cached.RepositoryID)
	assert.Len(t, env.api.snippets, snippets, "a cached analysis writes nothing remotely")
	require.Len(t, cached.Analysis.Functions, 1)

	refreshed, err := env.pipeline.Run(context.Background(), Options{Path: root, UseCache: true, ForceRefresh: true})
	require.NoError(t, err)
	assert.False(t, refreshed.FromCache)
	assert.Equal(t, 2, env.api.snippetsTitled("getX"))
	assert.Equal(t, 1, env.api.repoCreates, "the repository is found by name")
}

func TestRun_UnsavedCacheEntryStillPersists(t *testing.T) {
	root, _ := initRepo(t, map[string]string{"src/utils/x.ts": utilitySource})
	env := newTestEnv(t)

	first, err := env.pipeline.Run(context.Background(), Options{Path: root, UseCache: true})
	require.NoError(t, err)
	commit := first.Analysis.Repository.CommitHash
	require.NoError(t, env.cache.Put(root, commit, first.Analysis, cache.Metadata{RepositoryID: first.RepositoryID}))

	second, err := env.pipeline.Run(context.Background(), Options{Path: root, UseCache: true})
	require.NoError(t, err)
	assert.False(t, second.FromCache)
	assert.Equal(t, checkpoint.StatusCompleted, second.Status)
	assert.Equal(t, first.RepositoryID, second.RepositoryID, "the cached repository id is reused")
	assert.Equal(t, 2, env.api.snippetsTitled("getX"))

	entry, err := env.cache.Get(root, commit)
	require.NoError(t, err)
	assert.True(t, entry.Metadata.SavedToAPI)
}

func TestRun_ExistingRepositoryGetsRemoteURL(t *testing.T) {
	root, repo := initRepo(t, map[string]string{"src/utils/x.ts": utilitySource})
	_, err := repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{"git@github.com:acme/demo.git"},
	})
	require.NoError(t, err)

	env := newTestEnv(t)
	env.api.repos["repo-existing"] = &knowledge.Repository{ID: "repo-existing", Name: "demo", Description: "Existing"}

	result, err := env.pipeline.Run(context.Background(), Options{Path: root})
	require.NoError(t, err)
	assert.Equal(t, "repo-existing", result.RepositoryID)
	assert.Equal(t, 0, env.api.repoCreates)
	assert.Equal(t, "Existing\n\nRepository URL: https://github.com/acme/demo", env.api.repos["repo-existing"].Description)
	require.Len(t, env.api.updates, 1)

	_, err = env.pipeline.Run(context.Background(), Options{Path: root})
	require.NoError(t, err)
	assert.Len(t, env.api.updates, 1, "a description holding the url is left alone")
}

func TestRun_StaleCallerIDsFallBack(t *testing.T) {
	root, _ := initRepo(t, map[string]string{"src/utils/x.ts": utilitySource})
	env := newTestEnv(t)

	result, err := env.pipeline.Run(context.Background(), Options{
		Path:         root,
		RepositoryID: "repo-gone",
		ProjectID:    "proj-gone",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "repo-gone", result.RepositoryID)
	assert.NotEqual(t, "proj-gone", result.ProjectID)
	assert.Equal(t, 1, env.api.repoCreates)
	assert.Equal(t, 1, env.api.projectCreates)

	again, err := env.pipeline.Run(context.Background(), Options{
		Path:         root,
		RepositoryID: result.RepositoryID,
		ProjectID:    result.ProjectID,
	})
	require.NoError(t, err)
	assert.Equal(t, result.RepositoryID, again.RepositoryID)
	assert.Equal(t, result.ProjectID, again.ProjectID)
	assert.Equal(t, 1, env.api.repoCreates)
}

type stubInsights struct {
	insights *model.Insights
	err      error
	calls    int
}

func (s *stubInsights) Generate(context.Context, *model.ComprehensiveAnalysis) (*model.Insights, error) {
	s.calls++
	return s.insights, s.err
}

func TestRun_Insights(t *testing.T) {
	root, _ := initRepo(t, map[string]string{"src/utils/x.ts": utilitySource})
	gen := &stubInsights{insights: &model.Insights{Summary: "A small utility library."}}
	env := newTestEnv(t, func(d *Dependencies) { d.Insights = gen })

	plain, err := env.pipeline.Run(context.Background(), Options{Path: root})
	require.NoError(t, err)
	assert.Nil(t, plain.Analysis.Insights)
	assert.Equal(t, 0, gen.calls, "insights need deep analysis")

	deep, err := env.pipeline.Run(context.Background(), Options{Path: root, DeepAnalysis: true})
	require.NoError(t, err)
	require.NotNil(t, deep.Analysis.Insights)
	assert.Equal(t, "A small utility library.", deep.Analysis.Insights.Summary)

	summaries := env.api.markdownOfType("summary")
	require.Len(t, summaries, 2)
	assert.Contains(t, summaries[1].Content, "A small utility library.")
}

func TestRun_InsightFailureIsNotFatal(t *testing.T) {
	root, _ := initRepo(t, map[string]string{"src/utils/x.ts": utilitySource})
	gen := &stubInsights{err: errors.New("model unavailable")}
	env := newTestEnv(t, func(d *Dependencies) { d.Insights = gen })

	result, err := env.pipeline.Run(context.Background(), Options{Path: root, DeepAnalysis: true})
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusCompleted, result.Status)
	assert.Nil(t, result.Analysis.Insights)
	assert.True(t, hasError(result.Errors, StepInsights))
}

func TestRun_ResumeWithUnknownCheckpoint(t *testing.T) {
	root, _ := initRepo(t, map[string]string{"src/utils/x.ts": utilitySource})
	env := newTestEnv(t)

	_, err := env.pipeline.Run(context.Background(), Options{
		Path:         root,
		Resume:       true,
		CheckpointID: checkpoint.GenerateID(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)

	result, err := env.pipeline.Run(context.Background(), Options{Path: root, Resume: true})
	require.NoError(t, err, "no earlier checkpoint for the path starts a new run")
	assert.False(t, result.Resumed)
}

func TestLatestProgress(t *testing.T) {
	root, _ := initRepo(t, map[string]string{"src/utils/x.ts": utilitySource})
	env := newTestEnv(t)

	result, err := env.pipeline.Run(context.Background(), Options{Path: root})
	require.NoError(t, err)

	report, err := env.pipeline.LatestProgress(root)
	require.NoError(t, err)
	assert.Equal(t, result.CheckpointID, report.CheckpointID)
	assert.Equal(t, checkpoint.StatusCompleted, report.Status)
	require.Len(t, report.Steps, len(StepOrder()))
	assert.Equal(t, StepReadRepository, report.Steps[0].Name)
	assert.Equal(t, StepSaveSnippets, report.Steps[len(report.Steps)-1].Name)
}

func TestCheckpoints(t *testing.T) {
	root, _ := initRepo(t, map[string]string{"src/utils/x.ts": utilitySource})
	other, _ := initRepo(t, map[string]string{"main.go": "package main\n\nfunc main() {}\n"})
	env := newTestEnv(t)

	first, err := env.pipeline.Run(context.Background(), Options{Path: root})
	require.NoError(t, err)
	_, err = env.pipeline.Run(context.Background(), Options{Path: other})
	require.NoError(t, err)

	all, err := env.pipeline.Checkpoints("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := env.pipeline.Checkpoints(root)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, first.CheckpointID, mine[0].CheckpointID)
	assert.Equal(t, checkpoint.StatusCompleted, mine[0].Status)
	assert.Equal(t, len(StepOrder()), mine[0].TotalSteps)
	assert.Equal(t, mine[0].TotalSteps, mine[0].CompletedSteps)
}

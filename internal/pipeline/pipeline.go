package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"repoknow/internal/cache"
	"repoknow/internal/checkpoint"
	"repoknow/internal/config"
	"repoknow/internal/diagram"
	"repoknow/internal/docs"
	"repoknow/internal/gitmeta"
	"repoknow/internal/insights"
	"repoknow/internal/knowledge"
	"repoknow/internal/logging"
	"repoknow/internal/model"
)

// Analysis phase steps.
const (
	StepReadRepository = "read-repository-metadata"
	StepCrawlFiles     = "crawl-files"
	StepReadDocs       = "read-documentation-files"
	StepAnalyzeCode    = "analyze-code"
	StepBuildStructure = "build-structure"
	StepDiagrams       = "generate-diagrams"
	StepInsights       = "generate-insights"
)

// Persistence phase steps, in execution order.
const (
	StepEnsureRepository = "ensure-repository-exists"
	StepEnsureProject    = "ensure-project-exists"
	StepSaveDocs         = "save-documentation-files"
	StepSaveDiagrams     = "save-diagrams"
	StepSaveStandards    = "save-coding-standards"
	StepSaveRoutes       = "save-routes-document"
	StepSaveFolderTree   = "save-folder-structure-document"
	StepSaveAnalysis     = "save-analysis-record"
	StepSaveMainDoc      = "save-main-documentation"
	StepSaveMarkdown     = "save-markdown-document"
	StepSaveSummary      = "save-summary-document"
	StepSaveSnippets     = "save-snippets"
)

// AnalysisSteps lists the analysis phase in order.
var AnalysisSteps = []string{
	StepReadRepository,
	StepCrawlFiles,
	StepReadDocs,
	StepAnalyzeCode,
	StepBuildStructure,
	StepDiagrams,
	StepInsights,
}

// PersistenceSteps lists the persistence phase in order.
var PersistenceSteps = []string{
	StepEnsureRepository,
	StepEnsureProject,
	StepSaveDocs,
	StepSaveDiagrams,
	StepSaveStandards,
	StepSaveRoutes,
	StepSaveFolderTree,
	StepSaveAnalysis,
	StepSaveMainDoc,
	StepSaveMarkdown,
	StepSaveSummary,
	StepSaveSnippets,
}

// StepOrder is every step of a run in execution order.
func StepOrder() []string {
	out := make([]string, 0, len(AnalysisSteps)+len(PersistenceSteps))
	out = append(out, AnalysisSteps...)
	return append(out, PersistenceSteps...)
}

// KnowledgeAPI is the subset of the knowledge base client the pipeline
// writes through. *knowledge.Client implements it.
type KnowledgeAPI interface {
	FindRepository(ctx context.Context, name, remoteURL string) (*knowledge.Repository, error)
	GetRepository(ctx context.Context, id string) (*knowledge.Repository, error)
	CreateRepository(ctx context.Context, repo knowledge.Repository) (*knowledge.Repository, error)
	UpdateRepository(ctx context.Context, id string, update knowledge.RepositoryUpdate) (*knowledge.Repository, error)
	FindProject(ctx context.Context, repositoryID, name string) (*knowledge.Project, error)
	GetProject(ctx context.Context, id string) (*knowledge.Project, error)
	CreateProject(ctx context.Context, project knowledge.Project) (*knowledge.Project, error)
	CreateDocumentation(ctx context.Context, doc knowledge.Documentation) (string, error)
	CreateMarkdownDocument(ctx context.Context, doc knowledge.MarkdownDocument) (string, error)
	CreateFile(ctx context.Context, file knowledge.File) (string, error)
	CreateSnippet(ctx context.Context, snippet knowledge.Snippet) (string, error)
	CreateAnalysis(ctx context.Context, record knowledge.AnalysisRecord) (string, error)
}

var _ KnowledgeAPI = (*knowledge.Client)(nil)

// DocumentationReader reads documentation files out of a crawl.
// *docs.Reader implements it.
type DocumentationReader interface {
	ReadAll(ctx context.Context, files []model.FileRecord, known []model.DocumentationFile, read docs.FileReader, onRead func(model.DocumentationFile) error) ([]model.DocumentationFile, error)
}

var _ DocumentationReader = (*docs.Reader)(nil)

// Dependencies are the collaborators of a Pipeline. API and Checkpoints are
// required; a nil Cache disables caching and a nil Insights disables insight
// generation. A nil Documentation uses docs.NewReader.
type Dependencies struct {
	API           KnowledgeAPI
	Checkpoints   *checkpoint.Store
	Cache         *cache.Cache
	Insights      insights.Generator
	Documentation DocumentationReader
	Analysis      config.AnalysisConfig
	Logger        *logging.AppLogger
}

// Pipeline runs analyses. It holds no per-run state and may be reused for
// runs against different checkpoints.
type Pipeline struct {
	api      KnowledgeAPI
	store    *checkpoint.Store
	cache    *cache.Cache
	insights insights.Generator
	limits   config.AnalysisConfig
	logger   *logging.AppLogger

	git      *gitmeta.Reader
	docs     DocumentationReader
	diagrams *diagram.Generator
}

// New validates deps and builds a Pipeline.
func New(deps Dependencies) (*Pipeline, error) {
	if deps.API == nil {
		return nil, fmt.Errorf("pipeline requires a knowledge api")
	}
	if deps.Checkpoints == nil {
		return nil, fmt.Errorf("pipeline requires a checkpoint store")
	}

	limits := deps.Analysis
	defaults := config.DefaultConfig().Analysis
	if limits == (config.AnalysisConfig{}) {
		limits = defaults
	}
	if limits.CheckpointEvery <= 0 {
		limits.CheckpointEvery = defaults.CheckpointEvery
	}
	if limits.MaxFileSize <= 0 {
		limits.MaxFileSize = defaults.MaxFileSize
	}
	if limits.MaxDepth <= 0 {
		limits.MaxDepth = defaults.MaxDepth
	}
	documentation := deps.Documentation
	if documentation == nil {
		documentation = docs.NewReader(deps.Logger)
	}

	return &Pipeline{
		api:      deps.API,
		store:    deps.Checkpoints,
		cache:    deps.Cache,
		insights: deps.Insights,
		limits:   limits,
		logger:   deps.Logger,
		git:      gitmeta.NewReader(deps.Logger),
		docs:     documentation,
		diagrams: diagram.NewGenerator(deps.Logger),
	}, nil
}

// Run analyzes opts.Path and persists the result. The returned Result is
// non-nil whenever a checkpoint was opened, including on error.
//
// Errors:
//   - validation errors for bad options
//   - *FatalError for a missing git repository, unresolvable remote
//     repository or project, or a checkpoint write failure
//   - the context error when ctx is canceled; the checkpoint is paused
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	root, err := ResolveRoot(opts.Path)
	if err != nil {
		return nil, err
	}
	if p.logger != nil {
		p.logger.DebugObject("options", opts)
	}

	start := time.Now()
	cp, resumed, err := p.openCheckpoint(root, opts)
	if err != nil {
		return nil, &FatalError{Err: err}
	}

	r := newRun(p, opts, root, cp, resumed)
	r.info("Analysis started", "resumed", resumed, "deep", opts.DeepAnalysis, "useCache", opts.UseCache)

	if p.logger != nil {
		defer p.logger.LogPerformance("pipeline.Run", start)
	}
	return r.finish(r.execute(ctx))
}

// ResolveRoot returns the absolute top of the working tree containing path.
// Paths outside any repository are returned as absolute paths, and reading
// repository metadata reports them later.
func ResolveRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	if root, err := gitmeta.WorktreeRoot(abs); err == nil {
		return root, nil
	}
	return abs, nil
}

// openCheckpoint continues an earlier checkpoint when asked to and one
// exists, and creates a new one otherwise. Completed checkpoints are never
// continued.
func (p *Pipeline) openCheckpoint(root string, opts Options) (*checkpoint.Checkpoint, bool, error) {
	if opts.resuming() {
		var (
			cp  *checkpoint.Checkpoint
			err error
		)
		if opts.CheckpointID != "" {
			cp, err = p.store.Load(opts.CheckpointID)
		} else {
			cp, err = p.store.LoadLatest(root)
		}
		switch {
		case err == nil && cp.Status != checkpoint.StatusCompleted:
			if cp.ProjectPath != root {
				return nil, false, fmt.Errorf("checkpoint %s belongs to %s, not %s", cp.ID, cp.ProjectPath, root)
			}
			from := cp.Status
			if err := cp.Transition(checkpoint.StatusInProgress); err != nil {
				return nil, false, err
			}
			if p.logger != nil {
				p.logger.LogStateTransition("checkpoint", string(from), string(cp.Status))
			}
			if err := p.store.Save(cp); err != nil {
				return nil, false, err
			}
			return cp, true, nil
		case err == nil:
			if p.logger != nil {
				p.logger.Info("Checkpoint already completed, starting a new run", "checkpoint", cp.ID)
			}
		case errors.Is(err, checkpoint.ErrNotFound) && opts.CheckpointID == "":
		default:
			return nil, false, err
		}
	}

	cp, err := p.store.Create(root)
	if err != nil {
		return nil, false, err
	}
	return cp, false, nil
}

// ProgressReport describes a checkpoint for progress queries.
type ProgressReport struct {
	CheckpointID string                   `json:"checkpointId"`
	ProjectPath  string                   `json:"projectPath"`
	Status       checkpoint.Status        `json:"status"`
	CurrentStep  string                   `json:"currentStep"`
	Remote       checkpoint.RemoteIDs     `json:"remoteIds"`
	Steps        []checkpoint.StepSummary `json:"steps"`
	Errors       []checkpoint.ErrorEntry  `json:"errors"`
	CreatedAt    time.Time                `json:"createdAt"`
	LastUpdated  time.Time                `json:"lastUpdated"`
}

// Progress reports the state of the checkpoint with the given id.
func (p *Pipeline) Progress(checkpointID string) (*ProgressReport, error) {
	cp, err := p.store.Load(checkpointID)
	if err != nil {
		return nil, err
	}
	return progressOf(cp), nil
}

// LatestProgress reports the most recently updated checkpoint for path.
func (p *Pipeline) LatestProgress(path string) (*ProgressReport, error) {
	root, err := ResolveRoot(path)
	if err != nil {
		return nil, err
	}
	cp, err := p.store.LoadLatest(root)
	if err != nil {
		return nil, err
	}
	return progressOf(cp), nil
}

func progressOf(cp *checkpoint.Checkpoint) *ProgressReport {
	return &ProgressReport{
		CheckpointID: cp.ID,
		ProjectPath:  cp.ProjectPath,
		Status:       cp.Status,
		CurrentStep:  cp.CurrentStep,
		Remote:       cp.Remote,
		Steps:        cp.Summary(StepOrder()),
		Errors:       cp.Errors,
		CreatedAt:    cp.CreatedAt,
		LastUpdated:  cp.LastUpdated,
	}
}

// CheckpointSummary is one line of a checkpoint listing.
type CheckpointSummary struct {
	CheckpointID   string            `json:"checkpointId"`
	ProjectPath    string            `json:"projectPath"`
	Status         checkpoint.Status `json:"status"`
	CurrentStep    string            `json:"currentStep"`
	CompletedSteps int               `json:"completedSteps"`
	TotalSteps     int               `json:"totalSteps"`
	Errors         int               `json:"errors"`
	LastUpdated    time.Time         `json:"lastUpdated"`
}

// Checkpoints lists checkpoints, most recently updated first. A non-empty
// path keeps only the checkpoints of that working tree.
func (p *Pipeline) Checkpoints(path string) ([]CheckpointSummary, error) {
	var root string
	if path != "" {
		resolved, err := ResolveRoot(path)
		if err != nil {
			return nil, err
		}
		root = resolved
	}

	all, err := p.store.List()
	if err != nil {
		return nil, err
	}
	out := make([]CheckpointSummary, 0, len(all))
	for _, cp := range all {
		if root != "" && cp.ProjectPath != root {
			continue
		}
		order := StepOrder()
		done := 0
		for _, name := range order {
			if cp.IsCompleted(name) {
				done++
			}
		}
		out = append(out, CheckpointSummary{
			CheckpointID:   cp.ID,
			ProjectPath:    cp.ProjectPath,
			Status:         cp.Status,
			CurrentStep:    cp.CurrentStep,
			CompletedSteps: done,
			TotalSteps:     len(order),
			Errors:         len(cp.Errors),
			LastUpdated:    cp.LastUpdated,
		})
	}
	return out, nil
}

// Result is the outcome of a run.
type Result struct {
	CheckpointID string                       `json:"checkpointId"`
	Status       checkpoint.Status            `json:"status"`
	Resumed      bool                         `json:"resumed"`
	FromCache    bool                         `json:"fromCache"`
	RepositoryID string                       `json:"repositoryId,omitempty"`
	ProjectID    string                       `json:"projectId,omitempty"`
	Saved        []Artifact                   `json:"saved"`
	Unsaved      []Artifact                   `json:"unsaved"`
	Steps        []checkpoint.StepSummary     `json:"steps"`
	Errors       []checkpoint.ErrorEntry      `json:"errors"`
	Analysis     *model.ComprehensiveAnalysis `json:"-"`
}

// Artifact is one remote record the run created or failed to create.
type Artifact struct {
	Step     string `json:"step"`
	Name     string `json:"name,omitempty"`
	RemoteID string `json:"remoteId,omitempty"`
	Error    string `json:"error,omitempty"`
}

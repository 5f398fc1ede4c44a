package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"repoknow/internal/gitmeta"
	"repoknow/internal/knowledge"
	"repoknow/internal/model"
)

const (
	batchDocumentation = "documentation"
	batchDiagrams      = "diagrams"
)

// persist runs the persistence phase. Repository and project resolution are
// preconditions; every later step may fail on its own.
func (r *run) persist(ctx context.Context) error {
	if err := r.precondition(ctx, StepEnsureRepository, r.ensureRepository); err != nil {
		return err
	}
	if err := r.precondition(ctx, StepEnsureProject, r.ensureProject); err != nil {
		return err
	}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{StepSaveDocs, r.saveDocumentation},
		{StepSaveDiagrams, r.saveDiagrams},
		{StepSaveStandards, r.saveCodingStandards},
		{StepSaveRoutes, r.saveRoutes},
		{StepSaveFolderTree, r.saveFolderStructure},
		{StepSaveAnalysis, r.saveAnalysisRecord},
		{StepSaveMainDoc, r.saveMainDocumentation},
		{StepSaveMarkdown, r.saveMarkdownDocument},
		{StepSaveSummary, r.saveSummary},
		// Snippets go last so the compact documents survive an interrupted
		// snippet phase.
		{StepSaveSnippets, r.saveSnippets},
	}
	for _, s := range steps {
		if err := r.step(ctx, s.name, s.fn); err != nil {
			return err
		}
	}
	return nil
}

// precondition runs a resolution step whose failure aborts the run.
func (r *run) precondition(ctx context.Context, name string, fn func(context.Context) (string, error)) error {
	step := r.cp.Step(name)
	if step.Completed && step.RemoteID != "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.cp.Begin(name)
	id, err := fn(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.warn("Precondition step failed",
			"step", name,
			"repositoryId", r.cp.Remote.RepositoryID,
			"projectId", r.cp.Remote.ProjectID,
			"error", err,
		)
		r.cp.RecordError(name, err)
		return r.fatal(&StepError{Step: name, Err: fmt.Errorf("%w: %w", ErrPreconditionFailed, err)})
	}

	step.RemoteID = id
	r.cp.Complete(name)
	return r.save()
}

// candidateIDs returns the distinct non-empty ids in priority order.
func candidateIDs(ids ...string) []string {
	var out []string
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// ensureRepository resolves the remote repository: a caller id that still
// resolves, then a recorded or cached id, then a lookup by url and name,
// and finally a new record.
func (r *run) ensureRepository(ctx context.Context) (string, error) {
	info := r.analysis.Repository
	remoteURL := gitmeta.NormalizeRemoteURL(info.RemoteURL)

	var cachedID string
	if r.cached != nil {
		cachedID = r.cached.Metadata.RepositoryID
	}

	var repo *knowledge.Repository
	for _, id := range candidateIDs(r.opts.RepositoryID, r.cp.Remote.RepositoryID, cachedID) {
		found, err := r.api.GetRepository(ctx, id)
		if err == nil {
			if found.ID == "" {
				found.ID = id
			}
			repo = found
			break
		}
		if !errors.Is(err, knowledge.ErrNotFound) {
			return "", fmt.Errorf("failed to fetch repository %s: %w", id, err)
		}
		r.debug("Remote repository id no longer resolves", "repositoryId", id)
	}

	if repo == nil {
		found, err := r.api.FindRepository(ctx, info.Name, remoteURL)
		switch {
		case err == nil:
			repo = found
		case errors.Is(err, knowledge.ErrNotFound):
			created, err := r.api.CreateRepository(ctx, knowledge.Repository{
				Name:          info.Name,
				URL:           remoteURL,
				Description:   repositoryDescription(info, remoteURL),
				DefaultBranch: info.DefaultBranch,
				LocalPath:     r.root,
			})
			if err != nil {
				return "", fmt.Errorf("failed to create repository %s: %w", info.Name, err)
			}
			r.info("Created remote repository", "repositoryId", created.ID, "name", info.Name)
			repo = created
		default:
			return "", fmt.Errorf("failed to search repository %s: %w", info.Name, err)
		}
	}
	if repo.ID == "" {
		return "", fmt.Errorf("repository %s has no id", info.Name)
	}

	r.ensureRemoteURL(ctx, repo, remoteURL)
	r.cp.Remote.RepositoryID = repo.ID
	return repo.ID, nil
}

// ensureRemoteURL appends the remote url to a repository description that
// lacks it. A failed update is logged and ignored.
func (r *run) ensureRemoteURL(ctx context.Context, repo *knowledge.Repository, remoteURL string) {
	if remoteURL == "" || strings.Contains(repo.Description, remoteURL) {
		return
	}
	description := appendRepositoryURL(repo.Description, remoteURL)
	if _, err := r.api.UpdateRepository(ctx, repo.ID, knowledge.RepositoryUpdate{Description: &description}); err != nil {
		r.warn("Failed to add remote url to repository description", "repositoryId", repo.ID, "error", err)
		return
	}
	repo.Description = description
}

func appendRepositoryURL(description, remoteURL string) string {
	line := "Repository URL: " + remoteURL
	if strings.TrimSpace(description) == "" {
		return line
	}
	return description + "\n\n" + line
}

func repositoryDescription(info model.RepositoryInfo, remoteURL string) string {
	description := fmt.Sprintf("Knowledge base for the %s repository.", info.Name)
	if remoteURL != "" {
		description = appendRepositoryURL(description, remoteURL)
	}
	return description
}

// ensureProject resolves the project of the repository in the same order as
// ensureRepository.
func (r *run) ensureProject(ctx context.Context) (string, error) {
	repositoryID := r.cp.Remote.RepositoryID
	name := r.analysis.Repository.Name

	var cachedID string
	if r.cached != nil {
		cachedID = r.cached.Metadata.ProjectID
	}

	var project *knowledge.Project
	for _, id := range candidateIDs(r.opts.ProjectID, r.cp.Remote.ProjectID, cachedID) {
		found, err := r.api.GetProject(ctx, id)
		if err == nil {
			if found.ID == "" {
				found.ID = id
			}
			project = found
			break
		}
		if !errors.Is(err, knowledge.ErrNotFound) {
			return "", fmt.Errorf("failed to fetch project %s: %w", id, err)
		}
		r.debug("Remote project id no longer resolves", "projectId", id)
	}

	if project == nil {
		found, err := r.api.FindProject(ctx, repositoryID, name)
		switch {
		case err == nil:
			project = found
		case errors.Is(err, knowledge.ErrNotFound):
			created, err := r.api.CreateProject(ctx, knowledge.Project{
				Name:         name,
				Description:  fmt.Sprintf("Analysis of %s", name),
				RepositoryID: repositoryID,
			})
			if err != nil {
				return "", fmt.Errorf("failed to create project %s: %w", name, err)
			}
			r.info("Created remote project", "projectId", created.ID, "name", name)
			project = created
		default:
			return "", fmt.Errorf("failed to search project %s: %w", name, err)
		}
	}
	if project.ID == "" {
		return "", fmt.Errorf("project %s has no id", name)
	}

	r.cp.Remote.ProjectID = project.ID
	return project.ID, nil
}

// batchItem is one remote creation of a batch step. key identifies the item
// across runs.
type batchItem struct {
	key    string
	create func(context.Context) (string, error)
}

// saveBatch creates the items of one batch category that are not yet
// recorded. The checkpoint is written every CheckpointEvery creations. Item
// failures are reported and the loop continues.
func (r *run) saveBatch(ctx context.Context, step, category string, items []batchItem) error {
	b := r.cp.Batch(step, category, len(items))
	failed := 0
	for _, item := range items {
		if b.Done(item.key) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		id, err := item.create(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			r.unsaved = append(r.unsaved, Artifact{Step: step, Name: item.key, Error: err.Error()})
			r.warn("Failed to save item",
				"step", step,
				"category", category,
				"item", item.key,
				"repositoryId", r.cp.Remote.RepositoryID,
				"projectId", r.cp.Remote.ProjectID,
				"error", err,
			)
			continue
		}

		b.Record(item.key, id)
		if err := r.recordProgress(); err != nil {
			return err
		}
	}

	if failed > 0 {
		return &partialError{category: category, failed: failed, total: len(items)}
	}
	return nil
}

func (r *run) saveDocumentation(ctx context.Context) error {
	items := make([]batchItem, 0, len(r.analysis.Documentation))
	for _, doc := range r.analysis.Documentation {
		items = append(items, batchItem{
			key: doc.Path,
			create: func(ctx context.Context) (string, error) {
				metadata := map[string]any{"size": doc.Size}
				if len(doc.Headings) > 0 {
					metadata["headings"] = doc.Headings
				}
				if len(doc.FrontMatter) > 0 {
					metadata["frontMatter"] = doc.FrontMatter
				}
				return r.api.CreateDocumentation(ctx, knowledge.Documentation{
					Title:        doc.Title,
					Content:      doc.Content,
					DocType:      documentationType(doc.Path),
					FilePath:     doc.Path,
					ProjectID:    r.cp.Remote.ProjectID,
					RepositoryID: r.cp.Remote.RepositoryID,
					Metadata:     metadata,
				})
			},
		})
	}
	return r.saveBatch(ctx, StepSaveDocs, batchDocumentation, items)
}

// documentationType classifies a documentation file by its name.
func documentationType(relPath string) string {
	base := strings.ToLower(path.Base(relPath))
	switch {
	case strings.HasPrefix(base, "readme"):
		return "readme"
	case strings.HasPrefix(base, "changelog"), strings.HasPrefix(base, "history"):
		return "changelog"
	case strings.HasPrefix(base, "contributing"):
		return "contributing"
	case strings.HasPrefix(base, "license"), strings.HasPrefix(base, "licence"):
		return "license"
	case strings.HasPrefix(base, "security"):
		return "security"
	default:
		return "guide"
	}
}

func (r *run) saveDiagrams(ctx context.Context) error {
	items := make([]batchItem, 0, len(r.analysis.Diagrams))
	for _, d := range r.analysis.Diagrams {
		items = append(items, batchItem{
			key: string(d.Kind),
			create: func(ctx context.Context) (string, error) {
				return r.api.CreateMarkdownDocument(ctx, knowledge.MarkdownDocument{
					Title:        d.Title,
					DocumentType: "diagram",
					Category:     "architecture",
					Content:      renderDiagram(d),
					FilePath:     "diagrams/" + string(d.Kind) + ".md",
					Tags:         []string{"diagram", string(d.Kind), d.Format},
					ProjectID:    r.cp.Remote.ProjectID,
					RepositoryID: r.cp.Remote.RepositoryID,
				})
			},
		})
	}
	return r.saveBatch(ctx, StepSaveDiagrams, batchDiagrams, items)
}

// saveDocument creates one markdown document and records its id on the step.
func (r *run) saveDocument(ctx context.Context, step string, doc knowledge.MarkdownDocument) error {
	doc.ProjectID = r.cp.Remote.ProjectID
	doc.RepositoryID = r.cp.Remote.RepositoryID
	id, err := r.api.CreateMarkdownDocument(ctx, doc)
	if err != nil {
		return err
	}
	r.cp.Step(step).RemoteID = id
	return nil
}

func (r *run) saveCodingStandards(ctx context.Context) error {
	return r.saveDocument(ctx, StepSaveStandards, knowledge.MarkdownDocument{
		Title:        r.analysis.Repository.Name + " coding standards",
		DocumentType: "coding-standards",
		Category:     "standards",
		Content:      renderCodingStandards(r.analysis),
		FilePath:     "docs/coding-standards.md",
		Tags:         []string{"standards", "linting"},
	})
}

// saveRoutes documents the discovered HTTP routes. Repositories without
// routes have nothing to save.
func (r *run) saveRoutes(ctx context.Context) error {
	if len(r.analysis.Routes) == 0 {
		r.debug("No routes to document")
		return nil
	}
	return r.saveDocument(ctx, StepSaveRoutes, knowledge.MarkdownDocument{
		Title:        r.analysis.Repository.Name + " API routes",
		DocumentType: "api-routes",
		Category:     "api",
		Content:      renderRoutes(r.analysis),
		FilePath:     "docs/api-routes.md",
		Tags:         []string{"api", "routes"},
	})
}

func (r *run) saveFolderStructure(ctx context.Context) error {
	return r.saveDocument(ctx, StepSaveFolderTree, knowledge.MarkdownDocument{
		Title:        r.analysis.Repository.Name + " folder structure",
		DocumentType: "folder-structure",
		Category:     "structure",
		Content:      renderFolderStructure(r.analysis),
		FilePath:     "docs/folder-structure.md",
		Tags:         []string{"structure"},
	})
}

// saveAnalysisRecord stores the full analysis. Servers without the analysis
// endpoint get it as a generic JSON file instead.
func (r *run) saveAnalysisRecord(ctx context.Context) error {
	id, err := r.api.CreateAnalysis(ctx, knowledge.AnalysisRecord{
		RepositoryID: r.cp.Remote.RepositoryID,
		ProjectID:    r.cp.Remote.ProjectID,
		CommitHash:   r.analysis.Repository.CommitHash,
		Analysis:     r.analysis,
	})
	if err == nil {
		r.cp.Step(StepSaveAnalysis).RemoteID = id
		return nil
	}
	if !errors.Is(err, knowledge.ErrNotFound) {
		return err
	}

	r.debug("Analysis endpoint unavailable, saving analysis as a file")
	payload, err := json.MarshalIndent(r.analysis, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}
	id, err = r.api.CreateFile(ctx, knowledge.File{
		Name:         "repository-analysis.json",
		Path:         ".repoknow/repository-analysis.json",
		Content:      string(payload),
		MimeType:     "application/json",
		Size:         int64(len(payload)),
		ProjectID:    r.cp.Remote.ProjectID,
		RepositoryID: r.cp.Remote.RepositoryID,
		Metadata:     map[string]any{"commitHash": r.analysis.Repository.CommitHash, "fallback": true},
	})
	if err != nil {
		return fmt.Errorf("failed to save analysis as file: %w", err)
	}
	r.cp.Step(StepSaveAnalysis).RemoteID = id
	return nil
}

// saveMainDocumentation stores the overview document. When the analysis
// record could not be saved the analysis travels in its metadata.
func (r *run) saveMainDocumentation(ctx context.Context) error {
	metadata := map[string]any{
		"commitHash": r.analysis.Repository.CommitHash,
		"branch":     r.analysis.Repository.CurrentBranch,
		"languages":  r.analysis.LanguageStats(),
		"analyzedAt": r.analysis.AnalyzedAt,
	}
	if !r.cp.IsCompleted(StepSaveAnalysis) {
		metadata["analysis"] = r.analysis
	}

	id, err := r.api.CreateDocumentation(ctx, knowledge.Documentation{
		Title:        r.analysis.Repository.Name + " overview",
		Content:      renderOverview(r.analysis),
		DocType:      "overview",
		FilePath:     "README.generated.md",
		ProjectID:    r.cp.Remote.ProjectID,
		RepositoryID: r.cp.Remote.RepositoryID,
		Metadata:     metadata,
	})
	if err != nil {
		return err
	}
	r.cp.Step(StepSaveMainDoc).RemoteID = id
	return nil
}

func (r *run) saveMarkdownDocument(ctx context.Context) error {
	return r.saveDocument(ctx, StepSaveMarkdown, knowledge.MarkdownDocument{
		Title:        r.analysis.Repository.Name + " analysis report",
		DocumentType: "analysis-report",
		Category:     "analysis",
		Content:      RenderReport(r.analysis),
		FilePath:     "docs/analysis-report.md",
		Tags:         []string{"analysis", "architecture", "dependencies"},
	})
}

func (r *run) saveSummary(ctx context.Context) error {
	return r.saveDocument(ctx, StepSaveSummary, knowledge.MarkdownDocument{
		Title:        r.analysis.Repository.Name + " summary",
		DocumentType: "summary",
		Category:     "analysis",
		Content:      RenderSummary(r.analysis),
		FilePath:     "docs/summary.md",
		Tags:         []string{"summary"},
	})
}

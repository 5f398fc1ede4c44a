package pipeline

import (
	"context"
	"errors"
	"os"
	"slices"
	"time"

	"repoknow/internal/cache"
	"repoknow/internal/crawler"
	"repoknow/internal/lexer"
	"repoknow/internal/model"
	"repoknow/internal/structure"
)

// codeFacts is the recorded output of the analyze-code step.
type codeFacts struct {
	Details   map[string]*model.CodeDetails `json:"details"`
	Functions []model.FunctionRecord        `json:"functions"`
	Routes    []model.RouteRecord           `json:"routes"`
}

// analyze runs the analysis phase, restoring completed steps from the
// checkpoint. A cached analysis that was already saved remotely ends the run
// here.
func (r *run) analyze(ctx context.Context) error {
	if err := r.readRepository(); err != nil {
		return err
	}

	if r.cache != nil && r.opts.cacheReads() {
		entry, err := r.cache.Get(r.root, r.analysis.Repository.CommitHash)
		switch {
		case err == nil:
			r.cached = entry
			if !r.resumed {
				return r.useCached(entry)
			}
		case errors.Is(err, cache.ErrMiss):
			r.debug("Analysis cache miss", "commit", r.analysis.Repository.CommitHash, "reason", err)
		default:
			r.warn("Cannot read analysis cache", "error", err)
		}
	}

	steps := []func(context.Context) error{
		r.crawlFiles,
		r.readDocumentation,
		r.analyzeCode,
		r.buildStructure,
		r.generateDiagrams,
		r.generateInsights,
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := step(ctx); err != nil {
			return err
		}
	}

	r.analysis.AnalyzedAt = r.analyzedAt()
	r.storeCache(false)
	return nil
}

// useCached adopts a cached analysis. An entry already saved remotely
// short-circuits the run; otherwise its facts are recorded as the analysis
// phase so persistence can resume from them.
func (r *run) useCached(entry *cache.Entry) error {
	repo := r.analysis.Repository
	cached := entry.Analysis
	cached.Repository = repo
	r.analysis = &cached

	if entry.Metadata.SavedToAPI {
		r.fromCache = true
		r.cp.Remote.RepositoryID = entry.Metadata.RepositoryID
		r.cp.Remote.ProjectID = entry.Metadata.ProjectID
		for _, name := range AnalysisSteps {
			r.cp.Complete(name)
		}
		r.info("Using cached analysis", "commit", repo.CommitHash, "cachedAt", entry.Metadata.CachedAt)
		return r.save()
	}

	paths := make([]string, 0, len(cached.Files))
	details := make(map[string]*model.CodeDetails)
	for _, f := range cached.Files {
		paths = append(paths, f.Path)
		if f.Details != nil {
			details[f.Path] = f.Details
		}
	}
	r.cp.AddItems(StepCrawlFiles, paths...)

	docPaths := make([]string, 0, len(cached.Documentation))
	for _, d := range cached.Documentation {
		docPaths = append(docPaths, d.Path)
	}
	r.cp.AddItems(StepReadDocs, docPaths...)

	records := map[string]any{
		StepReadDocs:       cached.Documentation,
		StepAnalyzeCode:    codeFacts{Details: details, Functions: cached.Functions, Routes: cached.Routes},
		StepBuildStructure: cached.Structure,
		StepDiagrams:       cached.Diagrams,
		StepInsights:       cached.Insights,
	}
	for name, data := range records {
		if err := r.cp.SetData(name, data); err != nil {
			return r.fatal(err)
		}
	}
	for _, name := range AnalysisSteps {
		r.cp.Complete(name)
	}
	r.info("Reusing cached analysis that was not saved remotely", "commit", repo.CommitHash)

	// The crawler is still needed to read sources for snippets.
	return r.openCrawler()
}

func (r *run) readRepository() error {
	const name = StepReadRepository
	if r.cp.IsCompleted(name) {
		var info model.RepositoryInfo
		ok, err := r.cp.Data(name, &info)
		if ok && err == nil {
			r.analysis.Repository = info
			return nil
		}
		r.warn("Recorded repository metadata unusable, reading again", "error", err)
	}

	r.cp.Begin(name)
	info, err := r.git.Read(r.root)
	if err != nil {
		r.cp.RecordError(name, err)
		return r.fatal(&StepError{Step: name, Err: err})
	}
	r.analysis.Repository = info
	if err := r.cp.SetData(name, info); err != nil {
		return r.fatal(err)
	}
	r.cp.Complete(name)
	return r.save()
}

func (r *run) openCrawler() error {
	if r.crawler != nil {
		return nil
	}
	c, err := crawler.New(r.root, crawler.Options{
		IncludeNodeModules: r.opts.IncludeNodeModules,
		IncludeHidden:      r.limits.IncludeHidden,
		MaxDepth:           r.limits.MaxDepth,
		MaxFileSize:        r.limits.MaxFileSize,
	}, r.log)
	if err != nil {
		return r.fatal(&StepError{Step: StepCrawlFiles, Err: err})
	}
	r.crawler = c
	return nil
}

// crawlFiles lists the files of the checkout. Paths are recorded as they are
// found so an interrupted crawl resumes with only the paths not seen before.
func (r *run) crawlFiles(ctx context.Context) error {
	const name = StepCrawlFiles
	if err := r.openCrawler(); err != nil {
		return err
	}

	step := r.cp.Step(name)
	if step.Completed {
		r.analysis.Files = r.crawler.Records(step.Items)
		return nil
	}

	r.cp.Begin(name)
	files, newPaths, err := r.crawler.Crawl(step.Items, func(rel string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.cp.AddItems(name, rel)
		return r.recordProgress()
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if IsFatal(err) {
			return err
		}
		r.cp.RecordError(name, err)
		return r.fatal(&StepError{Step: name, Err: err})
	}
	r.analysis.Files = files
	r.cp.Complete(name)
	r.debug("Crawled files", "files", len(files), "new", len(newPaths))
	return r.save()
}

// readDocumentation parses documentation files. Each document is recorded
// as it is read, so documents read by an interrupted run are kept and not
// read again.
func (r *run) readDocumentation(ctx context.Context) error {
	const name = StepReadDocs
	var known []model.DocumentationFile
	if _, err := r.cp.Data(name, &known); err != nil {
		r.warn("Recorded documentation unusable, reading again", "error", err)
		known = nil
	}
	if r.cp.IsCompleted(name) {
		r.analysis.Documentation = known
		return nil
	}

	r.cp.Begin(name)
	gathered := slices.Clone(known)
	found, err := r.docs.ReadAll(ctx, r.analysis.Files, known, r.crawler.ReadFile, func(doc model.DocumentationFile) error {
		gathered = append(gathered, doc)
		r.cp.AddItems(name, doc.Path)
		if err := r.cp.SetData(name, gathered); err != nil {
			return r.fatal(err)
		}
		return r.recordProgress()
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return r.fatal(err)
	}
	if err := r.cp.SetData(name, found); err != nil {
		return r.fatal(err)
	}
	r.analysis.Documentation = found
	r.cp.Complete(name)
	return r.save()
}

// analyzeCode runs lexical analysis over every source file. Unreadable files
// are skipped. Functions and routes are not collected from test files.
func (r *run) analyzeCode(context.Context) error {
	const name = StepAnalyzeCode
	var facts codeFacts
	if r.cp.IsCompleted(name) {
		ok, err := r.cp.Data(name, &facts)
		if ok && err == nil {
			r.applyFacts(facts)
			return nil
		}
		r.warn("Recorded code analysis unusable, analyzing again", "error", err)
	}

	r.cp.Begin(name)
	start := time.Now()
	facts = codeFacts{Details: make(map[string]*model.CodeDetails)}
	skipped := 0
	for _, f := range r.analysis.Files {
		if !lexer.IsSource(f.Path) {
			continue
		}
		content, err := r.crawler.ReadFile(f.Path)
		if err != nil {
			skipped++
			r.debug("Skipping unreadable source file", "file", f.Path, "error", err)
			continue
		}
		text := string(content)
		details := lexer.Analyze(f.Path, text)
		facts.Details[f.Path] = &details
		if lexer.IsTestFile(f.Path) {
			continue
		}
		facts.Functions = append(facts.Functions, lexer.ExtractFunctions(f.Path, text)...)
		facts.Routes = append(facts.Routes, lexer.ExtractRoutes(f.Path, text)...)
	}
	if facts.Functions == nil {
		facts.Functions = []model.FunctionRecord{}
	}
	if facts.Routes == nil {
		facts.Routes = []model.RouteRecord{}
	}

	r.applyFacts(facts)
	if err := r.cp.SetData(name, facts); err != nil {
		return r.fatal(err)
	}
	r.cp.Complete(name)
	r.debug("Analyzed code",
		"sources", len(facts.Details),
		"functions", len(facts.Functions),
		"routes", len(facts.Routes),
		"skipped", skipped,
	)
	if r.log != nil {
		r.log.LogPerformance(name, start)
	}
	return r.save()
}

func (r *run) applyFacts(facts codeFacts) {
	for i := range r.analysis.Files {
		if d, ok := facts.Details[r.analysis.Files[i].Path]; ok {
			r.analysis.Files[i].Details = d
		}
	}
	r.analysis.Functions = facts.Functions
	r.analysis.Routes = facts.Routes
}

func (r *run) buildStructure(context.Context) error {
	const name = StepBuildStructure
	if r.cp.IsCompleted(name) {
		var s model.Structure
		ok, err := r.cp.Data(name, &s)
		if ok && err == nil {
			r.analysis.Structure = s
			return nil
		}
		r.warn("Recorded structure unusable, building again", "error", err)
	}

	r.cp.Begin(name)
	builder := structure.NewBuilder(os.DirFS(r.root), r.log)
	r.analysis.Structure = builder.Build(r.analysis.Files, r.analysis.Repository)
	if err := r.cp.SetData(name, r.analysis.Structure); err != nil {
		return r.fatal(err)
	}
	r.cp.Complete(name)
	return r.save()
}

// generateDiagrams renders each diagram independently. Diagrams that fail
// are recorded as errors and the rest are kept.
func (r *run) generateDiagrams(context.Context) error {
	const name = StepDiagrams
	if r.cp.IsCompleted(name) {
		var diagrams []model.Diagram
		ok, err := r.cp.Data(name, &diagrams)
		if ok && err == nil {
			r.analysis.Diagrams = diagrams
			return nil
		}
		r.warn("Recorded diagrams unusable, generating again", "error", err)
	}

	r.cp.Begin(name)
	diagrams, err := r.diagrams.Generate(r.analysis.Repository, r.analysis.Structure, r.analysis)
	if err != nil {
		r.warn("Some diagrams could not be generated", "step", name, "error", err)
		r.cp.RecordError(name, err)
	}
	if diagrams == nil {
		diagrams = []model.Diagram{}
	}
	r.analysis.Diagrams = diagrams
	if err := r.cp.SetData(name, diagrams); err != nil {
		return r.fatal(err)
	}
	r.cp.Complete(name)
	return r.save()
}

// generateInsights asks the insight generator for commentary when deep
// analysis is on. Failures leave the analysis without insights.
func (r *run) generateInsights(ctx context.Context) error {
	const name = StepInsights
	if r.cp.IsCompleted(name) {
		var insights *model.Insights
		if _, err := r.cp.Data(name, &insights); err != nil {
			r.warn("Recorded insights unusable", "error", err)
		}
		r.analysis.Insights = insights
		return nil
	}

	r.cp.Begin(name)
	if r.opts.DeepAnalysis && r.insights != nil {
		insights, err := r.insights.Generate(ctx, r.analysis)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			r.warn("Insight generation failed", "step", name, "error", err)
			r.cp.RecordError(name, err)
		default:
			r.analysis.Insights = insights
			if err := r.cp.SetData(name, insights); err != nil {
				return r.fatal(err)
			}
		}
	}
	r.cp.Complete(name)
	return r.save()
}

// analyzedAt is when code analysis completed, stable across resumes.
func (r *run) analyzedAt() time.Time {
	if step, ok := r.cp.Steps[StepAnalyzeCode]; ok && step.CompletedAt != nil {
		return *step.CompletedAt
	}
	return time.Now().UTC()
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"repoknow/internal/cache"
	"repoknow/internal/checkpoint"
	"repoknow/internal/crawler"
	"repoknow/internal/logging"
	"repoknow/internal/model"
)

// run is the state of one pipeline invocation.
type run struct {
	*Pipeline
	opts    Options
	root    string
	cp      *checkpoint.Checkpoint
	resumed bool
	log     *logging.AppLogger

	analysis  *model.ComprehensiveAnalysis
	crawler   *crawler.Crawler
	cached    *cache.Entry
	fromCache bool

	unsaved []Artifact
	// recorded progress not yet covered by a checkpoint write
	pending int

	sourcePath string
	sourceText string
}

// partialError reports items of a batch that were not saved.
type partialError struct {
	category string
	failed   int
	total    int
}

func (e *partialError) Error() string {
	return fmt.Sprintf("%s: %d of %d items not saved", e.category, e.failed, e.total)
}

func newRun(p *Pipeline, opts Options, root string, cp *checkpoint.Checkpoint, resumed bool) *run {
	r := &run{
		Pipeline: p,
		opts:     opts,
		root:     root,
		cp:       cp,
		resumed:  resumed,
		analysis: &model.ComprehensiveAnalysis{},
	}
	if p.logger != nil {
		r.log = p.logger.With("checkpoint", cp.ID, "path", root)
	}
	return r
}

func (r *run) execute(ctx context.Context) error {
	defer r.closeCrawler()

	if err := r.analyze(ctx); err != nil {
		return err
	}
	if r.fromCache {
		return nil
	}
	if err := r.persist(ctx); err != nil {
		return err
	}
	r.storeCache(r.persisted())
	return nil
}

// finish settles the checkpoint status for the outcome of execute and
// builds the Result.
func (r *run) finish(execErr error) (*Result, error) {
	status := checkpoint.StatusCompleted
	switch {
	case isCanceled(execErr):
		status = checkpoint.StatusPaused
	case execErr != nil:
		status = checkpoint.StatusFailed
	case !r.fromCache && !r.persisted():
		status = checkpoint.StatusFailed
	}

	from := r.cp.Status
	if err := r.cp.Transition(status); err != nil {
		r.warn("Cannot update checkpoint status", "from", from, "to", status, "error", err)
	} else if r.log != nil {
		r.log.LogStateTransition("checkpoint", string(from), string(status))
	}

	saveErr := r.store.Save(r.cp)
	result := r.result()
	if saveErr != nil {
		if execErr == nil {
			return result, r.fatal(saveErr)
		}
		r.warn("Failed to write final checkpoint", "error", saveErr)
	}

	switch {
	case execErr != nil:
		r.warn("Analysis stopped", "status", status, "error", execErr)
	case status == checkpoint.StatusCompleted:
		r.info("Analysis completed", "fromCache", r.fromCache, "saved", len(result.Saved))
	default:
		r.warn("Analysis finished with unsaved artifacts", "unsaved", len(result.Unsaved), "errors", len(r.cp.Errors))
	}
	return result, execErr
}

// persisted reports whether every persistence step has completed.
func (r *run) persisted() bool {
	for _, name := range PersistenceSteps {
		if !r.cp.IsCompleted(name) {
			return false
		}
	}
	return true
}

func (r *run) result() *Result {
	res := &Result{
		CheckpointID: r.cp.ID,
		Status:       r.cp.Status,
		Resumed:      r.resumed,
		FromCache:    r.fromCache,
		RepositoryID: r.cp.Remote.RepositoryID,
		ProjectID:    r.cp.Remote.ProjectID,
		Saved:        r.savedArtifacts(),
		Unsaved:      slices.Clone(r.unsaved),
		Steps:        r.cp.Summary(StepOrder()),
		Errors:       r.cp.Errors,
		Analysis:     r.analysis,
	}
	if res.Unsaved == nil {
		res.Unsaved = []Artifact{}
	}
	if r.fromCache {
		return res
	}

	for _, name := range PersistenceSteps {
		if r.cp.IsCompleted(name) {
			continue
		}
		reported := slices.ContainsFunc(res.Unsaved, func(a Artifact) bool { return a.Step == name })
		if !reported {
			res.Unsaved = append(res.Unsaved, Artifact{Step: name})
		}
	}
	return res
}

// batchOrder fixes the reporting order of batch categories.
var batchOrder = []string{
	batchDocumentation,
	batchDiagrams,
	BatchUtility,
	BatchFunctions,
	BatchRoutes,
	BatchKeyFiles,
}

func (r *run) savedArtifacts() []Artifact {
	out := []Artifact{}
	for _, name := range PersistenceSteps {
		step, ok := r.cp.Steps[name]
		if !ok {
			continue
		}
		if step.RemoteID != "" {
			out = append(out, Artifact{Step: name, RemoteID: step.RemoteID})
		}
		for _, category := range batchOrder {
			b, ok := step.Batches[category]
			if !ok {
				continue
			}
			for i, id := range b.IDs {
				a := Artifact{Step: name, RemoteID: id}
				if i < len(b.Keys) {
					a.Name = b.Keys[i]
				}
				out = append(out, a)
			}
		}
	}
	return out
}

// save writes the checkpoint. A failed write is fatal.
func (r *run) save() error {
	if err := r.store.Save(r.cp); err != nil {
		return r.fatal(err)
	}
	r.pending = 0
	return nil
}

// recordProgress counts one durable unit of progress and writes the
// checkpoint once CheckpointEvery units are unsaved.
func (r *run) recordProgress() error {
	r.pending++
	if r.pending >= r.limits.CheckpointEvery {
		return r.save()
	}
	return nil
}

func (r *run) fatal(err error) error {
	if IsFatal(err) {
		return err
	}
	return &FatalError{CheckpointID: r.cp.ID, Err: err}
}

// step runs a non-precondition persistence step. Completed steps are skipped.
// A failure is logged and recorded and the run continues; cancellation and
// fatal errors stop it.
func (r *run) step(ctx context.Context, name string, fn func(context.Context) error) error {
	if r.cp.IsCompleted(name) {
		r.debug("Skipping completed step", "step", name)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.cp.Begin(name)
	err := fn(ctx)
	switch {
	case err == nil:
		r.cp.Complete(name)
	case IsFatal(err):
		return err
	case ctx.Err() != nil:
		if saveErr := r.save(); saveErr != nil {
			return saveErr
		}
		return ctx.Err()
	default:
		r.warn("Step failed",
			"step", name,
			"repositoryId", r.cp.Remote.RepositoryID,
			"projectId", r.cp.Remote.ProjectID,
			"error", err,
		)
		r.cp.RecordError(name, err)
		var partial *partialError
		if !errors.As(err, &partial) {
			r.unsaved = append(r.unsaved, Artifact{Step: name, Error: err.Error()})
		}
	}
	return r.save()
}

// storeCache writes the analysis to the cache when caching is on.
func (r *run) storeCache(savedToAPI bool) {
	if r.cache == nil || !r.opts.UseCache {
		return
	}
	meta := cache.Metadata{
		RepositoryID: r.cp.Remote.RepositoryID,
		ProjectID:    r.cp.Remote.ProjectID,
		SavedToAPI:   savedToAPI,
	}
	if err := r.cache.Put(r.root, r.analysis.Repository.CommitHash, r.analysis, meta); err != nil {
		r.warn("Failed to cache analysis", "error", err)
	}
}

func (r *run) closeCrawler() {
	if r.crawler == nil {
		return
	}
	if err := r.crawler.Close(); err != nil {
		r.debug("Failed to close crawler", "error", err)
	}
	r.crawler = nil
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (r *run) debug(msg string, keyvals ...interface{}) {
	if r.log != nil {
		r.log.Debug(msg, keyvals...)
	}
}

func (r *run) info(msg string, keyvals ...interface{}) {
	if r.log != nil {
		r.log.Info(msg, keyvals...)
	}
}

func (r *run) warn(msg string, keyvals ...interface{}) {
	if r.log != nil {
		r.log.Warn(msg, keyvals...)
	}
}

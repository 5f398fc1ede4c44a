package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"repoknow/internal/knowledge"
	"repoknow/internal/lexer"
	"repoknow/internal/model"
)

// Snippet sub-batches, saved in this order.
const (
	BatchUtility   = "utility-functions"
	BatchFunctions = "exported-functions"
	BatchRoutes    = "routes"
	BatchKeyFiles  = "key-files"
)

// saveSnippets creates code snippets in four sub-batches. Each sub-batch
// resumes on its own; a failed item does not stop the others.
func (r *run) saveSnippets(ctx context.Context) error {
	utilities := r.utilityFunctions()
	batches := []struct {
		category string
		items    []batchItem
	}{
		{BatchUtility, r.functionItems(utilities)},
		{BatchFunctions, r.functionItems(r.importantFunctions(utilities))},
		{BatchRoutes, r.routeItems()},
		{BatchKeyFiles, r.keyFileItems()},
	}

	var errs []error
	for _, b := range batches {
		err := r.saveBatch(ctx, StepSaveSnippets, b.category, b.items)
		var partial *partialError
		switch {
		case err == nil:
		case errors.As(err, &partial):
			errs = append(errs, err)
		default:
			return err
		}
	}
	return errors.Join(errs...)
}

func functionKey(fn model.FunctionRecord) string {
	return fmt.Sprintf("%s#%s:%d", fn.FilePath, fn.Name, fn.Line)
}

// utilityFunctions returns the utility functions, capped by
// MaxUtilitySnippets.
func (r *run) utilityFunctions() []model.FunctionRecord {
	fns := r.analysis.FunctionsByCategory(model.CategoryUtility)
	return capped(fns, r.limits.MaxUtilitySnippets)
}

// importantFunctions returns exported functions and service, handler,
// middleware and component functions not already covered by utilities,
// capped by MaxFunctionSnippets.
func (r *run) importantFunctions(utilities []model.FunctionRecord) []model.FunctionRecord {
	seen := make(map[string]bool, len(utilities))
	for _, fn := range utilities {
		seen[functionKey(fn)] = true
	}

	var out []model.FunctionRecord
	for _, fn := range r.analysis.Functions {
		if seen[functionKey(fn)] || fn.Category == model.CategoryUtility {
			continue
		}
		switch {
		case fn.Exported:
		case fn.Category == model.CategoryService,
			fn.Category == model.CategoryHandler,
			fn.Category == model.CategoryMiddleware,
			fn.Category == model.CategoryComponent:
		default:
			continue
		}
		out = append(out, fn)
	}
	return capped(out, r.limits.MaxFunctionSnippets)
}

func capped[T any](items []T, limit int) []T {
	if limit < 0 || len(items) <= limit {
		return items
	}
	return items[:limit]
}

func (r *run) functionItems(fns []model.FunctionRecord) []batchItem {
	items := make([]batchItem, 0, len(fns))
	for _, fn := range fns {
		items = append(items, batchItem{
			key: functionKey(fn),
			create: func(ctx context.Context) (string, error) {
				content, err := r.source(fn.FilePath)
				if err != nil {
					return "", err
				}
				code := lexer.ExtractFunctionBody(content, fn.Line)
				if code == "" {
					code = fn.Signature
				}
				return r.api.CreateSnippet(ctx, knowledge.Snippet{
					Title:        fn.Name,
					Code:         code,
					Language:     r.languageOf(fn.FilePath),
					Description:  describeFunction(fn),
					Tags:         functionTags(fn),
					FilePath:     fn.FilePath,
					ProjectID:    r.cp.Remote.ProjectID,
					RepositoryID: r.cp.Remote.RepositoryID,
					Metadata: map[string]any{
						"line":      fn.Line,
						"signature": fn.Signature,
						"category":  fn.Category,
						"exported":  fn.Exported,
						"async":     fn.Async,
					},
				})
			},
		})
	}
	return items
}

func describeFunction(fn model.FunctionRecord) string {
	if fn.DocComment != "" {
		return fn.DocComment
	}
	return fmt.Sprintf("%s function %s in %s", fn.Category, fn.Name, fn.FilePath)
}

func functionTags(fn model.FunctionRecord) []string {
	tags := []string{"function", string(fn.Category)}
	if fn.Exported {
		tags = append(tags, "exported")
	}
	if fn.Async {
		tags = append(tags, "async")
	}
	return tags
}

// routeItems yields one snippet holding every route as JSON.
func (r *run) routeItems() []batchItem {
	if len(r.analysis.Routes) == 0 {
		return nil
	}
	return []batchItem{{
		key: "routes.json",
		create: func(ctx context.Context) (string, error) {
			code, err := json.MarshalIndent(r.analysis.Routes, "", "  ")
			if err != nil {
				return "", fmt.Errorf("failed to encode routes: %w", err)
			}
			return r.api.CreateSnippet(ctx, knowledge.Snippet{
				Title:        r.analysis.Repository.Name + " routes",
				Code:         string(code),
				Language:     "JSON",
				Description:  fmt.Sprintf("%d HTTP routes discovered in %s", len(r.analysis.Routes), r.analysis.Repository.Name),
				Tags:         []string{"routes", "api"},
				ProjectID:    r.cp.Remote.ProjectID,
				RepositoryID: r.cp.Remote.RepositoryID,
			})
		},
	}}
}

// keyFiles returns entry points followed by the source files declaring the
// most functions and exports, capped by MaxKeyFiles. Ties keep crawl order.
func (r *run) keyFiles() []model.FileRecord {
	byPath := make(map[string]model.FileRecord, len(r.analysis.Files))
	for _, f := range r.analysis.Files {
		byPath[f.Path] = f
	}

	var out []model.FileRecord
	seen := make(map[string]bool)
	for _, entry := range r.analysis.Structure.EntryPoints {
		if f, ok := byPath[entry]; ok && !seen[entry] {
			out = append(out, f)
			seen[entry] = true
		}
	}

	var ranked []model.FileRecord
	for _, f := range r.analysis.Files {
		if seen[f.Path] || f.Details == nil || lexer.IsTestFile(f.Path) || fileWeight(f) == 0 {
			continue
		}
		ranked = append(ranked, f)
	}
	slices.SortStableFunc(ranked, func(a, b model.FileRecord) int {
		return fileWeight(b) - fileWeight(a)
	})
	out = append(out, ranked...)
	return capped(out, r.limits.MaxKeyFiles)
}

func fileWeight(f model.FileRecord) int {
	if f.Details == nil {
		return 0
	}
	return len(f.Details.Functions) + len(f.Details.Exports) + len(f.Details.Classes)
}

func (r *run) keyFileItems() []batchItem {
	files := r.keyFiles()
	items := make([]batchItem, 0, len(files))
	for _, f := range files {
		items = append(items, batchItem{
			key: "file:" + f.Path,
			create: func(ctx context.Context) (string, error) {
				content, err := r.source(f.Path)
				if err != nil {
					return "", err
				}
				return r.api.CreateSnippet(ctx, knowledge.Snippet{
					Title:        f.Path,
					Code:         content,
					Language:     r.languageOf(f.Path),
					Description:  fmt.Sprintf("Key file %s of %s", f.Path, r.analysis.Repository.Name),
					Tags:         []string{"key-file"},
					FilePath:     f.Path,
					ProjectID:    r.cp.Remote.ProjectID,
					RepositoryID: r.cp.Remote.RepositoryID,
					Metadata:     map[string]any{"size": f.Size},
				})
			},
		})
	}
	return items
}

// source reads a file through the crawler, remembering the last file since
// functions arrive grouped by file.
func (r *run) source(relPath string) (string, error) {
	if relPath == r.sourcePath {
		return r.sourceText, nil
	}
	if r.crawler == nil {
		return "", fmt.Errorf("cannot read %s: crawler is closed", relPath)
	}
	data, err := r.crawler.ReadFile(relPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", relPath, err)
	}
	r.sourcePath, r.sourceText = relPath, string(data)
	return r.sourceText, nil
}

func (r *run) languageOf(relPath string) string {
	for _, f := range r.analysis.Files {
		if f.Path == relPath {
			return f.Language
		}
	}
	return ""
}

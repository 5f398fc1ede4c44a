package pipeline

import (
	"context"
	"fmt"
	"net/http"

	"repoknow/internal/knowledge"
)

// fakeAPI is an in-memory knowledge base. Hooks let tests inject failures
// and interruptions.
type fakeAPI struct {
	next int

	repos    map[string]*knowledge.Repository
	projects map[string]*knowledge.Project

	repoCreates    int
	projectCreates int
	updates        []knowledge.RepositoryUpdate
	docs           []knowledge.Documentation
	markdown       []knowledge.MarkdownDocument
	files          []knowledge.File
	analyses       []knowledge.AnalysisRecord
	snippets       []knowledge.Snippet

	noAnalysisEndpoint bool
	failFiles          bool
	failCreateRepo     error
	failMarkdown       func(knowledge.MarkdownDocument) error
	failSnippet        func(knowledge.Snippet) error
	afterSnippet       func(knowledge.Snippet)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		repos:    make(map[string]*knowledge.Repository),
		projects: make(map[string]*knowledge.Project),
	}
}

func (f *fakeAPI) id(prefix string) string {
	f.next++
	return fmt.Sprintf("%s-%d", prefix, f.next)
}

func notFound(endpoint string) error {
	return &knowledge.APIError{Status: http.StatusNotFound, Category: knowledge.CategoryNotFound,
		Method: http.MethodGet, Endpoint: endpoint, Message: "not found"}
}

func serverError(endpoint string) error {
	return &knowledge.APIError{Status: http.StatusServiceUnavailable, Category: knowledge.CategoryServiceUnavailable,
		Method: http.MethodPost, Endpoint: endpoint, Message: "gave up after 4 attempts"}
}

func (f *fakeAPI) FindRepository(_ context.Context, name, remoteURL string) (*knowledge.Repository, error) {
	for _, repo := range f.repos {
		if (remoteURL != "" && repo.URL == remoteURL) || repo.Name == name {
			copied := *repo
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("repository %q: %w", name, knowledge.ErrNotFound)
}

func (f *fakeAPI) GetRepository(_ context.Context, id string) (*knowledge.Repository, error) {
	repo, ok := f.repos[id]
	if !ok {
		return nil, notFound(knowledge.EndpointRepositories + "/" + id)
	}
	copied := *repo
	return &copied, nil
}

func (f *fakeAPI) CreateRepository(_ context.Context, repo knowledge.Repository) (*knowledge.Repository, error) {
	if f.failCreateRepo != nil {
		return nil, f.failCreateRepo
	}
	f.repoCreates++
	repo.ID = f.id("repo")
	f.repos[repo.ID] = &repo
	copied := repo
	return &copied, nil
}

func (f *fakeAPI) UpdateRepository(_ context.Context, id string, update knowledge.RepositoryUpdate) (*knowledge.Repository, error) {
	repo, ok := f.repos[id]
	if !ok {
		return nil, notFound(knowledge.EndpointRepositories + "/" + id)
	}
	f.updates = append(f.updates, update)
	if update.Description != nil {
		repo.Description = *update.Description
	}
	copied := *repo
	return &copied, nil
}

func (f *fakeAPI) FindProject(_ context.Context, repositoryID, name string) (*knowledge.Project, error) {
	for _, p := range f.projects {
		if p.RepositoryID == repositoryID && p.Name == name {
			copied := *p
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("project %q: %w", name, knowledge.ErrNotFound)
}

func (f *fakeAPI) GetProject(_ context.Context, id string) (*knowledge.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return nil, notFound(knowledge.EndpointProjects + "/" + id)
	}
	copied := *p
	return &copied, nil
}

func (f *fakeAPI) CreateProject(_ context.Context, project knowledge.Project) (*knowledge.Project, error) {
	f.projectCreates++
	project.ID = f.id("proj")
	f.projects[project.ID] = &project
	copied := project
	return &copied, nil
}

func (f *fakeAPI) CreateDocumentation(_ context.Context, doc knowledge.Documentation) (string, error) {
	doc.ID = f.id("doc")
	f.docs = append(f.docs, doc)
	return doc.ID, nil
}

func (f *fakeAPI) CreateMarkdownDocument(_ context.Context, doc knowledge.MarkdownDocument) (string, error) {
	if f.failMarkdown != nil {
		if err := f.failMarkdown(doc); err != nil {
			return "", err
		}
	}
	doc.ID = f.id("md")
	f.markdown = append(f.markdown, doc)
	return doc.ID, nil
}

func (f *fakeAPI) CreateFile(_ context.Context, file knowledge.File) (string, error) {
	if f.failFiles {
		return "", serverError(knowledge.EndpointFiles)
	}
	file.ID = f.id("file")
	f.files = append(f.files, file)
	return file.ID, nil
}

func (f *fakeAPI) CreateSnippet(_ context.Context, snippet knowledge.Snippet) (string, error) {
	if f.failSnippet != nil {
		if err := f.failSnippet(snippet); err != nil {
			return "", err
		}
	}
	snippet.ID = f.id("snip")
	f.snippets = append(f.snippets, snippet)
	if f.afterSnippet != nil {
		f.afterSnippet(snippet)
	}
	return snippet.ID, nil
}

func (f *fakeAPI) CreateAnalysis(_ context.Context, record knowledge.AnalysisRecord) (string, error) {
	if f.noAnalysisEndpoint {
		return "", notFound(knowledge.EndpointAnalyses)
	}
	record.ID = f.id("analysis")
	f.analyses = append(f.analyses, record)
	return record.ID, nil
}

func (f *fakeAPI) snippetsTitled(title string) int {
	n := 0
	for _, s := range f.snippets {
		if s.Title == title {
			n++
		}
	}
	return n
}

func (f *fakeAPI) markdownOfType(docType string) []knowledge.MarkdownDocument {
	var out []knowledge.MarkdownDocument
	for _, d := range f.markdown {
		if d.DocumentType == docType {
			out = append(out, d)
		}
	}
	return out
}

var _ KnowledgeAPI = (*fakeAPI)(nil)

package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

// Endpoint paths of the knowledge base API.
const (
	EndpointRepositories      = "repositories"
	EndpointProjects          = "projects"
	EndpointDocumentation     = "documentation"
	EndpointMarkdownDocuments = "markdown-documents"
	EndpointFiles             = "files"
	EndpointSnippets          = "snippets"
	EndpointAnalyses          = "repository-analyses"
)

// Repository is a repository record.
type Repository struct {
	ID            string `json:"id,omitempty"`
	Name          string `json:"name"`
	URL           string `json:"url,omitempty"`
	Description   string `json:"description,omitempty"`
	DefaultBranch string `json:"default_branch,omitempty"`
	LocalPath     string `json:"local_path,omitempty"`
}

// RepositoryUpdate is a partial repository update.
type RepositoryUpdate struct {
	Description *string `json:"description,omitempty"`
	URL         *string `json:"url,omitempty"`
}

// Project groups knowledge records about one repository.
type Project struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	RepositoryID string `json:"repository_id,omitempty"`
}

// Documentation is a generic documentation record.
type Documentation struct {
	ID           string         `json:"id,omitempty"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	DocType      string         `json:"doc_type"`
	FilePath     string         `json:"file_path,omitempty"`
	ProjectID    string         `json:"project_id,omitempty"`
	RepositoryID string         `json:"repository_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// MarkdownDocument is a generated markdown document.
type MarkdownDocument struct {
	ID           string         `json:"id,omitempty"`
	Title        string         `json:"title"`
	DocumentType string         `json:"document_type"`
	Category     string         `json:"category,omitempty"`
	Content      string         `json:"content"`
	FilePath     string         `json:"file_path,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	ProjectID    string         `json:"project_id,omitempty"`
	RepositoryID string         `json:"repository_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// File is a generic stored file.
type File struct {
	ID           string         `json:"id,omitempty"`
	Name         string         `json:"name"`
	Path         string         `json:"path,omitempty"`
	Content      string         `json:"content"`
	MimeType     string         `json:"mime_type,omitempty"`
	Size         int64          `json:"size,omitempty"`
	ProjectID    string         `json:"project_id,omitempty"`
	RepositoryID string         `json:"repository_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Snippet is a code snippet record.
type Snippet struct {
	ID           string         `json:"id,omitempty"`
	Title        string         `json:"title"`
	Code         string         `json:"code"`
	Language     string         `json:"language,omitempty"`
	Description  string         `json:"description,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	FilePath     string         `json:"file_path,omitempty"`
	ProjectID    string         `json:"project_id,omitempty"`
	RepositoryID string         `json:"repository_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// AnalysisRecord is the structured repository analysis record.
type AnalysisRecord struct {
	ID           string `json:"id,omitempty"`
	RepositoryID string `json:"repository_id"`
	ProjectID    string `json:"project_id,omitempty"`
	CommitHash   string `json:"commit_hash,omitempty"`
	Analysis     any    `json:"analysis"`
}

// decodeList accepts a bare JSON array or an object wrapping it in "items"
// or "data".
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	var items []T
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, nil
	}
	var wrapped struct {
		Items []T `json:"items"`
		Data  []T `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode list response: %w", err)
	}
	if wrapped.Items != nil {
		return wrapped.Items, nil
	}
	return wrapped.Data, nil
}

func (c *Client) list(ctx context.Context, endpoint string, query url.Values) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, endpoint, query, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// FindRepository looks a repository up by remote url, then by name. It
// returns ErrNotFound when neither matches.
func (c *Client) FindRepository(ctx context.Context, name, remoteURL string) (*Repository, error) {
	lookups := []url.Values{}
	if remoteURL != "" {
		lookups = append(lookups, url.Values{"url": {remoteURL}})
	}
	if name != "" {
		lookups = append(lookups, url.Values{"name": {name}})
	}

	for _, query := range lookups {
		raw, err := c.list(ctx, EndpointRepositories, query)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		repos, err := decodeList[Repository](raw)
		if err != nil {
			return nil, err
		}
		for i := range repos {
			if (remoteURL != "" && repos[i].URL == remoteURL) || repos[i].Name == name {
				return &repos[i], nil
			}
		}
	}
	return nil, fmt.Errorf("repository %q: %w", name, ErrNotFound)
}

// GetRepository fetches a repository by id.
func (c *Client) GetRepository(ctx context.Context, id string) (*Repository, error) {
	var repo Repository
	if err := c.Get(ctx, EndpointRepositories+"/"+url.PathEscape(id), nil, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// CreateRepository creates a repository record.
func (c *Client) CreateRepository(ctx context.Context, repo Repository) (*Repository, error) {
	var created Repository
	if err := c.Post(ctx, EndpointRepositories, repo, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateRepository applies a partial update to a repository.
func (c *Client) UpdateRepository(ctx context.Context, id string, update RepositoryUpdate) (*Repository, error) {
	var updated Repository
	if err := c.Patch(ctx, EndpointRepositories+"/"+url.PathEscape(id), update, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// FindProject returns the project of a repository with the given name.
func (c *Client) FindProject(ctx context.Context, repositoryID, name string) (*Project, error) {
	raw, err := c.list(ctx, EndpointProjects, url.Values{"repository_id": {repositoryID}})
	if err != nil {
		return nil, err
	}
	projects, err := decodeList[Project](raw)
	if err != nil {
		return nil, err
	}
	for i := range projects {
		if projects[i].Name == name || name == "" {
			return &projects[i], nil
		}
	}
	return nil, fmt.Errorf("project %q: %w", name, ErrNotFound)
}

// GetProject fetches a project by id.
func (c *Client) GetProject(ctx context.Context, id string) (*Project, error) {
	var project Project
	if err := c.Get(ctx, EndpointProjects+"/"+url.PathEscape(id), nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// CreateProject creates a project record.
func (c *Client) CreateProject(ctx context.Context, project Project) (*Project, error) {
	var created Project
	if err := c.Post(ctx, EndpointProjects, project, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateDocumentation stores a documentation record and returns its id.
func (c *Client) CreateDocumentation(ctx context.Context, doc Documentation) (string, error) {
	return c.create(ctx, EndpointDocumentation, doc)
}

// CreateMarkdownDocument stores a markdown document and returns its id.
func (c *Client) CreateMarkdownDocument(ctx context.Context, doc MarkdownDocument) (string, error) {
	return c.create(ctx, EndpointMarkdownDocuments, doc)
}

// CreateFile stores a generic file and returns its id.
func (c *Client) CreateFile(ctx context.Context, file File) (string, error) {
	return c.create(ctx, EndpointFiles, file)
}

// CreateSnippet stores a code snippet and returns its id.
func (c *Client) CreateSnippet(ctx context.Context, snippet Snippet) (string, error) {
	return c.create(ctx, EndpointSnippets, snippet)
}

// CreateAnalysis stores a structured analysis record. Servers without the
// endpoint answer 404, which callers detect with errors.Is(err, ErrNotFound).
func (c *Client) CreateAnalysis(ctx context.Context, record AnalysisRecord) (string, error) {
	return c.create(ctx, EndpointAnalyses, record)
}

func (c *Client) create(ctx context.Context, endpoint string, body any) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	if err := c.Post(ctx, endpoint, body, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", &APIError{Category: CategoryUnknown, Method: "POST", Endpoint: endpoint,
			Message: "response did not include an id"}
	}
	return created.ID, nil
}

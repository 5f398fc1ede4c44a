// Package docs reads documentation files (READMEs, guides, changelogs) from a
// checkout, extracting front matter, a title and the heading outline.
package docs

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"repoknow/internal/logging"
	"repoknow/internal/model"

	"github.com/adrg/frontmatter"
	"github.com/src-d/enry/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	// DefaultMaxDocuments bounds how many documentation files one run reads.
	DefaultMaxDocuments = 50
	// DefaultMaxDocumentSize bounds the bytes kept per document.
	DefaultMaxDocumentSize = 100 * 1024
)

var docExtensions = map[string]bool{
	".md":       true,
	".mdx":      true,
	".markdown": true,
	".rst":      true,
	".txt":      true,
	".adoc":     true,
}

var rootDocNames = []string{"readme", "changelog", "contributing", "architecture", "security", "code_of_conduct", "license"}

// FileReader reads a file relative to the checkout root.
type FileReader func(relPath string) ([]byte, error)

// Reader turns documentation files into model.DocumentationFile values.
type Reader struct {
	logger  *logging.AppLogger
	maxDocs int
	maxSize int
}

// NewReader creates a Reader with default limits. The logger may be nil.
func NewReader(logger *logging.AppLogger) *Reader {
	return &Reader{logger: logger, maxDocs: DefaultMaxDocuments, maxSize: DefaultMaxDocumentSize}
}

// IsDocumentationFile reports whether a crawled path should be read as documentation.
func IsDocumentationFile(relPath string) bool {
	lower := strings.ToLower(relPath)
	ext := path.Ext(lower)
	if !docExtensions[ext] {
		return false
	}

	base := strings.TrimSuffix(path.Base(lower), ext)
	if !strings.Contains(lower, "/") {
		for _, name := range rootDocNames {
			if base == name {
				return true
			}
		}
	}
	if ext == ".txt" {
		return false
	}
	return enry.IsDocumentation(relPath) || strings.HasPrefix(lower, "docs/") || strings.HasPrefix(lower, "doc/") || !strings.Contains(lower, "/")
}

// ReadAll reads documentation among files, skipping paths already present in
// known. Results for known entries are kept as-is and new documents are
// appended after them in crawl order. Unreadable files are skipped.
//
// onRead, when non-nil, is called with each newly read document. The read
// stops with the documents gathered so far when ctx is done or onRead fails.
func (r *Reader) ReadAll(ctx context.Context, files []model.FileRecord, known []model.DocumentationFile, read FileReader, onRead func(model.DocumentationFile) error) ([]model.DocumentationFile, error) {
	out := make([]model.DocumentationFile, 0, len(known))
	seen := make(map[string]bool, len(known))
	for _, doc := range known {
		seen[doc.Path] = true
		out = append(out, doc)
	}

	var skipped int
	for _, f := range files {
		if len(out) >= r.maxDocs {
			break
		}
		if seen[f.Path] || !IsDocumentationFile(f.Path) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}

		content, err := read(f.Path)
		if err != nil {
			skipped++
			if r.logger != nil {
				r.logger.Debug("Skipping documentation file", "path", f.Path, "reason", err)
			}
			continue
		}

		doc := r.Parse(f.Path, content)
		out = append(out, doc)
		seen[f.Path] = true
		if onRead != nil {
			if err := onRead(doc); err != nil {
				return out, err
			}
		}
	}

	if r.logger != nil {
		r.logger.Debug("Documentation read completed",
			"resumed", len(known),
			"total", len(out),
			"skipped", skipped)
	}
	return out, nil
}

// Parse extracts front matter, title and headings from a documentation file.
// Files without front matter are parsed as plain markdown.
func (r *Reader) Parse(relPath string, content []byte) model.DocumentationFile {
	doc := model.DocumentationFile{
		Path: relPath,
		Size: int64(len(content)),
	}

	body := content
	matter := map[string]any{}
	if rest, err := frontmatter.Parse(bytes.NewReader(content), &matter); err == nil {
		body = rest
		if len(matter) > 0 {
			doc.FrontMatter = matter
		}
	} else if r.logger != nil {
		r.logger.Debug("Ignoring malformed front matter", "path", relPath, "error", err)
	}

	if len(body) > r.maxSize {
		body = body[:r.maxSize]
	}
	doc.Content = string(body)

	ext := strings.ToLower(path.Ext(relPath))
	if ext != ".txt" && ext != ".rst" && ext != ".adoc" {
		doc.Headings = Headings(body)
	}

	doc.Title = titleOf(doc, relPath)
	return doc
}

// Headings returns markdown headings in document order, prefixed with one '#'
// per level.
func Headings(source []byte) []string {
	root := goldmark.New().Parser().Parse(text.NewReader(source))

	var headings []string
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		title := strings.TrimSpace(inlineText(heading, source))
		if title != "" {
			headings = append(headings, strings.Repeat("#", heading.Level)+" "+title)
		}
		return ast.WalkSkipChildren, nil
	})
	return headings
}

func inlineText(n ast.Node, source []byte) string {
	var buf strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(source))
			if node.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(node.Value)
		default:
			buf.WriteString(inlineText(c, source))
		}
	}
	return buf.String()
}

func titleOf(doc model.DocumentationFile, relPath string) string {
	if t, ok := doc.FrontMatter["title"].(string); ok && strings.TrimSpace(t) != "" {
		return strings.TrimSpace(t)
	}
	for _, h := range doc.Headings {
		if strings.HasPrefix(h, "# ") {
			return strings.TrimPrefix(h, "# ")
		}
	}
	base := path.Base(relPath)
	return strings.TrimSuffix(base, path.Ext(base))
}

// Summary renders a one-line description of a document for listings.
func Summary(doc model.DocumentationFile) string {
	return fmt.Sprintf("%s (%s, %d headings)", doc.Title, doc.Path, len(doc.Headings))
}

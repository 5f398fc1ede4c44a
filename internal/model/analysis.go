package model

import "time"

// DiagramKind identifies one of the generated diagrams.
type DiagramKind string

const (
	DiagramFolderStructure  DiagramKind = "folder-structure"
	DiagramFileDependency   DiagramKind = "file-dependency"
	DiagramArchitecture     DiagramKind = "architecture-layers"
	DiagramModuleDependency DiagramKind = "module-dependency"
)

// Diagram is a rendered Mermaid diagram.
type Diagram struct {
	Kind        DiagramKind `json:"kind"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Format      string      `json:"format"`
	Content     string      `json:"content"`
}

// DocumentationFile is a documentation file read from the checkout.
type DocumentationFile struct {
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	Headings    []string       `json:"headings,omitempty"`
	FrontMatter map[string]any `json:"frontMatter,omitempty"`
	Content     string         `json:"content"`
	Size        int64          `json:"size"`
}

// Insights is optional model-generated commentary about the repository.
type Insights struct {
	Summary     string   `json:"summary"`
	Strengths   []string `json:"strengths,omitempty"`
	Concerns    []string `json:"concerns,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Model       string   `json:"model,omitempty"`
}

// ComprehensiveAnalysis is the aggregate result of the analysis phase.
type ComprehensiveAnalysis struct {
	Repository    RepositoryInfo      `json:"repository"`
	Files         []FileRecord        `json:"files"`
	Structure     Structure           `json:"structure"`
	Functions     []FunctionRecord    `json:"functions"`
	Routes        []RouteRecord       `json:"routes"`
	Documentation []DocumentationFile `json:"documentation"`
	Diagrams      []Diagram           `json:"diagrams"`
	Insights      *Insights           `json:"insights,omitempty"`
	AnalyzedAt    time.Time           `json:"analyzedAt"`
}

// LanguageStats counts files per language recognized by the crawler.
func (a *ComprehensiveAnalysis) LanguageStats() map[string]int {
	stats := make(map[string]int)
	for _, f := range a.Files {
		if f.Language == "" {
			continue
		}
		stats[f.Language]++
	}
	return stats
}

// ExportedFunctions returns exported functions in discovery order.
func (a *ComprehensiveAnalysis) ExportedFunctions() []FunctionRecord {
	var out []FunctionRecord
	for _, fn := range a.Functions {
		if fn.Exported {
			out = append(out, fn)
		}
	}
	return out
}

// FunctionsByCategory returns functions of the given category in discovery order.
func (a *ComprehensiveAnalysis) FunctionsByCategory(category FunctionCategory) []FunctionRecord {
	var out []FunctionRecord
	for _, fn := range a.Functions {
		if fn.Category == category {
			out = append(out, fn)
		}
	}
	return out
}

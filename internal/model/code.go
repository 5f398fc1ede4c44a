package model

// FileKind distinguishes files from directories in FileRecord and FolderNode.
type FileKind string

const (
	KindFile      FileKind = "file"
	KindDirectory FileKind = "directory"
)

// CodeDetails is the per-file output of lexical analysis.
type CodeDetails struct {
	Imports    []string `json:"imports"`
	Exports    []string `json:"exports"`
	Functions  []string `json:"functions"`
	Classes    []string `json:"classes"`
	Interfaces []string `json:"interfaces"`
	Types      []string `json:"types"`
	Patterns   []string `json:"patterns"`
}

// FileRecord is one crawled file. Path is slash separated and relative to the
// repository root.
type FileRecord struct {
	Path     string       `json:"path"`
	Kind     FileKind     `json:"kind"`
	Size     int64        `json:"size"`
	Language string       `json:"language,omitempty"`
	Details  *CodeDetails `json:"details,omitempty"`
}

// FunctionCategory classifies a function for snippet selection.
type FunctionCategory string

const (
	CategoryUtility    FunctionCategory = "utility"
	CategoryHelper     FunctionCategory = "helper"
	CategoryService    FunctionCategory = "service"
	CategoryComponent  FunctionCategory = "component"
	CategoryHandler    FunctionCategory = "handler"
	CategoryMiddleware FunctionCategory = "middleware"
	CategoryOther      FunctionCategory = "other"
)

// Parameter is a single declared function parameter.
type Parameter struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Optional bool   `json:"optional,omitempty"`
}

// FunctionRecord is a function or method recovered from source text.
// FilePath is always relative to the repository root.
type FunctionRecord struct {
	Name       string           `json:"name"`
	FilePath   string           `json:"filePath"`
	Line       int              `json:"line"`
	Signature  string           `json:"signature"`
	Parameters []Parameter      `json:"parameters"`
	ReturnType string           `json:"returnType,omitempty"`
	Async      bool             `json:"async"`
	Exported   bool             `json:"exported"`
	Visibility string           `json:"visibility"`
	DocComment string           `json:"docComment,omitempty"`
	Category   FunctionCategory `json:"category"`
}

// RouteRecord is an HTTP route found by imperative registration or file-based routing.
type RouteRecord struct {
	Method     string   `json:"method"`
	Path       string   `json:"path"`
	Handler    string   `json:"handler,omitempty"`
	Middleware []string `json:"middleware,omitempty"`
	FilePath   string   `json:"filePath"`
	Line       int      `json:"line"`
}

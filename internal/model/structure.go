package model

// Values used when inference has no clear answer.
const (
	StandardMixed   = "mixed"
	StandardUnknown = "unknown"
)

// NamingConventions records the dominant naming style per identifier kind.
type NamingConventions struct {
	Files     string `json:"files"`
	Functions string `json:"functions"`
	Classes   string `json:"classes"`
	Variables string `json:"variables"`
}

// CodingStandards are inferred by majority vote over observed files.
type CodingStandards struct {
	Naming           NamingConventions `json:"naming"`
	FileOrganization string            `json:"fileOrganization"`
	ImportStyle      string            `json:"importStyle"`
	ImportOrdering   string            `json:"importOrdering"`
	ErrorHandling    string            `json:"errorHandling"`
	TestFramework    string            `json:"testFramework"`
}

// FolderNode is a node of the folder tree built from the flat file list.
type FolderNode struct {
	Name     string        `json:"name"`
	Path     string        `json:"path"`
	Kind     FileKind      `json:"kind"`
	Children []*FolderNode `json:"children,omitempty"`
}

// Architecture lists detected layers and high-level patterns.
type Architecture struct {
	Layers   []string `json:"layers"`
	Patterns []string `json:"patterns"`
}

// Dependencies collects declared dependencies from all recognized manifests.
type Dependencies struct {
	Runtime   map[string]string `json:"runtime"`
	Dev       map[string]string `json:"dev"`
	Scripts   map[string]string `json:"scripts,omitempty"`
	Manifests []string          `json:"manifests"`
}

// LintingTool is a detected linter or formatter configuration.
type LintingTool struct {
	Tool       string         `json:"tool"`
	ConfigFile string         `json:"configFile"`
	Parsed     bool           `json:"parsed"`
	Format     string         `json:"format"`
	Config     map[string]any `json:"config,omitempty"`
}

// Structure is the output of the structure builder.
type Structure struct {
	FolderTree      *FolderNode     `json:"folderTree"`
	Architecture    Architecture    `json:"architecture"`
	CodingStandards CodingStandards `json:"codingStandards"`
	Dependencies    Dependencies    `json:"dependencies"`
	EntryPoints     []string        `json:"entryPoints"`
	Linting         []LintingTool   `json:"linting"`
}

package model

// GitUser is the identity configured for commits in the repository.
type GitUser struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// RepositoryInfo describes the git checkout being analyzed. It is computed once
// per run and treated as immutable afterwards.
type RepositoryInfo struct {
	Name          string            `json:"name"`
	RemoteURL     string            `json:"remoteUrl,omitempty"`
	CurrentBranch string            `json:"currentBranch"`
	Branches      []string          `json:"branches"`
	BranchPattern string            `json:"branchPattern"`
	DefaultBranch string            `json:"defaultBranch,omitempty"`
	CommitHash    string            `json:"commitHash,omitempty"`
	RootPath      string            `json:"rootPath"`
	User          GitUser           `json:"user"`
	Config        map[string]string `json:"config,omitempty"`
}

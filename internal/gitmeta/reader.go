package gitmeta

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"repoknow/internal/logging"
	"repoknow/internal/model"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing"
)

// ErrNotAGitRepository is returned when the target has no readable git metadata.
var ErrNotAGitRepository = errors.New("not a git repository")

const (
	// Config section and key holding an explicit repository name, set with
	// `git config repoknow.name <name>`.
	nameConfigSection = "repoknow"
	nameConfigKey     = "name"

	originRemote = "origin"
)

// Reader extracts RepositoryInfo from a working tree.
type Reader struct {
	logger *logging.AppLogger
}

// NewReader creates a Reader. The logger may be nil.
func NewReader(logger *logging.AppLogger) *Reader {
	return &Reader{logger: logger}
}

// Read opens the repository at rootPath and collects its metadata.
//
// Parameters:
//   - rootPath: path to the working tree (a parent .git directory is detected)
//
// Returns:
//   - model.RepositoryInfo: identity snapshot for this run
//   - error: wraps ErrNotAGitRepository when git metadata cannot be opened
func (r *Reader) Read(rootPath string) (model.RepositoryInfo, error) {
	absPath, err := filepath.Abs(rootPath)
	if err != nil {
		return model.RepositoryInfo{}, fmt.Errorf("cannot resolve path %s: %w", rootPath, err)
	}

	repo, err := git.PlainOpenWithOptions(absPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return model.RepositoryInfo{}, fmt.Errorf("%w: %s: %v", ErrNotAGitRepository, absPath, err)
	}

	// A path inside the checkout resolves to the top of the working tree so
	// file paths, names and cache keys do not depend on where the run started.
	absPath = worktreeRoot(repo, absPath)

	info := model.RepositoryInfo{
		RootPath: absPath,
		Config:   map[string]string{},
	}

	info.RemoteURL = r.originURL(repo)
	info.CurrentBranch, info.CommitHash = r.head(repo)
	info.Branches = r.branches(repo)
	if info.CurrentBranch != "" && !slices.Contains(info.Branches, info.CurrentBranch) {
		info.Branches = append(info.Branches, info.CurrentBranch)
	}
	info.BranchPattern = DetectBranchPattern(info.Branches)
	info.DefaultBranch = r.defaultBranch(repo, info.Branches, info.CurrentBranch)

	explicitName := r.readConfig(repo, &info)
	info.Name = resolveName(explicitName, info.RemoteURL, absPath)

	if r.logger != nil {
		r.logger.Debug("Read repository metadata",
			"path", absPath,
			"name", info.Name,
			"branch", info.CurrentBranch,
			"commit", info.CommitHash,
			"branches", len(info.Branches),
		)
	}

	return info, nil
}

// resolveName applies the naming priority: explicit config, remote URL, directory.
func resolveName(explicit, remoteURL, rootPath string) string {
	if name := strings.TrimSpace(explicit); name != "" {
		return name
	}
	if name := ExtractRepoNameFromURL(remoteURL); name != "" {
		return name
	}
	return filepath.Base(rootPath)
}

func (r *Reader) originURL(repo *git.Repository) string {
	remote, err := repo.Remote(originRemote)
	if err != nil {
		remotes, listErr := repo.Remotes()
		if listErr != nil || len(remotes) == 0 {
			return ""
		}
		remote = remotes[0]
	}

	cfg := remote.Config()
	if cfg == nil || len(cfg.URLs) == 0 {
		return ""
	}
	return NormalizeRemoteURL(cfg.URLs[0])
}

// head returns the current branch and commit. An unborn branch has no commit
// but still reports the branch HEAD points at.
func (r *Reader) head(repo *git.Repository) (string, string) {
	ref, err := repo.Head()
	if err == nil {
		branch := ""
		if ref.Name().IsBranch() {
			branch = ref.Name().Short()
		}
		return branch, ref.Hash().String()
	}

	symbolic, symErr := repo.Reference(plumbing.HEAD, false)
	if symErr != nil {
		if r.logger != nil {
			r.logger.Debug("Cannot resolve HEAD", "error", err)
		}
		return "", ""
	}
	if symbolic.Type() == plumbing.SymbolicReference && symbolic.Target().IsBranch() {
		return symbolic.Target().Short(), ""
	}
	return "", ""
}

// branches lists local branches followed by remote-tracking branches of origin
// that have no local counterpart.
func (r *Reader) branches(repo *git.Repository) []string {
	var out []string
	seen := make(map[string]bool)

	if iter, err := repo.Branches(); err == nil {
		_ = iter.ForEach(func(ref *plumbing.Reference) error {
			name := ref.Name().Short()
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
			return nil
		})
	}

	if refs, err := repo.References(); err == nil {
		prefix := "refs/remotes/" + originRemote + "/"
		_ = refs.ForEach(func(ref *plumbing.Reference) error {
			full := ref.Name().String()
			if !strings.HasPrefix(full, prefix) {
				return nil
			}
			name := strings.TrimPrefix(full, prefix)
			if name == "HEAD" || seen[name] {
				return nil
			}
			seen[name] = true
			out = append(out, name)
			return nil
		})
	}

	slices.Sort(out)
	return out
}

func (r *Reader) defaultBranch(repo *git.Repository, branches []string, current string) string {
	if ref, err := repo.Reference(plumbing.NewRemoteHEADReferenceName(originRemote), false); err == nil {
		if ref.Type() == plumbing.SymbolicReference {
			target := ref.Target().String()
			return strings.TrimPrefix(target, "refs/remotes/"+originRemote+"/")
		}
	}

	for _, candidate := range []string{"main", "master"} {
		if slices.Contains(branches, candidate) {
			return candidate
		}
	}
	return current
}

// readConfig fills the user identity and config snapshot and returns the
// explicit repository name, if one is configured.
func (r *Reader) readConfig(repo *git.Repository, info *model.RepositoryInfo) string {
	local, err := repo.Config()
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("Cannot read repository config", "error", err)
		}
		return ""
	}

	info.User = model.GitUser{Name: local.User.Name, Email: local.User.Email}
	if info.User.Name == "" || info.User.Email == "" {
		if global, err := repo.ConfigScoped(config.GlobalScope); err == nil {
			if info.User.Name == "" {
				info.User.Name = global.User.Name
			}
			if info.User.Email == "" {
				info.User.Email = global.User.Email
			}
		}
	}

	if local.Core.Worktree != "" {
		info.Config["core.worktree"] = local.Core.Worktree
	}
	info.Config["core.bare"] = fmt.Sprintf("%t", local.Core.IsBare)
	for name, remote := range local.Remotes {
		if len(remote.URLs) > 0 {
			info.Config["remote."+name+".url"] = NormalizeRemoteURL(remote.URLs[0])
		}
	}
	for name, branch := range local.Branches {
		if branch.Remote != "" {
			info.Config["branch."+name+".remote"] = branch.Remote
		}
	}

	explicit := ""
	if local.Raw != nil && local.Raw.HasSection(nameConfigSection) {
		explicit = local.Raw.Section(nameConfigSection).Option(nameConfigKey)
	}
	if explicit != "" {
		info.Config[nameConfigSection+"."+nameConfigKey] = explicit
	}
	return explicit
}

// WorktreeRoot returns the top directory of the working tree containing path.
func WorktreeRoot(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	repo, err := git.PlainOpenWithOptions(absPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNotAGitRepository, absPath, err)
	}
	return worktreeRoot(repo, absPath), nil
}

// worktreeRoot falls back to absPath for bare repositories.
func worktreeRoot(repo *git.Repository, absPath string) string {
	wt, err := repo.Worktree()
	if err != nil || wt.Filesystem == nil {
		return absPath
	}
	if root := wt.Filesystem.Root(); root != "" {
		return filepath.Clean(root)
	}
	return absPath
}

// IsRepository reports whether path is inside a git working tree.
func IsRepository(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	_, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	return err == nil
}

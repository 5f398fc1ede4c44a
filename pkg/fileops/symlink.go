package fileops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IsSymlink checks if a given path is a symbolic link without following it.
func IsSymlink(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return false, fmt.Errorf("failed to stat path: %w", err)
	}
	return info.Mode()&os.ModeSymlink != 0, nil
}

// ValidateSymlinkSecurity validates that a symlink resolves inside one of the
// allowed base paths. Broken links and links escaping every base path are rejected.
//
// Usage example:
//
//	if err := fileops.ValidateSymlinkSecurity("/checkout/shared", []string{"/checkout"}); err != nil {
//	    return fmt.Errorf("symlink security check failed: %w", err)
//	}
func ValidateSymlinkSecurity(linkPath string, allowedBasePaths []string) error {
	isLink, err := IsSymlink(linkPath)
	if err != nil {
		return fmt.Errorf("cannot check if path is symlink: %w", err)
	}
	if !isLink {
		return fmt.Errorf("path is not a symbolic link: %s", linkPath)
	}

	resolved, err := filepath.EvalSymlinks(linkPath)
	if err != nil {
		return fmt.Errorf("symlink resolution failed: %w", err)
	}

	resolvedAbs, err := filepath.Abs(resolved)
	if err != nil {
		return fmt.Errorf("cannot get absolute path of resolved target: %w", err)
	}

	for _, basePath := range allowedBasePaths {
		baseAbs, err := filepath.Abs(basePath)
		if err != nil {
			continue
		}

		// macOS temp dirs live behind /private symlinks
		if baseCanonical, err := filepath.EvalSymlinks(baseAbs); err == nil {
			baseAbs = baseCanonical
		}

		relPath, err := filepath.Rel(baseAbs, resolvedAbs)
		if err != nil {
			continue
		}

		if relPath != ".." && !strings.HasPrefix(relPath, ".."+string(os.PathSeparator)) {
			return nil
		}
	}

	return fmt.Errorf("symlink target is not within any allowed base path: %s", resolved)
}

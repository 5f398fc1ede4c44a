package gitmeta

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

var sshPattern = regexp.MustCompile(`^(?:ssh://)?(?:[^@/]+@)?([^:/]+)[:/](.+)$`)

// NormalizeRemoteURL converts a remote URL to its HTTPS form without a .git suffix.
// SSH URLs like git@github.com:user/repo.git become https://github.com/user/repo.
// Already normalized URLs are returned unchanged. Credentials embedded in HTTPS
// URLs are dropped.
func NormalizeRemoteURL(remoteURL string) string {
	remoteURL = strings.TrimSpace(remoteURL)
	if remoteURL == "" {
		return ""
	}
	remoteURL = strings.TrimSuffix(strings.TrimSuffix(remoteURL, "/"), ".git")

	if strings.HasPrefix(remoteURL, "http://") || strings.HasPrefix(remoteURL, "https://") {
		parsed, err := url.Parse(remoteURL)
		if err != nil {
			return remoteURL
		}
		parsed.User = nil
		return parsed.String()
	}

	if strings.Contains(remoteURL, "://") && !strings.HasPrefix(remoteURL, "ssh://") {
		// file://, git:// and friends have no HTTPS equivalent worth guessing.
		return remoteURL
	}

	if matches := sshPattern.FindStringSubmatch(remoteURL); matches != nil {
		host := matches[1]
		repoPath := strings.TrimPrefix(matches[2], "/")
		if host != "" && host != "." && host != ".." && repoPath != "" {
			return "https://" + host + "/" + repoPath
		}
	}

	return remoteURL
}

// ExtractRepoNameFromURL returns the last path segment of the normalized URL.
// Both the SSH and HTTPS forms of a repository yield the same name.
func ExtractRepoNameFromURL(remoteURL string) string {
	normalized := NormalizeRemoteURL(remoteURL)
	if normalized == "" {
		return ""
	}
	if parsed, err := url.Parse(normalized); err == nil && parsed.Path != "" {
		normalized = parsed.Path
	}
	name := path.Base(strings.TrimSuffix(normalized, "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}

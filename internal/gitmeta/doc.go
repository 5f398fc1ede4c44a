// Package gitmeta reads repository identity from a local git working tree.
//
// The Reader opens the checkout with go-git and never shells out to the git
// binary. It resolves:
//   - the repository name (explicit config, then the remote URL, then the directory name)
//   - the normalized HTTPS remote URL of origin
//   - current branch, branch list, default branch and HEAD commit
//   - the dominant branch naming pattern
//   - the configured commit identity
//
// URL helpers are exported so the pipeline can compare remote descriptions
// against the same normalized form.
package gitmeta

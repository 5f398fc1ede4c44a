// Package structure turns the flat list of crawled files into a repository
// level view: the folder tree, architecture layers and patterns, coding
// standards inferred by vote, declared dependencies, entry points and lint
// tooling.
//
// Manifests and lint configs are read through an fs.FS rooted at the
// checkout, so tests can use fstest.MapFS.
package structure

// Package crawler walks a checkout and produces FileRecords, resuming from a
// list of paths recorded by an earlier, interrupted crawl.
package crawler

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"repoknow/internal/logging"
	"repoknow/internal/model"
	"repoknow/pkg/fileops"

	"github.com/src-d/enry/v2"
)

const nodeModules = "node_modules"

// Options control which files the crawl reports.
type Options struct {
	IncludeNodeModules bool
	IncludeHidden      bool
	MaxDepth           int
	MaxFileSize        int64
}

// Crawler owns a secure scanner rooted at the checkout.
type Crawler struct {
	scanner *fileops.SecureDirectoryScanner
	opts    Options
	logger  *logging.AppLogger
}

// New opens a crawler rooted at root. The caller must Close it.
func New(root string, opts Options, logger *logging.AppLogger) (*Crawler, error) {
	scanOpts := fileops.DefaultScanOptions()
	scanOpts.IncludeHidden = opts.IncludeHidden
	if opts.MaxDepth > 0 {
		scanOpts.MaxDepth = opts.MaxDepth
	}
	if opts.IncludeNodeModules {
		scanOpts.SkipPatterns = slices.DeleteFunc(scanOpts.SkipPatterns, func(p string) bool {
			return p == nodeModules
		})
	}
	scanOpts.FileFilter = func(rel string) bool {
		return includeFile(rel, opts.IncludeNodeModules)
	}

	scanner, err := fileops.NewDirectoryScanner(root, scanOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open crawler at %s: %w", root, err)
	}

	return &Crawler{scanner: scanner, opts: opts, logger: logger}, nil
}

// Close releases the scan root.
func (c *Crawler) Close() error {
	return c.scanner.Close()
}

// Root returns the absolute crawl root.
func (c *Crawler) Root() string {
	return c.scanner.Root()
}

// Crawl scans the tree, skipping the paths in known, and returns records for
// known paths that still exist followed by newly discovered files. Known paths
// keep their original order so sub-batches built from them stay stable across
// resumes. The second return value lists only the new paths.
//
// onFound, when non-nil, receives each new path as soon as it is discovered
// so callers can record progress. An error from onFound stops the crawl and
// is returned wrapped.
func (c *Crawler) Crawl(known []string, onFound func(relPath string) error) ([]model.FileRecord, []string, error) {
	exclude := make(map[string]bool, len(known))
	for _, p := range known {
		exclude[p] = true
	}

	c.scanner.SetExcludePaths(exclude)
	if onFound != nil {
		c.scanner.SetOnFile(func(info fileops.FileInfo) error {
			return onFound(info.Path)
		})
		defer c.scanner.SetOnFile(nil)
	}

	found, err := c.scanner.ScanDirectory()
	if err != nil {
		return nil, nil, fmt.Errorf("crawl failed: %w", err)
	}

	records := c.Records(known)

	newPaths := make([]string, 0, len(found))
	for _, info := range found {
		records = append(records, c.record(info))
		newPaths = append(newPaths, info.Path)
	}

	if c.logger != nil {
		stats := c.scanner.GetScanStats()
		c.logger.Debug("Crawl finished",
			"root", c.Root(),
			"resumed", len(known),
			"new", len(newPaths),
			"skippedDirs", stats.SkippedDirs,
		)
	}

	return records, newPaths, nil
}

// Records stats the given paths without scanning, dropping files that no
// longer exist.
func (c *Crawler) Records(paths []string) []model.FileRecord {
	records := make([]model.FileRecord, 0, len(paths))
	for _, rel := range paths {
		info, err := c.scanner.StatFile(rel)
		if err != nil {
			if c.logger != nil {
				c.logger.Debug("Previously crawled file is gone", "path", rel, "error", err)
			}
			continue
		}
		records = append(records, c.record(info))
	}
	return records
}

// ReadFile reads a crawled file, enforcing the configured size limit.
func (c *Crawler) ReadFile(rel string) ([]byte, error) {
	return c.scanner.ReadFile(rel, c.opts.MaxFileSize)
}

func (c *Crawler) record(info fileops.FileInfo) model.FileRecord {
	return model.FileRecord{
		Path:     info.Path,
		Kind:     model.KindFile,
		Size:     info.Size,
		Language: DetectLanguage(info.Path, nil),
	}
}

// DetectLanguage returns the linguist language name for a file, or "" when
// the file is not recognized. Content may be nil.
func DetectLanguage(relPath string, content []byte) string {
	return enry.GetLanguage(path.Base(relPath), content)
}

func includeFile(rel string, includeNodeModules bool) bool {
	if includeNodeModules && strings.Contains("/"+rel, "/"+nodeModules+"/") {
		return true
	}
	return !enry.IsVendor(rel)
}

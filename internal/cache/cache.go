// Package cache stores completed analyses on disk, keyed by repository path
// and optionally commit, so unchanged repositories are not analyzed twice.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"repoknow/internal/logging"
	"repoknow/internal/model"
	"repoknow/pkg/fileops"
)

// SchemaVersion is the version written to new cache files.
const SchemaVersion = 1

// ErrMiss is returned when no usable entry exists.
var ErrMiss = errors.New("cache miss")

// Metadata describes where a cached analysis came from and whether it has
// been persisted remotely.
type Metadata struct {
	ProjectPath  string    `json:"projectPath"`
	CommitHash   string    `json:"commitHash,omitempty"`
	RepositoryID string    `json:"repositoryId,omitempty"`
	ProjectID    string    `json:"projectId,omitempty"`
	SavedToAPI   bool      `json:"savedToApi"`
	CachedAt     time.Time `json:"cachedAt"`
	AnalyzedAt   time.Time `json:"analyzedAt"`
}

// Entry is the content of one cache file.
type Entry struct {
	SchemaVersion int                         `json:"schemaVersion"`
	Analysis      model.ComprehensiveAnalysis `json:"analysis"`
	Metadata      Metadata                    `json:"metadata"`
}

// Key returns the deterministic cache key for a path and optional commit.
func Key(projectPath, commit string) string {
	input := projectPath
	if commit != "" {
		input += ":" + commit
	}
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// Cache is a directory of JSON entries named by Key.
type Cache struct {
	dir    string
	logger *logging.AppLogger
}

// New creates a Cache in dir, creating the directory if needed. The logger
// may be nil.
func New(dir string, logger *logging.AppLogger) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return &Cache{dir: dir, logger: logger}, nil
}

// Get returns the entry for a path and commit. Missing, unreadable and
// incompatible entries are all reported as ErrMiss.
func (c *Cache) Get(projectPath, commit string) (*Entry, error) {
	key := Key(projectPath, commit)
	data, err := os.ReadFile(c.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMiss, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.debug("Ignoring corrupt cache entry", "key", key, "error", err)
		return nil, fmt.Errorf("%w: corrupt entry: %v", ErrMiss, err)
	}
	if entry.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("%w: schema version %d is newer than %d", ErrMiss, entry.SchemaVersion, SchemaVersion)
	}
	entry.SchemaVersion = SchemaVersion
	return &entry, nil
}

// Put writes the analysis for a path and commit, replacing any previous
// entry. CachedAt is set here; AnalyzedAt is taken from the analysis.
func (c *Cache) Put(projectPath, commit string, analysis *model.ComprehensiveAnalysis, meta Metadata) error {
	meta.ProjectPath = projectPath
	meta.CommitHash = commit
	meta.CachedAt = time.Now().UTC()
	meta.AnalyzedAt = analysis.AnalyzedAt

	entry := Entry{SchemaVersion: SchemaVersion, Analysis: *analysis, Metadata: meta}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	key := Key(projectPath, commit)
	if err := fileops.WriteFileAtomic(c.path(key), data, 0o600); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	c.debug("Cached analysis", "path", projectPath, "commit", commit, "key", key, "savedToApi", meta.SavedToAPI)
	return nil
}

// Delete removes the entry for a path and commit. A missing entry is not an
// error.
func (c *Cache) Delete(projectPath, commit string) error {
	err := os.Remove(c.path(Key(projectPath, commit)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// ClearPath removes every entry recorded for projectPath regardless of
// commit and returns how many were removed.
func (c *Cache) ClearPath(projectPath string) (int, error) {
	return c.clear(func(meta Metadata) bool { return meta.ProjectPath == projectPath })
}

// Clear removes every entry and returns how many were removed.
func (c *Cache) Clear() (int, error) {
	return c.clear(func(Metadata) bool { return true })
}

func (c *Cache) clear(match func(Metadata) bool) (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list cache: %w", err)
	}

	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		full := filepath.Join(c.dir, name)
		meta, err := readMetadata(full)
		if err != nil {
			c.debug("Unreadable cache entry", "file", name, "error", err)
			meta = Metadata{}
		}
		if !match(meta) {
			continue
		}
		if err := os.Remove(full); err != nil {
			return removed, fmt.Errorf("failed to remove cache entry %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}

func readMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, err
	}
	var head struct {
		Metadata Metadata `json:"metadata"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Metadata{}, err
	}
	return head.Metadata, nil
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func (c *Cache) debug(msg string, keyvals ...interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, keyvals...)
	}
}

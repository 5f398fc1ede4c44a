package structure

import (
	"io/fs"
	"time"

	"repoknow/internal/logging"
	"repoknow/internal/model"
)

// Builder aggregates per-file facts into a Structure. Manifests and lint
// configs are read from fsys, which is rooted at the repository checkout.
type Builder struct {
	fsys   fs.FS
	logger *logging.AppLogger
}

// NewBuilder creates a Builder reading from fsys. The logger may be nil.
func NewBuilder(fsys fs.FS, logger *logging.AppLogger) *Builder {
	return &Builder{fsys: fsys, logger: logger}
}

// Build derives the folder tree, architecture, coding standards,
// dependencies, entry points and linting tools for a repository.
func (b *Builder) Build(files []model.FileRecord, repo model.RepositoryInfo) model.Structure {
	start := time.Now()

	deps, facts := b.readDependencies()
	s := model.Structure{
		FolderTree:   BuildFolderTree(repo.Name, files),
		Architecture: DetectArchitecture(files, deps),
		CodingStandards: inferCodingStandards(standardsInput{
			files:      files,
			deps:       deps,
			modulePath: facts.modulePath,
		}),
		Dependencies: deps,
		EntryPoints:  EntryPoints(files, facts.pkg),
		Linting:      b.DetectLinting(),
	}

	if b.logger != nil {
		b.logger.Debug("Structure built",
			"files", len(files),
			"layers", len(s.Architecture.Layers),
			"patterns", len(s.Architecture.Patterns),
			"manifests", len(deps.Manifests),
			"linters", len(s.Linting))
		b.logger.LogPerformance("structure.Build", start)
	}
	return s
}

func (b *Builder) debug(msg string, keyvals ...interface{}) {
	if b.logger != nil {
		b.logger.Debug(msg, keyvals...)
	}
}

func (b *Builder) warn(msg string, keyvals ...interface{}) {
	if b.logger != nil {
		b.logger.Warn(msg, keyvals...)
	}
}

package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"repoknow/internal/logging"
	"repoknow/pkg/fileops"
)

// SchemaVersion is the version written to new checkpoint files.
const SchemaVersion = 1

const fileExt = ".json"

var (
	// ErrNotFound is returned when no checkpoint matches.
	ErrNotFound = errors.New("checkpoint not found")
	// ErrIncompatibleSchema is returned for files written by a newer version.
	ErrIncompatibleSchema = errors.New("incompatible checkpoint schema")
	// ErrInvalidID is returned for ids that are not generated by GenerateID.
	ErrInvalidID = errors.New("invalid checkpoint id")
)

// GenerateID returns a new unique checkpoint id.
func GenerateID() string {
	return uuid.NewString()
}

// Store keeps one JSON file per checkpoint id in a directory. A checkpoint
// has a single writer; concurrent runs against one id are not guarded.
type Store struct {
	dir    string
	logger *logging.AppLogger
}

// NewStore creates a Store in dir, creating the directory if needed.
func NewStore(dir string, logger *logging.AppLogger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("checkpoint directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory %s: %w", dir, err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the directory holding checkpoint files.
func (s *Store) Dir() string {
	return s.dir
}

// Create starts a new in-progress checkpoint for projectPath and persists it.
func (s *Store) Create(projectPath string) (*Checkpoint, error) {
	cp := New(GenerateID(), projectPath)
	if err := s.Save(cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// Save overwrites the on-disk record of cp atomically.
func (s *Store) Save(cp *Checkpoint) error {
	if err := validateID(cp.ID); err != nil {
		return err
	}
	cp.SchemaVersion = SchemaVersion
	cp.LastUpdated = time.Now().UTC()
	if cp.Steps == nil {
		cp.Steps = make(map[string]*Step)
	}
	if cp.Errors == nil {
		cp.Errors = []ErrorEntry{}
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint %s: %w", cp.ID, err)
	}
	if err := fileops.WriteFileAtomic(s.path(cp.ID), data, 0o600); err != nil {
		return fmt.Errorf("failed to write checkpoint %s: %w", cp.ID, err)
	}

	if s.logger != nil {
		s.logger.Debug("Checkpoint saved", "id", cp.ID, "step", cp.CurrentStep, "status", cp.Status)
	}
	return nil
}

// Load reads the checkpoint with the given id.
func (s *Store) Load(id string) (*Checkpoint, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", id, err)
	}
	return decode(data)
}

// LoadLatest returns the most recently updated checkpoint for projectPath.
func (s *Store) LoadLatest(projectPath string) (*Checkpoint, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, cp := range all {
		if cp.ProjectPath == projectPath {
			return cp, nil
		}
	}
	return nil, fmt.Errorf("%w for %s", ErrNotFound, projectPath)
}

// List returns all readable checkpoints, most recently updated first.
// Unreadable files are skipped.
func (s *Store) List() ([]*Checkpoint, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	var out []*Checkpoint
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		cp, err := s.Load(strings.TrimSuffix(name, fileExt))
		if err != nil {
			if s.logger != nil {
				s.logger.Debug("Skipping unreadable checkpoint", "file", name, "error", err)
			}
			continue
		}
		out = append(out, cp)
	}

	slices.SortFunc(out, func(a, b *Checkpoint) int {
		return b.LastUpdated.Compare(a.LastUpdated)
	})
	return out, nil
}

// Delete removes the checkpoint with the given id.
func (s *Store) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	err := os.Remove(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint %s: %w", id, err)
	}
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+fileExt)
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// legacyCheckpoint captures fields of unversioned files that moved.
type legacyCheckpoint struct {
	RepositoryID string `json:"repositoryId"`
	ProjectID    string `json:"projectId"`
}

// decode parses a checkpoint file, migrating unversioned files in memory.
func decode(data []byte) (*Checkpoint, error) {
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint: %w", err)
	}
	if cp.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("%w: version %d is newer than %d", ErrIncompatibleSchema, cp.SchemaVersion, SchemaVersion)
	}

	if cp.SchemaVersion == 0 {
		var legacy legacyCheckpoint
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("failed to parse legacy checkpoint: %w", err)
		}
		if cp.Remote.RepositoryID == "" {
			cp.Remote.RepositoryID = legacy.RepositoryID
		}
		if cp.Remote.ProjectID == "" {
			cp.Remote.ProjectID = legacy.ProjectID
		}
		if cp.Status == "" {
			cp.Status = StatusInProgress
		}
		cp.SchemaVersion = SchemaVersion
	}

	if cp.Steps == nil {
		cp.Steps = make(map[string]*Step)
	}
	for name, step := range cp.Steps {
		if step == nil {
			cp.Steps[name] = &Step{}
		}
	}
	if cp.Errors == nil {
		cp.Errors = []ErrorEntry{}
	}
	return &cp, nil
}

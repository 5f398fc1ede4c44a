package pipeline

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Options are the invocation parameters of one run.
type Options struct {
	// Path is the working tree to analyze.
	Path string `json:"path" validate:"required"`
	// RepositoryID and ProjectID are remote ids to reuse when they still
	// resolve.
	RepositoryID string `json:"repositoryId,omitempty"`
	ProjectID    string `json:"projectId,omitempty"`
	// DeepAnalysis enables model-generated insights.
	DeepAnalysis       bool `json:"deepAnalysis"`
	IncludeNodeModules bool `json:"includeNodeModules"`
	// UseCache reads and writes the analysis cache.
	UseCache bool `json:"useCache"`
	// ForceRefresh ignores both the cache and any earlier checkpoint.
	ForceRefresh bool `json:"forceRefresh"`
	// Resume continues the checkpoint named by CheckpointID, or the latest
	// one for Path when CheckpointID is empty.
	Resume       bool   `json:"resume"`
	CheckpointID string `json:"checkpointId,omitempty" validate:"omitempty,uuid"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the options and that Path is an existing directory.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid options: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid options: %w", err)
	}

	info, err := os.Stat(o.Path)
	if err != nil {
		return fmt.Errorf("invalid options: cannot access %s: %w", o.Path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("invalid options: %s is not a directory", o.Path)
	}
	return nil
}

// resuming reports whether an earlier checkpoint should be continued.
func (o Options) resuming() bool {
	return o.Resume && !o.ForceRefresh
}

// cacheReads reports whether a cached analysis may short-circuit the run.
func (o Options) cacheReads() bool {
	return o.UseCache && !o.ForceRefresh
}

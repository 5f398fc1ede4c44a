package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"
)

// Status is the lifecycle state of a checkpoint.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusPaused     Status = "paused"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid checkpoint status transition")

// transitions lists the allowed status changes. Failed and paused runs may be
// resumed; completed is terminal.
var transitions = map[Status][]Status{
	StatusInProgress: {StatusCompleted, StatusFailed, StatusPaused},
	StatusFailed:     {StatusInProgress},
	StatusPaused:     {StatusInProgress},
}

// Batch tracks one sub-category of a batch step. Keys identify the saved
// items and IDs the remote records created for them, in the same order.
type Batch struct {
	Saved int      `json:"saved"`
	Total int      `json:"total"`
	Keys  []string `json:"keys,omitempty"`
	IDs   []string `json:"ids"`
}

// Remaining returns how many items of the batch are still unsaved.
func (b *Batch) Remaining() int {
	if b.Total <= b.Saved {
		return 0
	}
	return b.Total - b.Saved
}

// Record marks the item key as saved under the remote id.
func (b *Batch) Record(key, id string) {
	b.Keys = append(b.Keys, key)
	b.IDs = append(b.IDs, id)
	b.Saved++
}

// Done reports whether the item key has already been saved.
func (b *Batch) Done(key string) bool {
	return slices.Contains(b.Keys, key)
}

// Step is the resumable record of one pipeline step. Items holds the paths
// processed by partial-list steps; Batches holds sub-categories of batch
// steps; Data holds any other step output.
type Step struct {
	Completed   bool              `json:"completed"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
	Items       []string          `json:"items,omitempty"`
	Batches     map[string]*Batch `json:"batches,omitempty"`
	RemoteID    string            `json:"remoteId,omitempty"`
	Data        json.RawMessage   `json:"data,omitempty"`
}

// ErrorEntry is one entry of the checkpoint's error log.
type ErrorEntry struct {
	Step      string    `json:"step"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RemoteIDs are the knowledge base identifiers resolved by the run.
type RemoteIDs struct {
	RepositoryID string `json:"repositoryId,omitempty"`
	ProjectID    string `json:"projectId,omitempty"`
}

// Checkpoint is the durable progress record of one pipeline run.
type Checkpoint struct {
	SchemaVersion int              `json:"schemaVersion"`
	ID            string           `json:"checkpointId"`
	ProjectPath   string           `json:"projectPath"`
	Status        Status           `json:"status"`
	CurrentStep   string           `json:"currentStep"`
	Steps         map[string]*Step `json:"steps"`
	Remote        RemoteIDs        `json:"remoteIds"`
	Errors        []ErrorEntry     `json:"errors"`
	CreatedAt     time.Time        `json:"createdAt"`
	LastUpdated   time.Time        `json:"lastUpdated"`
}

// New returns an in-progress checkpoint for projectPath.
func New(id, projectPath string) *Checkpoint {
	now := time.Now().UTC()
	return &Checkpoint{
		SchemaVersion: SchemaVersion,
		ID:            id,
		ProjectPath:   projectPath,
		Status:        StatusInProgress,
		Steps:         make(map[string]*Step),
		Errors:        []ErrorEntry{},
		CreatedAt:     now,
		LastUpdated:   now,
	}
}

// Transition changes the status, rejecting moves out of a terminal state.
func (c *Checkpoint) Transition(to Status) error {
	if c.Status == to {
		return nil
	}
	if !slices.Contains(transitions[c.Status], to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, c.Status, to)
	}
	c.Status = to
	return nil
}

// Step returns the record for name, creating it when missing.
func (c *Checkpoint) Step(name string) *Step {
	if c.Steps == nil {
		c.Steps = make(map[string]*Step)
	}
	step, ok := c.Steps[name]
	if !ok {
		step = &Step{}
		c.Steps[name] = step
	}
	return step
}

// IsCompleted reports whether name has been marked completed.
func (c *Checkpoint) IsCompleted(name string) bool {
	step, ok := c.Steps[name]
	return ok && step.Completed
}

// Begin records name as the current step.
func (c *Checkpoint) Begin(name string) {
	c.CurrentStep = name
	c.Step(name)
}

// Complete marks name as completed.
func (c *Checkpoint) Complete(name string) {
	step := c.Step(name)
	now := time.Now().UTC()
	step.Completed = true
	step.CompletedAt = &now
}

// SetData stores v as the step's data.
func (c *Checkpoint) SetData(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode data for step %s: %w", name, err)
	}
	c.Step(name).Data = data
	return nil
}

// Data decodes the step's data into v and reports whether any was present.
func (c *Checkpoint) Data(name string, v any) (bool, error) {
	step, ok := c.Steps[name]
	if !ok || len(step.Data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(step.Data, v); err != nil {
		return false, fmt.Errorf("failed to decode data for step %s: %w", name, err)
	}
	return true, nil
}

// AddItems merges paths into a partial-list step, keeping first-seen order.
func (c *Checkpoint) AddItems(name string, items ...string) {
	step := c.Step(name)
	for _, item := range items {
		if !slices.Contains(step.Items, item) {
			step.Items = append(step.Items, item)
		}
	}
}

// Batch returns the sub-category record of a batch step, creating it when
// missing. total is updated when positive.
func (c *Checkpoint) Batch(name, category string, total int) *Batch {
	step := c.Step(name)
	if step.Batches == nil {
		step.Batches = make(map[string]*Batch)
	}
	b, ok := step.Batches[category]
	if !ok {
		b = &Batch{IDs: []string{}}
		step.Batches[category] = b
	}
	if total > 0 {
		b.Total = total
	}
	return b
}

// RecordError appends err to the error log.
func (c *Checkpoint) RecordError(step string, err error) {
	if err == nil {
		return
	}
	c.Errors = append(c.Errors, ErrorEntry{
		Step:      step,
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
	})
}

// StepSummary is a flattened view of a step for progress reporting.
type StepSummary struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
	Items     int    `json:"items,omitempty"`
	Saved     int    `json:"saved,omitempty"`
	Total     int    `json:"total,omitempty"`
}

// Summary lists steps in the given order followed by any other recorded
// steps sorted by name.
func (c *Checkpoint) Summary(order []string) []StepSummary {
	names := slices.Clone(order)
	var extra []string
	for name := range c.Steps {
		if !slices.Contains(order, name) {
			extra = append(extra, name)
		}
	}
	slices.Sort(extra)
	names = append(names, extra...)

	out := make([]StepSummary, 0, len(names))
	for _, name := range names {
		s := StepSummary{Name: name}
		if step, ok := c.Steps[name]; ok {
			s.Completed = step.Completed
			s.Items = len(step.Items)
			for _, b := range step.Batches {
				s.Saved += b.Saved
				s.Total += b.Total
			}
		}
		out = append(out, s)
	}
	return out
}

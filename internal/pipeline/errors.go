package pipeline

import (
	"errors"
	"fmt"
)

// ErrPreconditionFailed marks failures of the repository and project
// resolution steps.
var ErrPreconditionFailed = errors.New("precondition step failed")

// StepError is a failure of one step. Non-precondition step errors are
// recorded in the checkpoint and the run continues.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// FatalError aborts a run. The checkpoint, when one exists, is marked failed
// before a FatalError is returned so the run can be resumed.
type FatalError struct {
	CheckpointID string
	Err          error
}

func (e *FatalError) Error() string {
	if e.CheckpointID == "" {
		return fmt.Sprintf("analysis failed: %v", e.Err)
	}
	return fmt.Sprintf("analysis failed (checkpoint %s): %v", e.CheckpointID, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err aborted the run.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

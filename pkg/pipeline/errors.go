package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCheckpointConflict marks a checkpoint write carrying a stage index
	// lower than the stored one. The write is rejected; the stored
	// checkpoint is left untouched. Indicates a stale or duplicate
	// execution, not corruption.
	ErrCheckpointConflict = errors.New("pipeline: checkpoint conflict, stale stage index")

	// ErrRunCancelled is returned when a run is cancelled between stages,
	// or when a stage result arrives after cancellation and is discarded.
	ErrRunCancelled = errors.New("pipeline: run cancelled")

	// ErrRunNotFound is returned by Resume when no checkpoint exists for the run.
	ErrRunNotFound = errors.New("pipeline: run not found")

	// ErrUnknownField is returned when writing a field the definition does not declare.
	ErrUnknownField = errors.New("pipeline: unknown run state field")
)

// InvalidRunStateError is fatal at run start: required fields are missing and
// no stage has been executed.
type InvalidRunStateError struct {
	Missing []string
}

func (e *InvalidRunStateError) Error() string {
	return fmt.Sprintf("pipeline: invalid run state, missing %s", strings.Join(e.Missing, ", "))
}

// StageError reports which stage failed and why. The run's checkpoint keeps
// every output produced before the failure.
type StageError struct {
	Stage string
	Index int
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: stage %q (index %d) failed: %v", e.Stage, e.Index, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidInput rejects a bad user request before any stage runs.
var ErrInvalidInput = errors.New("invalid input")

// SchemaViolationError reports a state write that failed an entity
// invariant. The write never partially applies.
type SchemaViolationError struct {
	Stage PipelineStage
	Err   error
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("schema violation in stage %s: %v", e.Stage, e.Err)
}

func (e *SchemaViolationError) Unwrap() error { return e.Err }

// TransientError marks a collaborator failure worth retrying (timeout,
// rate limit, 5xx-equivalent).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable. A nil err returns nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// PermanentError marks a collaborator failure that retrying cannot fix
// (invalid argument, permanent not-found).
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as non-retryable. A nil err returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// LoopExhaustedError reports that the refinement loop reached its
// iteration cap without a stable candidate.
type LoopExhaustedError struct {
	Iterations int
}

func (e *LoopExhaustedError) Error() string {
	return fmt.Sprintf("refinement loop exhausted after %d iterations", e.Iterations)
}

// StageFailureError is any stage's unrecoverable error. It transitions the
// run to StageFailed and halts the sequencer.
type StageFailureError struct {
	Stage PipelineStage
	Err   error
}

func (e *StageFailureError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageFailureError) Unwrap() error { return e.Err }

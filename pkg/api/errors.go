package api

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by persisters when no checkpoint exists for
	// the requested application identifier.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrHalted is returned when stepping an application whose pointer has
	// reached the halted sentinel.
	ErrHalted = errors.New("application is halted")

	// ErrNoProgress is returned when Run would return without having
	// executed a single action and without hitting a requested halt point.
	// It almost always indicates that the halting conditions can never be
	// reached from the current pointer.
	ErrNoProgress = errors.New("run made no progress")
)

// KeyNotFoundError reports a read of a state field that is absent, either by
// an action or by a transition condition.
type KeyNotFoundError struct {
	Key string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("state key not found: %q", e.Key)
}

// UndeclaredWriteError reports an action that modified or deleted fields
// outside its declared write-set. This is a programmer error in the action
// and is surfaced, never swallowed.
type UndeclaredWriteError struct {
	Action string
	Keys   []string
}

func (e *UndeclaredWriteError) Error() string {
	return fmt.Sprintf("action %q wrote undeclared fields: %s", e.Action, strings.Join(e.Keys, ", "))
}

// NoTransitionError reports that every outgoing condition of an action
// evaluated false and no default transition exists. This typically indicates
// a modeling gap in the graph rather than a runtime fault.
type NoTransitionError struct {
	From string
}

func (e *NoTransitionError) Error() string {
	return fmt.Sprintf("no transition matched from action %q", e.From)
}

// MissingInputsError reports that the next action declares runtime inputs
// that the current Step/Run call did not supply. Run treats this as an
// awaiting-input pause rather than a failure; callers use it to drive
// human-in-the-loop flows.
type MissingInputsError struct {
	Action  string
	Missing []string
}

func (e *MissingInputsError) Error() string {
	return fmt.Sprintf("action %q requires inputs: %s", e.Action, strings.Join(e.Missing, ", "))
}

// ActionError wraps an error raised by user action code. The application's
// State and pointer keep their pre-step values when it is returned.
type ActionError struct {
	Action   string
	Sequence int64
	Err      error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %q failed at sequence %d: %v", e.Action, e.Sequence, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// TaskError wraps the failure of a single parallel child task, carrying the
// stable task identifier so callers can correlate with tracking output.
type TaskError struct {
	TaskID string
	Err    error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %q failed: %v", e.TaskID, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

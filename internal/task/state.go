package task

import (
	"errors"
	"fmt"

	"git.home.luguber.info/inful/refbuilder/internal/build"
	ferrors "git.home.luguber.info/inful/refbuilder/internal/foundation/errors"
)

// State is the lifecycle position of a Task. Whether a finished run
// succeeded is only reported through the hooks and the returned Result.
type State string

const (
	StateQueued   State = "queued"
	StateRunning  State = "running"
	StateFinished State = "finished"
)

// ErrAlreadyRunning is returned by Run when the task is already running.
var ErrAlreadyRunning = errors.New("task is already running")

// PanicError is reported when a stage panicked.
type PanicError struct {
	StageName build.StageName
	Value     any
	Stack     []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s stage: %v", e.StageName, e.Value)
}
func (e *PanicError) Stage() build.StageName          { return e.StageName }
func (e *PanicError) Category() ferrors.ErrorCategory { return ferrors.CategoryInternal }

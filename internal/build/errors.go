package build

import (
	"context"
	"errors"
	"fmt"

	ferrors "git.home.luguber.info/inful/refbuilder/internal/foundation/errors"
)

// StageError is implemented by every typed stage error.
type StageError interface {
	error
	Stage() StageName
	Category() ferrors.ErrorCategory
}

// FetchError reports a failure to download or extract a snapshot.
type FetchError struct {
	Repository string
	Ref        string
	Op         string // download|write|extract|layout|workspace
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s@%s: %s: %v", e.Repository, e.Ref, e.Op, e.Err)
}
func (e *FetchError) Unwrap() error                   { return e.Err }
func (e *FetchError) Stage() StageName                { return StageFetch }
func (e *FetchError) Category() ferrors.ErrorCategory { return ferrors.CategoryFetch }

// OverlayError reports a failed template copy.
type OverlayError struct {
	Template string
	Target   string
	Err      error
}

func (e *OverlayError) Error() string {
	return fmt.Sprintf("overlay %s onto %s: %v", e.Template, e.Target, e.Err)
}
func (e *OverlayError) Unwrap() error                   { return e.Err }
func (e *OverlayError) Stage() StageName                { return StageOverlay }
func (e *OverlayError) Category() ferrors.ErrorCategory { return ferrors.CategoryOverlay }

// BuildError reports the first configured command that failed. ExitCode is
// -1 when the command could not be launched or was killed.
type BuildError struct {
	Command  string
	Index    int
	ExitCode int
	Output   string
	Err      error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("command %d %q exited with code %d: %v", e.Index, e.Command, e.ExitCode, e.Err)
}
func (e *BuildError) Unwrap() error                   { return e.Err }
func (e *BuildError) Stage() StageName                { return StageExecute }
func (e *BuildError) Category() ferrors.ErrorCategory { return ferrors.CategoryBuild }

// PublishError reports a missing build output or a failed copy to the destination.
type PublishError struct {
	Source      string
	Destination string
	Err         error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s to %s: %v", e.Source, e.Destination, e.Err)
}
func (e *PublishError) Unwrap() error                   { return e.Err }
func (e *PublishError) Stage() StageName                { return StagePublish }
func (e *PublishError) Category() ferrors.ErrorCategory { return ferrors.CategoryPublish }

// ErrEmptyArchive is the cause of a FetchError when the remote returned no data.
var ErrEmptyArchive = errors.New("archive payload is empty")

// ErrMissingOutput is the cause of a PublishError when the build directory is absent.
var ErrMissingOutput = errors.New("build output directory does not exist")

// StageOf returns the stage that produced err, if any.
func StageOf(err error) (StageName, bool) {
	var se StageError
	if errors.As(err, &se) {
		return se.Stage(), true
	}
	return "", false
}

// ResultFor classifies a stage outcome for metrics and events.
func ResultFor(err error) StageResult {
	switch {
	case err == nil:
		return StageResultSuccess
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StageResultCanceled
	default:
		return StageResultFatal
	}
}

package build

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/refbuilder/internal/foundation/errors"
)

func TestStageOf(t *testing.T) {
	cases := []struct {
		err      error
		stage    StageName
		category ferrors.ErrorCategory
	}{
		{&FetchError{Repository: "acme/site", Ref: "main", Op: "download", Err: ErrEmptyArchive}, StageFetch, ferrors.CategoryFetch},
		{&OverlayError{Template: "t", Target: "s", Err: errors.New("eperm")}, StageOverlay, ferrors.CategoryOverlay},
		{&BuildError{Command: "false", Index: 1, ExitCode: 1, Err: errors.New("exit status 1")}, StageExecute, ferrors.CategoryBuild},
		{&PublishError{Source: "dist", Destination: "/srv", Err: ErrMissingOutput}, StagePublish, ferrors.CategoryPublish},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("task: %w", tc.err)
		got, ok := StageOf(wrapped)
		require.True(t, ok)
		require.Equal(t, tc.stage, got)
		require.Equal(t, tc.category, ferrors.GetCategory(wrapped))
	}

	_, ok := StageOf(errors.New("plain"))
	require.False(t, ok)
}

func TestBuildErrorMessage(t *testing.T) {
	err := &BuildError{Command: "npm run build", Index: 1, ExitCode: 2, Err: errors.New("exit status 2")}
	require.Equal(t, `command 1 "npm run build" exited with code 2: exit status 2`, err.Error())
}

func TestSentinelsUnwrap(t *testing.T) {
	err := error(&PublishError{Source: "dist", Destination: "/srv", Err: ErrMissingOutput})
	require.ErrorIs(t, err, ErrMissingOutput)
}

func TestResultFor(t *testing.T) {
	require.Equal(t, StageResultSuccess, ResultFor(nil))
	require.Equal(t, StageResultCanceled, ResultFor(fmt.Errorf("x: %w", context.Canceled)))
	require.Equal(t, StageResultFatal, ResultFor(errors.New("boom")))
}

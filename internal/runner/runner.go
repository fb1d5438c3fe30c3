// Package runner executes a repository's build commands in order.
package runner

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/refbuilder/internal/build"
	"git.home.luguber.info/inful/refbuilder/internal/command"
	"git.home.luguber.info/inful/refbuilder/internal/logfields"
)

// Environment variables injected into every command of a preview build.
const (
	EnvPreviewID           = "PREVIEW_ID"
	EnvRefbuilderPreviewID = "REFBUILDER_PREVIEW_ID"
)

// PreviewEnv returns the environment overlay for previewID. Production
// builds (empty id) get no overlay.
func PreviewEnv(previewID string) map[string]string {
	if previewID == "" {
		return nil
	}
	return map[string]string{
		EnvPreviewID:           previewID,
		EnvRefbuilderPreviewID: previewID,
	}
}

// Runner runs commands strictly in sequence through an Executor.
type Runner struct {
	exec      *command.Executor
	logger    *slog.Logger
	onCommand func(cmd string, res command.Result)
}

// New creates a Runner. A nil executor runs without a timeout.
func New(executor *command.Executor, logger *slog.Logger) *Runner {
	if executor == nil {
		executor = command.New(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{exec: executor, logger: logger}
}

// OnCommand registers fn to be called after every command, successful or not.
func (r *Runner) OnCommand(fn func(cmd string, res command.Result)) {
	r.onCommand = fn
}

// Run executes commands one after another in dir with env applied. The
// first command that fails aborts the sequence with a *build.BuildError.
// On success it returns the absolute path of dir/buildDir; the runner does
// not check that it exists.
func (r *Runner) Run(ctx context.Context, commands []string, dir, buildDir string, env map[string]string) (string, error) {
	for i, c := range commands {
		r.logger.Info("Running command", logfields.Command(c), slog.Int("index", i))

		res, err := r.exec.Run(ctx, command.Spec{
			Command: c,
			Dir:     dir,
			Env:     env,
			OnLine: func(line string) {
				r.logger.Debug(line, logfields.Command(c))
			},
		})
		if r.onCommand != nil {
			r.onCommand(c, res)
		}
		if err != nil {
			r.logger.Error("Command failed",
				logfields.Command(c),
				logfields.ExitCode(res.ExitCode),
				logfields.DurationMS(float64(res.Duration)/float64(time.Millisecond)),
				logfields.Error(err))
			return "", &build.BuildError{
				Command:  c,
				Index:    i,
				ExitCode: res.ExitCode,
				Output:   res.Output,
				Err:      err,
			}
		}
		r.logger.Info("Command finished",
			logfields.Command(c),
			logfields.ExitCode(res.ExitCode),
			logfields.DurationMS(float64(res.Duration)/float64(time.Millisecond)))
	}

	out := filepath.Join(dir, buildDir)
	abs, err := filepath.Abs(out)
	if err != nil {
		return out, nil
	}
	return abs, nil
}

// Package task runs one repository at one ref through the build pipeline:
// fetch, overlay, execute, publish, reclaim.
package task

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/refbuilder/internal/build"
	"git.home.luguber.info/inful/refbuilder/internal/command"
	"git.home.luguber.info/inful/refbuilder/internal/config"
	"git.home.luguber.info/inful/refbuilder/internal/eventstore"
	"git.home.luguber.info/inful/refbuilder/internal/fetch"
	"git.home.luguber.info/inful/refbuilder/internal/foundation"
	ferrors "git.home.luguber.info/inful/refbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/refbuilder/internal/logfields"
	"git.home.luguber.info/inful/refbuilder/internal/metrics"
	"git.home.luguber.info/inful/refbuilder/internal/notify"
	"git.home.luguber.info/inful/refbuilder/internal/overlay"
	"git.home.luguber.info/inful/refbuilder/internal/publish"
	"git.home.luguber.info/inful/refbuilder/internal/runner"
	"git.home.luguber.info/inful/refbuilder/internal/source"
	"git.home.luguber.info/inful/refbuilder/internal/tasklog"
	"git.home.luguber.info/inful/refbuilder/internal/workspace"
)

// Report describes a successful run.
type Report struct {
	Identity       string
	RunID          string
	Destination    string
	OverlayApplied bool
	Duration       time.Duration
	StageDurations map[build.StageName]time.Duration
}

// Task builds one repository at one ref. A Task may be run again after it
// finished; every run starts from a fresh working directory.
type Task struct {
	repo     build.Repository
	ref      string
	cfg      build.Config
	source   source.ArchiveSource
	identity string
	opts     options

	buf    *tasklog.Buffer
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	runID    string
	onStart  func()
	onFinish func(Report)
	onError  func(error)
}

// New validates its inputs and returns a queued Task. cfg is copied.
func New(repo build.Repository, ref string, cfg build.Config, src source.ArchiveSource, opts ...Option) (*Task, error) {
	o := options{
		root:           os.Getenv(config.EnvWorkingRoot),
		commandTimeout: config.DefaultCommandTimeout,
		shell:          config.DefaultShell,
		recorder:       metrics.NoopRecorder{},
		level:          slog.LevelDebug,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if strings.TrimSpace(o.root) == "" {
		o.root = config.DefaultWorkingRoot
	}
	if o.recorder == nil {
		o.recorder = metrics.NoopRecorder{}
	}

	if err := repo.Validate(); err != nil {
		return nil, ferrors.ValidationError("invalid repository").WithCause(err).Build()
	}
	if strings.TrimSpace(ref) == "" {
		return nil, ferrors.ValidationError("ref is required").
			WithContext("repository", repo.FullName()).
			Build()
	}
	if src == nil {
		return nil, ferrors.ValidationError("archive source is required").Build()
	}
	if !filepath.IsAbs(o.root) {
		return nil, ferrors.ValidationError("working root must be an absolute path").
			WithContext("root", o.root).
			Build()
	}
	o.root = filepath.Clean(o.root)
	if err := cfg.Validate(); err != nil {
		return nil, ferrors.ValidationError("invalid build configuration").WithCause(err).Build()
	}
	if err := publish.ValidatePreviewID(o.previewID); err != nil {
		return nil, ferrors.ValidationError("invalid preview id").WithCause(err).Build()
	}
	ws := workspace.NewManager(o.root, o.keepOnFailure, nil)
	for _, dest := range []string{cfg.Destination, publish.Resolve(cfg.Destination, o.previewID)} {
		if err := ws.CheckDestination(dest); err != nil {
			return nil, ferrors.ValidationError("unsafe destination").
				WithCause(err).
				WithContext("root", o.root).
				Build()
		}
	}

	t := &Task{
		repo:     repo,
		ref:      ref,
		cfg:      cfg.Clone(),
		source:   src,
		identity: build.Identity(repo, ref),
		opts:     o,
		buf:      tasklog.NewBuffer(),
		state:    StateQueued,
	}

	var h slog.Handler = tasklog.NewHandler(t.buf, tasklog.Options{Level: o.level, Root: o.root})
	if o.mirror != nil {
		h = tasklog.NewFanout(h, o.mirror)
	}
	attrs := []any{logfields.TaskID(t.identity), logfields.Repository(repo.FullName()), logfields.Ref(ref)}
	if o.previewID != "" {
		attrs = append(attrs, logfields.Preview(o.previewID))
	}
	t.logger = slog.New(h).With(attrs...)
	return t, nil
}

// Identity returns owner_name@ref with path separators replaced.
func (t *Task) Identity() string { return t.identity }

// Repository returns the repository this task builds.
func (t *Task) Repository() build.Repository { return t.repo }

// Ref returns the ref this task builds.
func (t *Task) Ref() string { return t.ref }

// PreviewID returns the preview id, empty for production builds.
func (t *Task) PreviewID() string { return t.opts.previewID }

// Destination returns where artifacts are published.
func (t *Task) Destination() string { return publish.Resolve(t.cfg.Destination, t.opts.previewID) }

// WorkDir returns the task's working directory below the root.
func (t *Task) WorkDir() string {
	return filepath.Join(t.opts.root, "build", t.identity)
}

// State returns the current lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// RunID returns the id of the current or most recent run.
func (t *Task) RunID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runID
}

// Log returns the task's log buffer. It is retained after the task finished.
func (t *Task) Log() *tasklog.Buffer { return t.buf }

// Lines returns a snapshot of the task log.
func (t *Task) Lines() []string { return t.buf.Lines() }

// OnStart registers fn to run once per run before any work.
func (t *Task) OnStart(fn func()) {
	t.mu.Lock()
	t.onStart = fn
	t.mu.Unlock()
}

// OnFinish registers fn to run after a successful run.
func (t *Task) OnFinish(fn func(Report)) {
	t.mu.Lock()
	t.onFinish = fn
	t.mu.Unlock()
}

// OnError registers fn to run after a failed run. It receives the typed
// stage error.
func (t *Task) OnError(fn func(error)) {
	t.mu.Lock()
	t.onError = fn
	t.mu.Unlock()
}

// Start runs the task in a new goroutine. The channel yields exactly one
// Result and is then closed.
func (t *Task) Start(ctx context.Context) <-chan foundation.Result[Report, error] {
	ch := make(chan foundation.Result[Report, error], 1)
	go func() {
		defer close(ch)
		ch <- t.Run(ctx)
	}()
	return ch
}

// Run executes the pipeline and blocks until it finished. A second Run
// while one is in flight returns ErrAlreadyRunning without firing hooks.
func (t *Task) Run(ctx context.Context) foundation.Result[Report, error] {
	t.mu.Lock()
	if t.state == StateRunning {
		t.mu.Unlock()
		return foundation.Err[Report, error](ErrAlreadyRunning)
	}
	t.state = StateRunning
	t.runID = uuid.NewString()
	rc := &runContext{
		task:   t,
		ctx:    context.WithoutCancel(ctx),
		runID:  t.runID,
		stages: make(map[build.StageName]time.Duration),
	}
	onStart, onFinish, onError := t.onStart, t.onFinish, t.onError
	t.mu.Unlock()

	rc.logger = t.logger.With(logfields.RunID(rc.runID))
	start := time.Now()
	rc.logger.Info("Task state changed", logfields.State(string(StateRunning)))
	rc.record(eventstore.NewTaskStarted(t.identity, rc.runID, eventstore.TaskStartedMeta{
		Repository:  t.repo.FullName(),
		Ref:         t.ref,
		PreviewID:   t.opts.previewID,
		Destination: t.Destination(),
	}))

	if onStart != nil {
		onStart()
	}

	report, err := t.execute(ctx, rc)
	duration := time.Since(start)
	t.opts.recorder.ObserveTaskDuration(duration)

	if err != nil {
		t.fail(rc, err, duration)
	} else {
		report.Duration = duration
		t.succeed(rc, report)
	}
	rc.logger.Info("Task state changed", logfields.State(string(StateFinished)),
		logfields.DurationMS(float64(duration)/float64(time.Millisecond)))
	rc.publish(notify.LogMessage(t.identity, rc.runID, t.buf.Lines()))

	t.mu.Lock()
	t.state = StateFinished
	t.mu.Unlock()

	if err != nil {
		if onError != nil {
			onError(err)
		}
		return foundation.Err[Report, error](err)
	}
	if onFinish != nil {
		onFinish(report)
	}
	return foundation.Ok[Report, error](report)
}

func (t *Task) succeed(rc *runContext, report Report) {
	t.opts.recorder.IncTaskOutcome(metrics.OutcomeSuccess)
	t.opts.recorder.SetLastSuccess(t.repo.FullName(), time.Now())
	rc.logger.Info("Task succeeded", logfields.Path(report.Destination))
	rc.record(eventstore.NewTaskFinished(t.identity, rc.runID, report.Destination, report.Duration))
}

func (t *Task) fail(rc *runContext, err error, duration time.Duration) {
	outcome := metrics.OutcomeFailed
	if build.ResultFor(err) == build.StageResultCanceled {
		outcome = metrics.OutcomeCanceled
	}
	t.opts.recorder.IncTaskOutcome(outcome)

	stage, _ := build.StageOf(err)
	rc.logger.Error("Task failed", logfields.Stage(string(stage)), logfields.Error(err))
	rc.record(eventstore.NewTaskFailed(t.identity, rc.runID, string(stage),
		string(ferrors.GetCategory(err)), tasklog.NewMasker(t.opts.root).String(err.Error()), duration))
}

func (t *Task) execute(ctx context.Context, rc *runContext) (report Report, err error) {
	ws := workspace.NewManager(t.opts.root, t.opts.keepOnFailure, rc.logger)
	dir, err := ws.Acquire(t.identity)
	if err != nil {
		return report, ferrors.ValidationError("invalid workspace").WithCause(err).Build()
	}
	defer func() {
		failed := err != nil
		_ = t.runStage(ctx, rc, build.StageReclaim, func() error {
			return dir.Reclaim(failed)
		})
	}()

	var snapshot string
	err = t.runStage(ctx, rc, build.StageFetch, func() error {
		var ferr error
		snapshot, ferr = fetch.New(t.source, rc.logger).Fetch(ctx, t.repo, t.ref, dir)
		return ferr
	})
	if err != nil {
		return report, err
	}

	err = t.runStage(ctx, rc, build.StageOverlay, func() error {
		var oerr error
		report.OverlayApplied, oerr = overlay.New(ws.TemplatesRoot(), rc.logger).Apply(t.repo, snapshot)
		return oerr
	})
	if err != nil {
		return report, err
	}

	var output string
	err = t.runStage(ctx, rc, build.StageExecute, func() error {
		executor := command.New(t.opts.commandTimeout)
		executor.Shell = t.opts.shell
		r := runner.New(executor, rc.logger)
		r.OnCommand(func(_ string, res command.Result) {
			t.opts.recorder.ObserveCommandDuration(res.Duration, res.ExitCode)
		})
		var rerr error
		output, rerr = r.Run(ctx, t.cfg.Commands, snapshot, t.cfg.BuildDir, runner.PreviewEnv(t.opts.previewID))
		return rerr
	})
	if err != nil {
		return report, err
	}

	err = t.runStage(ctx, rc, build.StagePublish, func() error {
		var perr error
		report.Destination, perr = publish.New(rc.logger).Publish(output, t.cfg.Destination, t.opts.previewID)
		return perr
	})
	if err != nil {
		return report, err
	}

	report.Identity = t.identity
	report.RunID = rc.runID
	report.StageDurations = rc.stages
	return report, nil
}

// runStage times fn, records its outcome and converts a panic into a
// *PanicError.
func (t *Task) runStage(ctx context.Context, rc *runContext, stage build.StageName, fn func() error) (err error) {
	logger := rc.logger.With(logfields.Stage(string(stage)))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			pe := &PanicError{StageName: stage, Value: r, Stack: debug.Stack()}
			logger.Error("Recovered from panic", slog.Any("panic", r), slog.String("stack", string(pe.Stack)))
			err = pe
		}
		d := time.Since(start)
		t.opts.recorder.ObserveStageDuration(string(stage), d)
		t.opts.recorder.IncStageResult(string(stage), metrics.ResultLabel(build.ResultFor(err)))
		if err != nil {
			logger.Error("Stage failed", logfields.DurationMS(float64(d)/float64(time.Millisecond)), logfields.Error(err))
			return
		}
		rc.stages[stage] = d
		logger.Info("Stage completed", logfields.DurationMS(float64(d)/float64(time.Millisecond)))
		rc.record(eventstore.NewStageCompleted(t.identity, rc.runID, string(stage), d))
	}()

	// Reclaim runs even for a canceled context.
	if stage != build.StageReclaim {
		if cerr := ctx.Err(); cerr != nil {
			return fmt.Errorf("%s stage not started: %w", stage, cerr)
		}
	}
	logger.Info("Stage started")
	return fn()
}

// runContext carries per-run state through the stages.
type runContext struct {
	task   *Task
	ctx    context.Context
	runID  string
	logger *slog.Logger
	stages map[build.StageName]time.Duration
}

// record persists and forwards e. Failures are only logged.
func (rc *runContext) record(e eventstore.Event, err error) {
	if err != nil {
		rc.logger.Warn("Failed to create lifecycle event", logfields.Error(err))
		return
	}
	if store := rc.task.opts.store; store != nil {
		if err := store.Append(rc.ctx, e); err != nil {
			rc.logger.Warn("Failed to persist lifecycle event", slog.String("type", e.Type()), logfields.Error(err))
		}
	}
	rc.publish(notify.FromEvent(e))
}

func (rc *runContext) publish(msg notify.Message) {
	p := rc.task.opts.notifier
	if p == nil {
		return
	}
	if err := p.Publish(rc.ctx, msg); err != nil {
		rc.logger.Warn("Failed to publish task message", slog.String("type", msg.Type), logfields.Error(err))
	}
}

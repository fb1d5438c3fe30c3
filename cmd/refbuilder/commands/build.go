package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/refbuilder/internal/build"
	"git.home.luguber.info/inful/refbuilder/internal/config"
	"git.home.luguber.info/inful/refbuilder/internal/eventstore"
	ferrors "git.home.luguber.info/inful/refbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/refbuilder/internal/logfields"
	"git.home.luguber.info/inful/refbuilder/internal/metrics"
	"git.home.luguber.info/inful/refbuilder/internal/notify"
	"git.home.luguber.info/inful/refbuilder/internal/source"
	"git.home.luguber.info/inful/refbuilder/internal/task"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Owner       string   `required:"" help:"Repository owner"`
	Repo        string   `required:"" help:"Repository name"`
	Ref         string   `required:"" help:"Branch, tag or commit to build"`
	Preview     string   `help:"Preview id; publishes to <destination>-preview/<id>"`
	Destination string   `help:"Override the configured destination"`
	Command     []string `name:"command" help:"Build command; repeat for several. Replaces the configured commands"`
	BuildDir    string   `name:"build-dir" help:"Override the configured build output directory"`
	PrintLog    bool     `name:"print-log" help:"Print the task log even when the build succeeds"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config, len(b.Command) > 0 && b.Destination != "")
	if err != nil {
		return err
	}
	root.configureLogging(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RunBuild(ctx, g, cfg, b.request())
}

func (b *BuildCmd) request() Request {
	return Request{
		Repository:  build.Repository{Owner: b.Owner, Name: b.Repo},
		Ref:         b.Ref,
		PreviewID:   b.Preview,
		Destination: b.Destination,
		Commands:    b.Command,
		BuildDir:    b.BuildDir,
		PrintLog:    b.PrintLog,
	}
}

// Request is one build invocation. Empty fields fall back to the
// repository's configuration entry.
type Request struct {
	Repository  build.Repository
	Ref         string
	PreviewID   string
	Destination string
	Commands    []string
	BuildDir    string
	PrintLog    bool
}

// buildConfig merges the request over the configured repository entry.
func (r Request) buildConfig(cfg *config.Config) (build.Config, error) {
	var bc build.Config
	if entry, ok := cfg.FindRepository(r.Repository.Owner, r.Repository.Name); ok {
		bc = entry.BuildConfig()
	} else if len(r.Commands) == 0 || r.Destination == "" {
		return bc, ferrors.ConfigError("repository is not configured").
			WithContext("repository", r.Repository.FullName()).
			WithContext("hint", "add it to repositories or pass --command and --destination").
			Build()
	}
	if len(r.Commands) > 0 {
		bc.Commands = append([]string(nil), r.Commands...)
	}
	if r.BuildDir != "" {
		bc.BuildDir = r.BuildDir
	}
	if r.Destination != "" {
		bc.Destination = r.Destination
	}
	return bc, nil
}

// RunBuild runs one task to completion with the sinks configured in cfg.
func RunBuild(ctx context.Context, g *Global, cfg *config.Config, req Request) error {
	logger := slog.Default()

	bc, err := req.buildConfig(cfg)
	if err != nil {
		return err
	}
	src, err := source.New(cfg.Source)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid source configuration").Build()
	}

	opts := []task.Option{
		task.WithRoot(cfg.WorkingRoot),
		task.WithCommandTimeout(cfg.Execution.CommandTimeout),
		task.WithShell(cfg.Execution.Shell),
		task.WithKeepOnFailure(cfg.Workspace.KeepOnFailure),
		task.WithPreview(req.PreviewID),
		task.WithMirror(logger.Handler()),
	}

	var recorder *metrics.PrometheusRecorder
	if cfg.Metrics.Textfile != "" || cfg.Metrics.Pushgateway != "" {
		recorder = metrics.NewPrometheusRecorder(nil)
		opts = append(opts, task.WithRecorder(recorder))
	}

	if cfg.Events.SQLitePath != "" {
		store, err := eventstore.NewSQLiteStore(cfg.Events.SQLitePath)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		opts = append(opts, task.WithEventStore(store))
	}

	if cfg.Events.NATSURL != "" {
		pub, err := notify.NewNATSPublisher(ctx, cfg.Events.NATSURL, cfg.Events.Subject, logger)
		if err != nil {
			logger.Warn("Event bus unavailable, continuing without notifications", logfields.Error(err))
		} else {
			defer func() {
				if err := pub.Close(); err != nil {
					logger.Warn("Failed to close event bus connection", logfields.Error(err))
				}
			}()
			opts = append(opts, task.WithNotifier(pub))
		}
	}

	t, err := task.New(req.Repository, req.Ref, bc, src, opts...)
	if err != nil {
		return err
	}

	logger.Info("Starting build task",
		logfields.TaskID(t.Identity()),
		logfields.Path(t.Destination()))
	report, runErr := t.Run(ctx).ToTuple()

	if runErr != nil || req.PrintLog {
		_, _ = fmt.Fprintf(g.Stderr, "--- task log %s ---\n", t.Identity())
		_, _ = t.Log().WriteTo(g.Stderr)
	}
	if recorder != nil {
		exportMetrics(cfg.Metrics, recorder, t.Identity(), logger)
	}
	if runErr != nil {
		return runErr
	}

	_, _ = fmt.Fprintf(g.Stdout, "Published %s@%s to %s in %s\n",
		req.Repository.FullName(), req.Ref, report.Destination, report.Duration.Round(time.Millisecond))
	return nil
}

// exportMetrics writes or pushes the collected metrics. Failures are logged
// and never change the exit status.
func exportMetrics(cfg config.MetricsConfig, recorder *metrics.PrometheusRecorder, identity string, logger *slog.Logger) {
	if cfg.Textfile != "" {
		if err := metrics.WriteTextfile(cfg.Textfile, recorder.Registry()); err != nil {
			logger.Warn("Failed to write metrics textfile", logfields.Path(cfg.Textfile), logfields.Error(err))
		}
	}
	if cfg.Pushgateway != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grouping := map[string]string{"task": identity}
		if err := metrics.Push(ctx, cfg.Pushgateway, cfg.Job, recorder.Registry(), grouping); err != nil {
			logger.Warn("Failed to push metrics", logfields.URL(cfg.Pushgateway), logfields.Error(err))
		}
	}
}

// loadConfig loads path. When allowMissing is set and the file does not
// exist the defaults are used instead.
func loadConfig(path string, allowMissing bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if allowMissing && errors.Is(err, config.ErrNotFound) {
		slog.Info("No configuration file, using defaults", logfields.Path(path))
		return config.Default(), nil
	}
	return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "load config").Build()
}

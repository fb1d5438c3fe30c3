package task

import (
	"log/slog"
	"time"

	"git.home.luguber.info/inful/refbuilder/internal/eventstore"
	"git.home.luguber.info/inful/refbuilder/internal/metrics"
	"git.home.luguber.info/inful/refbuilder/internal/notify"
)

type options struct {
	previewID      string
	root           string
	commandTimeout time.Duration
	shell          string
	keepOnFailure  bool
	recorder       metrics.Recorder
	store          eventstore.Store
	notifier       notify.Publisher
	level          slog.Leveler
	mirror         slog.Handler
}

// Option configures a Task.
type Option func(*options)

// WithPreview builds a preview: artifacts go to <destination>-preview/<id>
// and the commands see PREVIEW_ID and REFBUILDER_PREVIEW_ID.
func WithPreview(id string) Option {
	return func(o *options) { o.previewID = id }
}

// WithRoot sets the working root. It defaults to $REFBUILDER_ROOT, then /home.
func WithRoot(root string) Option {
	return func(o *options) { o.root = root }
}

// WithCommandTimeout bounds each build command. Zero disables the timeout.
func WithCommandTimeout(d time.Duration) Option {
	return func(o *options) { o.commandTimeout = d }
}

// WithShell sets the shell used to run build commands.
func WithShell(shell string) Option {
	return func(o *options) { o.shell = shell }
}

// WithKeepOnFailure keeps the working directory after a failed run.
func WithKeepOnFailure(keep bool) Option {
	return func(o *options) { o.keepOnFailure = keep }
}

func WithRecorder(r metrics.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithEventStore persists lifecycle events of every run.
func WithEventStore(s eventstore.Store) Option {
	return func(o *options) { o.store = s }
}

// WithNotifier publishes lifecycle events and the final log of every run.
func WithNotifier(p notify.Publisher) Option {
	return func(o *options) { o.notifier = p }
}

// WithLogLevel sets the minimum level recorded in the task log.
func WithLogLevel(level slog.Leveler) Option {
	return func(o *options) { o.level = level }
}

// WithMirror tees every task log record to h, typically the process logger's handler.
func WithMirror(h slog.Handler) Option {
	return func(o *options) { o.mirror = h }
}

package commands

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/refbuilder/internal/config"
	"git.home.luguber.info/inful/refbuilder/internal/eventstore"
	ferrors "git.home.luguber.info/inful/refbuilder/internal/foundation/errors"
)

// EventsCmd implements the 'events' command.
type EventsCmd struct {
	Task  string `required:"" help:"Task identity, e.g. acme_site@main"`
	RunID string `name:"run" help:"Only show events of this run id"`
}

func (e *EventsCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config, false)
	if err != nil {
		return err
	}
	root.configureLogging(cfg.Logging)
	return ListEvents(context.Background(), g.Stdout, cfg.Events, e.Task, e.RunID)
}

// ListEvents prints the stored events of taskID (optionally one run) and a
// per-run summary.
func ListEvents(ctx context.Context, w io.Writer, cfg config.EventsConfig, taskID, runID string) error {
	if cfg.SQLitePath == "" {
		return ferrors.ConfigError("events.sqlite_path is not configured").Build()
	}
	store, err := eventstore.NewSQLiteStore(cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var events []eventstore.Event
	if runID != "" {
		events, err = store.GetByRun(ctx, runID)
	} else {
		events, err = store.GetByTask(ctx, taskID)
	}
	if err != nil {
		return err
	}
	if runID != "" {
		events = filterTask(events, taskID)
	}
	if len(events) == 0 {
		_, _ = fmt.Fprintf(w, "no events for %s\n", taskID)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TIME\tRUN\tTYPE\tPAYLOAD")
	for _, ev := range events {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			ev.Timestamp().Format(time.RFC3339), ev.RunID(), ev.Type(), string(ev.Payload()))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	projection := eventstore.NewRunHistoryProjection(store, 0)
	projection.Reset(events)
	runs := append(projection.GetHistory(), projection.GetActiveRuns()...)
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.Before(runs[j].StartedAt) })

	_, _ = fmt.Fprintln(w)
	for _, run := range runs {
		_, _ = fmt.Fprintln(w, summaryLine(run))
	}
	return nil
}

func filterTask(events []eventstore.Event, taskID string) []eventstore.Event {
	out := events[:0]
	for _, ev := range events {
		if ev.TaskID() == taskID {
			out = append(out, ev)
		}
	}
	return out
}

func summaryLine(run eventstore.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %s", run.RunID, run.Status)
	if run.Duration > 0 {
		fmt.Fprintf(&b, " in %s", run.Duration.Round(time.Millisecond))
	}
	if run.Destination != "" {
		fmt.Fprintf(&b, " -> %s", run.Destination)
	}
	if run.ErrorStage != "" {
		fmt.Fprintf(&b, " (failed at %s: %s)", run.ErrorStage, run.ErrorMessage)
	}
	return b.String()
}

package tasklog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// RootPlaceholder replaces the working root inside every logged value.
const RootPlaceholder = "$ROOT"

// Options configures NewHandler.
type Options struct {
	// Level is the minimum level recorded. Defaults to slog.LevelDebug so that
	// command output is kept.
	Level slog.Leveler
	// Root is masked out of messages and attribute values when non-empty.
	Root string
}

// NewHandler returns a text handler that appends to buf.
func NewHandler(buf *Buffer, opts Options) slog.Handler {
	level := opts.Level
	if level == nil {
		level = slog.LevelDebug
	}
	masker := NewMasker(opts.Root)
	return slog.NewTextHandler(buf, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return masker.Attr(a)
		},
	})
}

// Masker replaces a root path prefix with RootPlaceholder.
type Masker struct {
	root string
}

// NewMasker returns a Masker for root. An empty root masks nothing.
func NewMasker(root string) Masker {
	root = strings.TrimRight(root, "/")
	return Masker{root: root}
}

// String masks every occurrence of the root in s.
func (m Masker) String(s string) string {
	if m.root == "" {
		return s
	}
	return strings.ReplaceAll(s, m.root, RootPlaceholder)
}

// Attr masks string-valued and error-valued attributes.
func (m Masker) Attr(a slog.Attr) slog.Attr {
	if m.root == "" {
		return a
	}
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, m.String(a.Value.String()))
	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case error:
			return slog.String(a.Key, m.String(v.Error()))
		case fmt.Stringer:
			return slog.String(a.Key, m.String(v.String()))
		}
	}
	return a
}

// Fanout sends every record to all handlers that accept its level.
type Fanout []slog.Handler

// NewFanout drops nil handlers.
func NewFanout(handlers ...slog.Handler) Fanout {
	out := make(Fanout, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

func (f Fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f Fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(Fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f Fanout) WithGroup(name string) slog.Handler {
	out := make(Fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// Package command runs a single shell command for the build runner.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultShell is used when Executor.Shell is empty.
const DefaultShell = "/bin/sh"

// DefaultMaxOutput bounds the output kept in Result.Output. Older bytes are
// dropped; every line still reaches Spec.OnLine.
const DefaultMaxOutput = 1 << 20

// ErrTimeout is returned when a command outlives Executor.Timeout.
var ErrTimeout = errors.New("command timed out")

// Spec describes one command invocation.
type Spec struct {
	Command string
	Dir     string
	// Env overlays the process environment; entries here win.
	Env map[string]string
	// OnLine receives every complete output line (stdout and stderr interleaved).
	OnLine func(line string)
}

// Result is the outcome of one command. ExitCode is -1 when the process
// could not be started or was killed.
type Result struct {
	ExitCode int
	Output   string
	Duration time.Duration
}

// Executor runs commands through a shell.
type Executor struct {
	Shell     string
	Timeout   time.Duration // zero disables the per-command timeout
	MaxOutput int
}

// New returns an Executor with the default shell and the given timeout.
func New(timeout time.Duration) *Executor {
	return &Executor{Shell: DefaultShell, Timeout: timeout, MaxOutput: DefaultMaxOutput}
}

// Run executes spec.Command with `shell -c`. The returned error is nil only
// when the command exited with status zero.
func (e *Executor) Run(ctx context.Context, spec Spec) (Result, error) {
	shell := e.Shell
	if shell == "" {
		shell = DefaultShell
	}

	runCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, shell, "-c", spec.Command)
	cmd.Dir = spec.Dir
	cmd.Env = MergeEnv(os.Environ(), spec.Env)
	setPlatformProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = 5 * time.Second

	out := newLineWriter(spec.OnLine, e.maxOutput())
	cmd.Stdout = out
	cmd.Stderr = out

	start := time.Now()
	err := cmd.Run()
	out.Flush()

	result := Result{ExitCode: 0, Output: out.String(), Duration: time.Since(start)}
	if err == nil {
		return result, nil
	}

	result.ExitCode = -1
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return result, fmt.Errorf("%w after %v", ErrTimeout, e.Timeout)
	case ctx.Err() != nil:
		return result, ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, err
	}
	return result, fmt.Errorf("start command: %w", err)
}

func (e *Executor) maxOutput() int {
	if e.MaxOutput > 0 {
		return e.MaxOutput
	}
	return DefaultMaxOutput
}

// MergeEnv returns base with overlay applied. Keys present in overlay
// replace existing entries; new keys are appended in sorted order.
func MergeEnv(base []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(overlay))
	seen := make(map[string]bool, len(overlay))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if v, ok := overlay[key]; ok {
			if !seen[key] {
				out = append(out, key+"="+v)
				seen[key] = true
			}
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(overlay))
	for k := range overlay {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overlay[k])
	}
	return out
}

// lineWriter splits output into lines for a callback and keeps a bounded tail.
type lineWriter struct {
	mu      sync.Mutex
	onLine  func(string)
	partial []byte
	tail    bytes.Buffer
	limit   int
}

func newLineWriter(onLine func(string), limit int) *lineWriter {
	return &lineWriter{onLine: onLine, limit: limit}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.tail.Write(p)
	if over := w.tail.Len() - w.limit; over > 0 {
		w.tail.Next(over)
	}

	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		w.emit(string(bytes.TrimRight(w.partial[:i], "\r")))
		w.partial = w.partial[i+1:]
	}
	return len(p), nil
}

// Flush emits a trailing line without newline.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.partial) > 0 {
		w.emit(string(w.partial))
		w.partial = nil
	}
}

func (w *lineWriter) emit(line string) {
	if w.onLine != nil {
		w.onLine(line)
	}
}

func (w *lineWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tail.String()
}

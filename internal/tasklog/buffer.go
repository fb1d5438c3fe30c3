// Package tasklog captures the diagnostic output of a single build task.
//
// A Buffer is an append-only sequence of formatted lines owned by one task.
// NewHandler returns a slog.Handler that formats records the same way the
// process logger does (key=value text) and appends them to a Buffer, masking
// the controller's working root so lines can be forwarded without leaking
// host paths.
package tasklog

import (
	"io"
	"strings"
	"sync"
)

// Buffer is an ordered, append-only list of log lines. It is safe for
// concurrent use so callers can inspect it while the task is running.
type Buffer struct {
	mu    sync.Mutex
	lines []string
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append adds one line. Trailing newlines are stripped.
func (b *Buffer) Append(line string) {
	line = strings.TrimRight(line, "\n")
	b.mu.Lock()
	b.lines = append(b.lines, line)
	b.mu.Unlock()
}

// Lines returns a snapshot copy of the buffered lines.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Len returns the number of buffered lines.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}

// String joins all lines with newlines.
func (b *Buffer) String() string {
	return strings.Join(b.Lines(), "\n")
}

// WriteTo replays the buffer to w, one line per write.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, line := range b.Lines() {
		n, err := io.WriteString(w, line+"\n")
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Write implements io.Writer; every call is recorded as one line. slog's
// text handler emits one Write per record.
func (b *Buffer) Write(p []byte) (int, error) {
	b.Append(string(p))
	return len(p), nil
}

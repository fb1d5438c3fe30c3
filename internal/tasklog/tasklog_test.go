package tasklog

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferAppendAndSnapshot(t *testing.T) {
	buf := NewBuffer()
	buf.Append("one\n")
	buf.Append("two")

	lines := buf.Lines()
	require.Equal(t, []string{"one", "two"}, lines)

	lines[0] = "mutated"
	require.Equal(t, "one", buf.Lines()[0], "snapshot must not alias the buffer")
	require.Equal(t, 2, buf.Len())
}

func TestBufferWriteTo(t *testing.T) {
	buf := NewBuffer()
	buf.Append("a")
	buf.Append("b")

	var out bytes.Buffer
	n, err := buf.WriteTo(&out)
	require.NoError(t, err)
	require.Equal(t, int64(4), n)
	require.Equal(t, "a\nb\n", out.String())
}

func TestBufferConcurrentAppend(t *testing.T) {
	buf := NewBuffer()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf.Append("line")
		}()
	}
	wg.Wait()
	require.Equal(t, 50, buf.Len())
}

func TestHandlerMasksRoot(t *testing.T) {
	buf := NewBuffer()
	logger := slog.New(NewHandler(buf, Options{Root: "/srv/controller/"}))

	logger.Info("extracted /srv/controller/build/acme_site@main",
		slog.String("path", "/srv/controller/build/acme_site@main/site"),
		slog.Any("error", errors.New("open /srv/controller/templates/x: denied")))

	lines := buf.Lines()
	require.Len(t, lines, 1)
	require.NotContains(t, lines[0], "/srv/controller")
	require.Contains(t, lines[0], "$ROOT/build/acme_site@main")
	require.Contains(t, lines[0], "$ROOT/templates/x")
}

func TestHandlerLevel(t *testing.T) {
	buf := NewBuffer()
	logger := slog.New(NewHandler(buf, Options{Level: slog.LevelInfo}))
	logger.Debug("hidden")
	logger.Info("shown")
	require.Equal(t, 1, buf.Len())
	require.True(t, strings.Contains(buf.String(), "msg=shown"))
}

func TestFanout(t *testing.T) {
	taskBuf := NewBuffer()
	var mirror bytes.Buffer

	h := NewFanout(
		NewHandler(taskBuf, Options{}),
		slog.NewTextHandler(&mirror, &slog.HandlerOptions{Level: slog.LevelInfo}),
		nil,
	)
	logger := slog.New(h).With("task_id", "acme_site@main")
	logger.Debug("command output")
	logger.Info("stage finished")

	require.Equal(t, 2, taskBuf.Len())
	require.Equal(t, 1, strings.Count(mirror.String(), "\n"))
	require.Contains(t, mirror.String(), "task_id=acme_site@main")
}

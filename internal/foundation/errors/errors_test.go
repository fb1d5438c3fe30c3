package errors

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
)

type stageErr struct{ cat ErrorCategory }

func (e stageErr) Error() string           { return "stage failed" }
func (e stageErr) Category() ErrorCategory { return e.cat }

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			Fatal().
			WithContext("file", "config.yaml").
			Build()

		if err.Category() != CategoryConfig {
			t.Errorf("expected category %s, got %s", CategoryConfig, err.Category())
		}
		if !err.IsFatal() {
			t.Error("expected fatal severity")
		}
		file, ok := err.Context().GetString("file")
		if !ok || file != "config.yaml" {
			t.Errorf("expected context file=config.yaml, got %v", file)
		}
	})

	t.Run("Wrapping keeps the cause", func(t *testing.T) {
		cause := errors.New("dial tcp: refused")
		err := WrapError(cause, CategoryNetwork, "download failed").Build()
		if !errors.Is(err, cause) {
			t.Error("expected error to wrap cause")
		}
		if !strings.Contains(err.Error(), "[network:error] download failed") {
			t.Errorf("unexpected message %q", err.Error())
		}
	})
}

func TestGetCategory(t *testing.T) {
	wrapped := fmt.Errorf("run: %w", stageErr{cat: CategoryBuild})
	if got := GetCategory(wrapped); got != CategoryBuild {
		t.Errorf("expected build, got %s", got)
	}
	if got := GetCategory(errors.New("plain")); got != CategoryInternal {
		t.Errorf("expected internal fallback, got %s", got)
	}
	if !HasCategory(ConfigError("x").Build(), CategoryConfig) {
		t.Error("expected config category")
	}
}

func TestCLIErrorAdapterExitCodes(t *testing.T) {
	a := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(io.Discard, nil)))
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{ValidationError("bad flag").Build(), 2},
		{ConfigError("bad file").Build(), 7},
		{stageErr{cat: CategoryFetch}, 8},
		{stageErr{cat: CategoryBuild}, 11},
		{stageErr{cat: CategoryPublish}, 11},
		{errors.New("unknown"), 10},
	}
	for _, tc := range cases {
		if got := a.ExitCodeFor(tc.err); got != tc.want {
			t.Errorf("ExitCodeFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestCLIErrorAdapterHandleError(t *testing.T) {
	var logs, out bytes.Buffer
	a := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logs, nil)))
	a.out = &out

	code := a.HandleError(ConfigError("repository not configured").Build())
	if code != 7 {
		t.Errorf("expected exit code 7, got %d", code)
	}
	if !strings.Contains(out.String(), "Error: repository not configured") {
		t.Errorf("unexpected output %q", out.String())
	}
	if !strings.Contains(logs.String(), "category=config") {
		t.Errorf("expected category in logs, got %q", logs.String())
	}
}

package task

import (
	"io"
	"log/slog"
	"strings"
)

func slogTextHandler(w io.Writer) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
}

// countLines counts lines containing every one of subs.
func countLines(lines []string, subs ...string) int {
	n := 0
	for _, line := range lines {
		match := true
		for _, s := range subs {
			if !strings.Contains(line, s) {
				match = false
				break
			}
		}
		if match {
			n++
		}
	}
	return n
}

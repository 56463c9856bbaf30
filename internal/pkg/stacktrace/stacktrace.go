// Package stacktrace trims goroutine dumps down to this module's frames.
package stacktrace

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"
)

const marker = "/internal/"

// InternalPaths returns the "internal/<pkg>/<file>.go:<line>" frames of a raw
// stack trace, innermost first.
func InternalPaths(stack []byte) []string {
	var paths []string
	for line := range strings.SplitSeq(string(stack), "\n") {
		line = strings.TrimSpace(line)
		idx := strings.Index(line, ".go:")
		if idx == -1 {
			continue
		}
		start := strings.Index(line[:idx], marker)
		if start == -1 {
			continue
		}

		frame := line[start+1:]
		if sp := strings.IndexByte(frame, ' '); sp != -1 {
			frame = frame[:sp]
		}
		paths = append(paths, frame)
	}
	return paths
}

// LogPanic logs a recovered value with the current stack. The full dump is
// logged only when no frame of this module is on it.
func LogPanic(ctx context.Context, msg string, rvr any, args ...any) {
	stack := debug.Stack()
	args = append(args, "panic", rvr)

	if paths := InternalPaths(stack); len(paths) > 0 {
		slog.ErrorContext(ctx, msg, append(args, "stack", paths)...)
		return
	}
	slog.ErrorContext(ctx, msg, append(args, "stack", string(stack))...)
}

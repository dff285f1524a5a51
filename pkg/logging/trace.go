package logging

import "log/slog"

// EnableTrace turns on per-pointer-event debug lines. Set from log.enable_trace.
var EnableTrace = false

// TraceDefault logs at DEBUG on the default logger when EnableTrace is set.
func TraceDefault(msg string, args ...any) {
	if EnableTrace {
		slog.Debug(msg, args...)
	}
}

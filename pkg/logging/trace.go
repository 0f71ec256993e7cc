package logging

import "log/slog"

// EnableTrace turns on per-item trace logging. It stays off in normal
// runs; flip it when chasing individual telemetry frames or dispatch
// decisions without drowning regular debug output.
var EnableTrace = false

// Trace logs through the given component logger at DEBUG level when
// tracing is on.
func Trace(logger *slog.Logger, msg string, args ...any) {
	if !EnableTrace {
		return
	}
	logger.Debug(msg, args...)
}

// TraceDefault is Trace for call sites without a component logger.
func TraceDefault(msg string, args ...any) {
	if !EnableTrace {
		return
	}
	slog.Debug(msg, args...)
}

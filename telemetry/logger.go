package telemetry

import (
	"io"
	"log/slog"
	"os"
)

// Logger provides structured logging backed by log/slog.
type Logger struct {
	inner *slog.Logger
	level slog.Level
}

// NewLogger creates a new structured logger writing to stderr.
func NewLogger(verbose bool) *Logger {
	return NewLoggerWithWriter(os.Stderr, verbose)
}

// NewLoggerWithWriter creates a structured logger writing to w, for hosts
// that route logs to a file or their own sink.
func NewLoggerWithWriter(w io.Writer, verbose bool) *Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{inner: slog.New(handler), level: level}
}

// NewNopLogger creates a logger that discards all output.
func NewNopLogger() *Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return &Logger{inner: slog.New(handler), level: slog.LevelError + 1}
}

// WithFields returns a new logger with additional key-value fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{inner: l.inner.With(args...), level: l.level}
}

// Slog returns the underlying *slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return l.inner
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	l.inner.Debug(msg, keyvals...)
}

// Info logs at info level.
func (l *Logger) Info(msg string, keyvals ...interface{}) {
	l.inner.Info(msg, keyvals...)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	l.inner.Warn(msg, keyvals...)
}

// Error logs at error level.
func (l *Logger) Error(msg string, keyvals ...interface{}) {
	l.inner.Error(msg, keyvals...)
}

// Package logger provides the logging abstraction used by quickdao.
// Statements are reported through log/slog by default; any implementation of
// Logger can be plugged in.
package logger

import (
	"io"
	"log/slog"
)

// Logger is a structured logger taking key-value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NoopLogger discards everything. It is the default when no logger is set.
type NoopLogger struct{}

// Debug does nothing.
func (n *NoopLogger) Debug(_ string, _ ...any) {}

// Info does nothing.
func (n *NoopLogger) Info(_ string, _ ...any) {}

// Warn does nothing.
func (n *NoopLogger) Warn(_ string, _ ...any) {}

// Error does nothing.
func (n *NoopLogger) Error(_ string, _ ...any) {}

// SlogAdapter adapts a *slog.Logger to Logger.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter wraps logger. A nil logger uses slog.Default().
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAdapter{logger: logger}
}

// NewTextLogger writes logfmt-style records at or above level to w.
func NewTextLogger(w io.Writer, level slog.Level) *SlogAdapter {
	return NewSlogAdapter(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// With returns an adapter that adds args to every record, e.g. the table a
// repository works on.
func (a *SlogAdapter) With(args ...any) *SlogAdapter {
	return &SlogAdapter{logger: a.logger.With(args...)}
}

// Debug logs at debug level.
func (a *SlogAdapter) Debug(msg string, args ...any) {
	a.logger.Debug(msg, args...)
}

// Info logs at info level.
func (a *SlogAdapter) Info(msg string, args ...any) {
	a.logger.Info(msg, args...)
}

// Warn logs at warn level.
func (a *SlogAdapter) Warn(msg string, args ...any) {
	a.logger.Warn(msg, args...)
}

// Error logs at error level.
func (a *SlogAdapter) Error(msg string, args ...any) {
	a.logger.Error(msg, args...)
}

// OrNoop returns l, or a NoopLogger when l is nil.
func OrNoop(l Logger) Logger {
	if l == nil {
		return &NoopLogger{}
	}
	return l
}

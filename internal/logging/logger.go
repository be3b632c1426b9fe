// Package logging provides the gateway's structured logging interface,
// generalized from the teacher's agent.Logger to a slog-backed default.
package logging

import (
	"context"
	"log/slog"
	"os"
)

// Field is a structured key-value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

// F is shorthand for constructing a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Logger is the structured logging interface every component depends on.
// Each HTTP request and each planner repair attempt logs a line; backend
// calls, MCP discovery and tool-call budgets log only on failure or when a
// limit is hit, and a successful tool invocation logs nothing of its own.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
}

// SlogLogger adapts the Logger interface onto log/slog, attaching the
// caller's fields as structured attributes rather than interpolating them
// into the message.
type SlogLogger struct {
	base *slog.Logger
}

// New builds a SlogLogger writing to stderr at the given level
// ("debug"|"info"|"warn"|"error").
func New(level string) *SlogLogger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	h := slog.NewJSONHandler(os.Stderr, opts)
	return &SlogLogger{base: slog.New(h)}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func toAttrs(fields []Field) []any {
	attrs := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		attrs = append(attrs, f.Key, f.Value)
	}
	return attrs
}

func (l *SlogLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.base.DebugContext(ctx, msg, toAttrs(fields)...)
}

func (l *SlogLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.base.InfoContext(ctx, msg, toAttrs(fields)...)
}

func (l *SlogLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.base.WarnContext(ctx, msg, toAttrs(fields)...)
}

func (l *SlogLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.base.ErrorContext(ctx, msg, toAttrs(fields)...)
}

// Noop discards every log line; used in tests that don't assert on logs.
type Noop struct{}

func (Noop) Debug(context.Context, string, ...Field) {}
func (Noop) Info(context.Context, string, ...Field)  {}
func (Noop) Warn(context.Context, string, ...Field)  {}
func (Noop) Error(context.Context, string, ...Field) {}

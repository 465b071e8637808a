// Package logging provides the structured logging interface used throughout
// wsrouter. The default implementation is backed by log/slog.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger is the interface for structured logging. Plugins and adapters log
// through this interface rather than importing slog directly, so a host
// application can swap in its own implementation.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
	WithContext(ctx context.Context) Logger
}

// Field represents a single structured log field.
type Field struct {
	Key   string
	Value any
}

// Common field constructors.

func String(key, value string) Field         { return Field{Key: key, Value: value} }
func Int(key string, value int) Field        { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field    { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field      { return Field{Key: key, Value: value} }
func Duration(key string, d time.Duration) Field { return Field{Key: key, Value: d} }
func Err(err error) Field                    { return Field{Key: "error", Value: err} }
func Any(key string, value any) Field        { return Field{Key: key, Value: value} }

// SlogLogger implements Logger using log/slog.
type SlogLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

// NewSlogLogger creates a new slog-based logger.
func NewSlogLogger(opts ...LoggerOption) *SlogLogger {
	config := &loggerConfig{
		level:  slog.LevelInfo,
		output: os.Stdout,
		json:   true,
	}
	for _, opt := range opts {
		opt(config)
	}

	var handler slog.Handler
	if config.json {
		handler = slog.NewJSONHandler(config.output, &slog.HandlerOptions{Level: config.level})
	} else {
		handler = slog.NewTextHandler(config.output, &slog.HandlerOptions{Level: config.level})
	}

	return &SlogLogger{logger: slog.New(handler), ctx: context.Background()}
}

type loggerConfig struct {
	level  slog.Level
	output io.Writer
	json   bool
}

// LoggerOption configures a SlogLogger.
type LoggerOption func(*loggerConfig)

// WithLevel sets the minimum log level.
func WithLevel(level slog.Level) LoggerOption {
	return func(c *loggerConfig) { c.level = level }
}

// WithOutput sets the destination writer.
func WithOutput(w io.Writer) LoggerOption {
	return func(c *loggerConfig) { c.output = w }
}

// WithText switches to human-readable text output instead of JSON.
func WithText() LoggerOption {
	return func(c *loggerConfig) { c.json = false }
}

func (l *SlogLogger) toAttrs(fields []Field) []any {
	attrs := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		attrs = append(attrs, f.Key, f.Value)
	}
	return attrs
}

func (l *SlogLogger) Debug(msg string, fields ...Field) { l.logger.DebugContext(l.ctx, msg, l.toAttrs(fields)...) }
func (l *SlogLogger) Info(msg string, fields ...Field)  { l.logger.InfoContext(l.ctx, msg, l.toAttrs(fields)...) }
func (l *SlogLogger) Warn(msg string, fields ...Field)  { l.logger.WarnContext(l.ctx, msg, l.toAttrs(fields)...) }
func (l *SlogLogger) Error(msg string, fields ...Field) { l.logger.ErrorContext(l.ctx, msg, l.toAttrs(fields)...) }

func (l *SlogLogger) With(fields ...Field) Logger {
	return &SlogLogger{logger: l.logger.With(l.toAttrs(fields)...), ctx: l.ctx}
}

func (l *SlogLogger) WithContext(ctx context.Context) Logger {
	return &SlogLogger{logger: l.logger, ctx: ctx}
}

// NopLogger discards everything. Useful in tests.
type NopLogger struct{}

func (NopLogger) Debug(msg string, fields ...Field)        {}
func (NopLogger) Info(msg string, fields ...Field)         {}
func (NopLogger) Warn(msg string, fields ...Field)         {}
func (NopLogger) Error(msg string, fields ...Field)        {}
func (l NopLogger) With(fields ...Field) Logger            { return l }
func (l NopLogger) WithContext(ctx context.Context) Logger { return l }

// Default returns a production-shaped JSON logger writing to stdout.
func Default() Logger {
	return NewSlogLogger()
}

type loggerContextKey struct{}

// ContextWithLogger attaches a logger to ctx, for hosts that want to scope
// a logger per connection or per request and pull it back out with L.
func ContextWithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// LoggerFromContext retrieves the logger attached by ContextWithLogger, or
// nil if none was attached.
func LoggerFromContext(ctx context.Context) Logger {
	logger, _ := ctx.Value(loggerContextKey{}).(Logger)
	return logger
}

// L returns the logger attached to ctx, falling back to DefaultLogger.
func L(ctx context.Context) Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return DefaultLogger
}

// DefaultLogger is the package-level logger used where no per-connection
// logger has been configured.
var DefaultLogger Logger = NewSlogLogger()

// SetDefault replaces DefaultLogger.
func SetDefault(logger Logger) {
	DefaultLogger = logger
}

// Debug logs through DefaultLogger.
func Debug(msg string, fields ...Field) { DefaultLogger.Debug(msg, fields...) }

// Info logs through DefaultLogger.
func Info(msg string, fields ...Field) { DefaultLogger.Info(msg, fields...) }

// Warn logs through DefaultLogger.
func Warn(msg string, fields ...Field) { DefaultLogger.Warn(msg, fields...) }

// Error logs through DefaultLogger.
func Error(msg string, fields ...Field) { DefaultLogger.Error(msg, fields...) }

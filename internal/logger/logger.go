package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

var defaultLogger *slog.Logger

func init() {
	defaultLogger = New(os.Getenv("ENVIRONMENT"))
}

// New builds a logger for the given environment name.
// production writes JSON to stdout at INFO, anything else writes text to stderr at DEBUG.
func New(env string) *slog.Logger {
	if env == "production" {
		return newLogger(os.Stdout, true, slog.LevelInfo)
	}
	return newLogger(os.Stderr, false, slog.LevelDebug)
}

func newLogger(w io.Writer, jsonOut bool, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if jsonOut {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetDefault swaps the package logger, mainly for tests and the CLI's --quiet flag.
func SetDefault(l *slog.Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// Default returns the package logger.
func Default() *slog.Logger {
	return defaultLogger
}

// With returns a child logger carrying the given attributes.
func With(args ...any) *slog.Logger {
	return defaultLogger.With(args...)
}

type loggerKey struct{}

// FromContext returns the logger stored in ctx, or the default one.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return defaultLogger
	}
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return defaultLogger
}

// WithContext stores l in ctx.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

// ErrorErr logs msg at ERROR with err attached under "error".
func ErrorErr(err error, msg string, args ...any) {
	args = append(args, "error", err)
	defaultLogger.Error(msg, args...)
}

// Fatal logs and exits. Only for process entrypoints.
func Fatal(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
	os.Exit(1)
}

// FatalErr logs err and exits. Only for process entrypoints.
func FatalErr(err error, msg string, args ...any) {
	args = append(args, "error", err)
	defaultLogger.Error(msg, args...)
	os.Exit(1)
}

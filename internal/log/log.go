// Package log provides structured logging for go-autovoice.
// It wraps slog with sensible defaults for production use.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *slog.Logger
	once   sync.Once
)

// Options configures New.
type Options struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string

	// JSON selects the JSON handler instead of text.
	JSON bool

	// Output defaults to os.Stdout.
	Output io.Writer

	// File additionally writes to a rotating log file when set.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ParseLevel maps a level name to a slog.Level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger from opts without touching the global logger.
// The returned closer flushes and closes the log file, if any.
func New(opts Options) (*slog.Logger, io.Closer) {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		if file.MaxSize <= 0 {
			file.MaxSize = 32 // MB
		}
		out = io.MultiWriter(out, file)
		closer = file
	}

	handlerOpts := &slog.HandlerOptions{
		Level: ParseLevel(opts.Level),
	}
	if opts.JSON {
		return slog.New(slog.NewJSONHandler(out, handlerOpts)), closer
	}
	return slog.New(slog.NewTextHandler(out, handlerOpts)), closer
}

// Init initializes the global logger with the specified level.
// Valid levels: "debug", "info", "warn", "error"
//
// JSON output is used when GO_ENV=production. LOG_FILE adds a rotating
// file sink.
func Init(level string) {
	once.Do(func() {
		logger, _ = New(Options{
			Level: level,
			JSON:  os.Getenv("GO_ENV") == "production",
			File:  os.Getenv("LOG_FILE"),
		})
		slog.SetDefault(logger)
	})
}

// L returns the global logger instance.
func L() *slog.Logger {
	if logger == nil {
		Init("info")
	}
	return logger
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

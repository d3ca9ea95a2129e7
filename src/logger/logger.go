package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"runtime-observer/src/models"

	"github.com/lmittmann/tint"
)

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name   string
	logger *slog.Logger
	config *models.MConfig
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance writing colored output to stdout
func NewLogger(config *models.MConfig, name string) *Logger {
	return NewLoggerTo(os.Stdout, config, name)
}

// NewLoggerTo creates a Logger on an arbitrary writer
func NewLoggerTo(w io.Writer, config *models.MConfig, name string) *Logger {
	handler := tint.NewHandler(w, &tint.Options{
		Level:      ParseLevel(levelName(config)),
		TimeFormat: time.DateTime,
		NoColor:    w != os.Stdout,
	})
	return &Logger{
		name:   name,
		logger: slog.New(handler).With(slog.String("component", name)),
		config: config,
	}
}

func levelName(config *models.MConfig) string {
	if config == nil {
		return "INFO"
	}
	return config.LogLevel
}

// ParseLevel maps the configured level name onto slog levels
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "ERROR", "CRITICAL":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// -----------------------------------------------------------------------------

// Named returns a logger for a sub-component sharing the same handler
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		name:   l.name + "." + name,
		logger: l.logger.With(slog.String("sub", name)),
		config: l.config,
	}
}

// Slog exposes the underlying slog logger
func (l *Logger) Slog() *slog.Logger {
	return l.logger
}

// -----------------------------------------------------------------------------

// Debug logs diagnostic messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(slog.LevelDebug, format, args...)
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.log(slog.LevelWarn, format, args...)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(slog.LevelInfo, format, args...)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(slog.LevelError, format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.log(slog.LevelError, "CRITICAL: "+format, args...)
	os.Exit(1)
}

func (l *Logger) log(level slog.Level, format string, args ...interface{}) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}
	l.logger.Log(ctx, level, fmt.Sprintf(format, args...))
}

// Package logger provides the process-wide structured logger.
package logger

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Options configures the console logger.
type Options struct {
	Debug  bool
	Quiet  bool      // Only warnings and errors
	Output io.Writer // Defaults to os.Stderr
}

var std = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	Level:           log.InfoLevel,
})

// Init replaces the global logger. Safe to call more than once.
func Init(opts Options) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	level := log.InfoLevel
	switch {
	case opts.Debug:
		level = log.DebugLevel
	case opts.Quiet:
		level = log.WarnLevel
	}
	std = log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})
}

// With returns a child logger carrying the given key/value pairs.
func With(keyvals ...any) *log.Logger {
	return std.With(keyvals...)
}

// Default returns the global logger.
func Default() *log.Logger {
	return std
}

// Debug writes a message at DEBUG level.
func Debug(message string, keyvals ...any) {
	std.Debug(message, keyvals...)
}

// Info writes a message at INFO level.
func Info(message string, keyvals ...any) {
	std.Info(message, keyvals...)
}

// Warn writes a message at WARN level.
func Warn(message string, keyvals ...any) {
	std.Warn(message, keyvals...)
}

// Error writes a message at ERROR level.
func Error(message string, keyvals ...any) {
	std.Error(message, keyvals...)
}

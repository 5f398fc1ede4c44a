package logging

import (
	"bytes"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

type AppLogger struct {
	logger *log.Logger
	debug  bool
}

var (
	defaultLogger *AppLogger
	once          sync.Once
)

// GetDefault returns the default logger instance. It exists for CLI bootstrap;
// components receive their logger explicitly.
func GetDefault() *AppLogger {
	once.Do(func() {
		defaultLogger = NewAppLogger()
	})
	return defaultLogger
}

// Package-level convenience functions for quick logging
func Info(msg string, keyvals ...interface{}) {
	GetDefault().Info(msg, keyvals...)
}

func Warn(msg string, keyvals ...interface{}) {
	GetDefault().Warn(msg, keyvals...)
}

func Error(msg string, keyvals ...interface{}) {
	GetDefault().Error(msg, keyvals...)
}

func Debug(msg string, keyvals ...interface{}) {
	GetDefault().Debug(msg, keyvals...)
}

func LogPerformance(operation string, start time.Time) {
	GetDefault().LogPerformance(operation, start)
}

// DebugEnabled reports whether debug logging was requested through the environment.
func DebugEnabled() bool {
	return os.Getenv("REPOKNOW_DEBUG") != "" || os.Getenv("DEBUG") != ""
}

// DebugLogPath returns the file debug logs are written to.
func DebugLogPath() (string, error) {
	return xdg.StateFile(filepath.Join("repoknow", "repoknow.log"))
}

// NewAppLogger builds the process logger. Debug mode writes everything to a
// truncated file in the XDG state directory; otherwise warnings and errors go
// to stderr. Stdout is never used since the MCP server owns it.
func NewAppLogger() *AppLogger {
	debug := DebugEnabled()

	if debug {
		logPath, err := DebugLogPath()
		if err != nil {
			panic(fmt.Sprintf("Failed to resolve debug log path: %v", err))
		}

		// Clear the log file on each run for development
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			panic(fmt.Sprintf("Failed to create debug log file: %v", err))
		}

		logger := log.NewWithOptions(logFile, log.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
			Prefix:          "Repoknow",
		})
		logger.SetLevel(log.DebugLevel)

		logger.Info("Debug logging enabled", "log_file", logPath)

		return &AppLogger{logger: logger, debug: true}
	}

	return NewWriterLogger(os.Stderr, log.WarnLevel)
}

// NewWriterLogger creates a non-debug logger writing to w at the given level.
func NewWriterLogger(w io.Writer, level log.Level) *AppLogger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "Repoknow",
	})
	logger.SetLevel(level)

	return &AppLogger{
		logger: logger,
		debug:  level <= log.DebugLevel,
	}
}

// With returns a logger that adds keyvals to every entry.
func (al *AppLogger) With(keyvals ...interface{}) *AppLogger {
	return &AppLogger{
		logger: al.logger.With(keyvals...),
		debug:  al.debug,
	}
}

// Log application events
func (al *AppLogger) Info(msg string, keyvals ...interface{}) {
	al.logger.Info(msg, keyvals...)
}

func (al *AppLogger) Warn(msg string, keyvals ...interface{}) {
	al.logger.Warn(msg, keyvals...)
}

func (al *AppLogger) Error(msg string, keyvals ...interface{}) {
	al.logger.Error(msg, keyvals...)
}

func (al *AppLogger) Debug(msg string, keyvals ...interface{}) {
	if al.debug {
		al.logger.Debug(msg, keyvals...)
	}
}

// StandardLog adapts the logger for libraries that take a *log.Logger.
// Entries are logged at error level.
func (al *AppLogger) StandardLog() *stdlog.Logger {
	return al.logger.StandardLog(log.StandardLogOptions{ForceLevel: log.ErrorLevel})
}

// Pretty print any object
func (al *AppLogger) DebugObject(name string, obj interface{}) {
	if al.debug {
		al.logger.Debug("Object dump", "name", name, "object", fmt.Sprintf("%+v", obj))
	}
}

// Log performance metrics
func (al *AppLogger) LogPerformance(operation string, start time.Time) {
	if al.debug {
		duration := time.Since(start)
		al.logger.Debug("Performance",
			"operation", operation,
			"duration", duration,
		)
	}
}

// Log state transitions for debugging
func (al *AppLogger) LogStateTransition(component, from, to string) {
	if al.debug {
		al.logger.Debug("State transition",
			"component", component,
			"from", from,
			"to", to,
		)
	}
}

// Testing Helper - NewTestLogger creates a logger that writes to a buffer for testing
func NewTestLogger() (*AppLogger, *bytes.Buffer) {
	var buf bytes.Buffer

	logger := log.NewWithOptions(&buf, log.Options{
		ReportTimestamp: false, // Easier to test without timestamps
		ReportCaller:    false,
		Prefix:          "Test",
	})
	logger.SetLevel(log.DebugLevel)

	return &AppLogger{
		logger: logger,
		debug:  true,
	}, &buf
}

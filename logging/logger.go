// Package logging provides the leveled stdlib-backed logger used
// throughout the simulator for warnings and diagnostics that shouldn't
// halt a run (malformed trace lines, per-core I/O failures).
package logging

import (
	"fmt"
	logpkg "log"
	"os"
)

// Level is logging severity, ordered least to most verbose.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// Logger wraps the standard library's log.Logger with a severity filter.
// Grounded on a pre-existing logger.go in this lineage.
type Logger struct {
	level  Level
	logger *logpkg.Logger
}

// New creates a Logger writing to os.Stderr at the given level.
func New(level Level, prefix string) *Logger {
	return &Logger{
		level:  level,
		logger: logpkg.New(os.Stderr, prefix, logpkg.LstdFlags),
	}
}

// SetLevel adjusts the minimum severity that reaches the output.
func (l *Logger) SetLevel(level Level) {
	if l == nil {
		return
	}
	l.level = level
}

func (l *Logger) logf(target Level, format string, args ...any) {
	if l == nil || target > l.level {
		return
	}
	l.logger.Output(3, fmt.Sprintf(format, args...))
}

// Errorf logs at LevelError.
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }

// Warnf logs at LevelWarn.
func (l *Logger) Warnf(format string, args ...any) { l.logf(LevelWarn, format, args...) }

// Infof logs at LevelInfo.
func (l *Logger) Infof(format string, args ...any) { l.logf(LevelInfo, format, args...) }

// Debugf logs at LevelDebug.
func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }

var defaultLogger = New(LevelInfo, "")

// Default returns the package-wide logger used when a component isn't
// handed one explicitly (trace.Open falls back to it when given a nil
// logger).
func Default() *Logger {
	return defaultLogger
}

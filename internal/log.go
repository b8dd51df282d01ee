package internal

import (
	"log"
	"os"
)

// LogLevel orders logging verbosity from quiet to chatty.
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// Logger is the engine's leveled logger. Queries log one line per outcome at
// Info or Warn; Debug carries the intermediate steps of a query.
type Logger struct {
	level LogLevel
}

// NewLogger creates a logger with a fixed verbosity.
func NewLogger(level LogLevel) *Logger {
	return &Logger{level: level}
}

// NewDefaultLogger reads the verbosity from LOG_LEVEL, defaulting to Info.
// Unrecognized values keep the default so a typo never silences errors.
func NewDefaultLogger() *Logger {
	switch os.Getenv("LOG_LEVEL") {
	case "ERROR":
		return NewLogger(LogLevelError)
	case "WARN":
		return NewLogger(LogLevelWarn)
	case "DEBUG":
		return NewLogger(LogLevelDebug)
	}
	return NewLogger(LogLevelInfo)
}

func (l *Logger) logf(at LogLevel, tag, format string, args ...any) {
	if l.level >= at {
		log.Printf("["+tag+"] "+format, args...)
	}
}

// Error logs failures that need operator attention.
func (l *Logger) Error(format string, args ...any) {
	l.logf(LogLevelError, "ERROR", format, args...)
}

// Warn logs query failures that were answered through an error envelope.
func (l *Logger) Warn(format string, args ...any) {
	l.logf(LogLevelWarn, "WARN", format, args...)
}

// Info logs one line per successful query or lifecycle event.
func (l *Logger) Info(format string, args ...any) {
	l.logf(LogLevelInfo, "INFO", format, args...)
}

// Debug logs intermediate query steps.
func (l *Logger) Debug(format string, args ...any) {
	l.logf(LogLevelDebug, "DEBUG", format, args...)
}

// DefaultLogger is the process-wide logger used when a component is wired
// without an explicit one.
var DefaultLogger = NewDefaultLogger()

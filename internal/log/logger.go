// SPDX-License-Identifier: MIT
//
// Package log is the process-wide, level-gated logger. Messages carry a
// "[LEVEL]" tag after a microsecond timestamp and go to stderr unless
// redirected with SetOutput. Components prefix their messages with their
// own name, e.g. "Pipeline: ...".
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// Level defines the severity of a log message.
type Level uint32

// Constants for log levels.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the Level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// tag pads the bracketed level so messages line up.
func (l Level) tag() string {
	return fmt.Sprintf("%-8s", "["+l.String()+"]")
}

// ParseLevel converts a string (case-insensitive) to a Level.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// currentLevel holds the global level; the zero value would be Debug, so it
// is set explicitly at package init.
var currentLevel atomic.Uint32

var logger = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)

func init() {
	SetLevel(LevelInfo)
}

// SetOutput redirects all log output, e.g. to capture it in tests.
// A nil writer restores stderr.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	logger.SetOutput(w)
}

// SetLevel sets the global logging level atomically.
func SetLevel(level Level) {
	currentLevel.Store(uint32(level))
}

// GetLevel gets the current global logging level atomically.
func GetLevel() Level {
	return Level(currentLevel.Load())
}

// Enabled reports whether messages at level are written. Use it to skip
// building expensive arguments.
func Enabled(level Level) bool {
	return level >= GetLevel()
}

func logf(level Level, format string, v []any) {
	if Enabled(level) {
		logger.Printf("%s%s", level.tag(), fmt.Sprintf(format, v...))
	}
}

// Debugf logs a formatted debug message if the level is appropriate.
func Debugf(format string, v ...any) { logf(LevelDebug, format, v) }

// Infof logs a formatted info message if the level is appropriate.
func Infof(format string, v ...any) { logf(LevelInfo, format, v) }

// Warnf logs a formatted warning message if the level is appropriate.
func Warnf(format string, v ...any) { logf(LevelWarn, format, v) }

// Errorf logs a formatted error message if the level is appropriate.
func Errorf(format string, v ...any) { logf(LevelError, format, v) }

// Fatalf logs a formatted fatal message regardless of level and exits the
// process with status 1.
func Fatalf(format string, v ...any) {
	logger.Fatalf("%s%s", LevelFatal.tag(), fmt.Sprintf(format, v...))
}

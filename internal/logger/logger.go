// Package logger is the diagnostic side channel for rdeploy. User-facing
// progress goes through internal/ui; this is for the "what is it doing"
// detail shown with --verbose or RDEPLOY_DEBUG.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// DebugEnv enables debug output when set to any non-empty value.
const DebugEnv = "RDEPLOY_DEBUG"

// Logger is implemented by everything that accepts diagnostics.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Level orders diagnostics by severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// tag is the marker written after the prefix. Debug and info lines carry none.
func (l Level) tag() string {
	if l >= LevelWarn {
		return strings.ToUpper(l.String()) + ": "
	}
	return ""
}

var verbose atomic.Bool

// SetVerbose forces debug output on or off for every env logger.
func SetVerbose(v bool) {
	verbose.Store(v)
}

// DebugEnabled reports whether debug lines are currently written.
func DebugEnabled() bool {
	return verbose.Load() || os.Getenv(DebugEnv) != ""
}

// envLogger writes through the standard log package so timestamps and
// output redirection follow log's settings.
type envLogger struct {
	prefix string
}

// NewEnvLogger returns a logger tagging each line with prefix, e.g. "[rdeploy]".
func NewEnvLogger(prefix string) Logger {
	return envLogger{prefix: prefix}
}

func (l envLogger) emit(level Level, format string, args []interface{}) {
	if level == LevelDebug && !DebugEnabled() {
		return
	}
	log.Printf("%s %s%s", l.prefix, level.tag(), fmt.Sprintf(format, args...))
}

func (l envLogger) Debug(format string, args ...interface{}) { l.emit(LevelDebug, format, args) }
func (l envLogger) Info(format string, args ...interface{})  { l.emit(LevelInfo, format, args) }
func (l envLogger) Warn(format string, args ...interface{})  { l.emit(LevelWarn, format, args) }
func (l envLogger) Error(format string, args ...interface{}) { l.emit(LevelError, format, args) }

type noop struct{}

// Noop discards everything.
func Noop() Logger { return noop{} }

func (noop) Debug(string, ...interface{}) {}
func (noop) Info(string, ...interface{})  {}
func (noop) Warn(string, ...interface{})  {}
func (noop) Error(string, ...interface{}) {}

// Entry is one captured line.
type Entry struct {
	Level   Level
	Message string
}

// BufferLogger records entries in memory. Safe for concurrent use.
type BufferLogger struct {
	mu      sync.Mutex
	entries []Entry
}

func NewBufferLogger() *BufferLogger {
	return &BufferLogger{}
}

func (b *BufferLogger) record(level Level, format string, args []interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, Entry{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (b *BufferLogger) Debug(format string, args ...interface{}) { b.record(LevelDebug, format, args) }
func (b *BufferLogger) Info(format string, args ...interface{})  { b.record(LevelInfo, format, args) }
func (b *BufferLogger) Warn(format string, args ...interface{})  { b.record(LevelWarn, format, args) }
func (b *BufferLogger) Error(format string, args ...interface{}) { b.record(LevelError, format, args) }

// Entries returns a copy of everything recorded so far.
func (b *BufferLogger) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Entry(nil), b.entries...)
}

// HasLevel reports whether anything was recorded at level.
func (b *BufferLogger) HasLevel(level Level) bool {
	for _, e := range b.Entries() {
		if e.Level == level {
			return true
		}
	}
	return false
}

// Contains reports whether any message includes substr.
func (b *BufferLogger) Contains(substr string) bool {
	for _, e := range b.Entries() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Log levels accepted in the configuration and on the command line.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// LogFileName is the name of the log file created inside the log directory.
const LogFileName = "mgx3d.log"

// sink is a file-backed destination: a plain *os.File or a *RotatingWriter.
type sink interface {
	io.Writer
	Sync() error
	Close() error
}

// output is shared by a logger and all of its children, so that closing any
// of them closes the file exactly once.
type output struct {
	mu   sync.Mutex
	file sink
}

func (o *output) close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.file == nil {
		return nil
	}
	f := o.file
	o.file = nil
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync log file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

// Logger writes JSON lines through log/slog. Child loggers returned by the
// With* methods carry persistent attributes (component, object handle) and
// share the parent's output. It is safe for concurrent use.
type Logger struct {
	slog *slog.Logger
	out  *output
}

// NewLogger creates a Logger appending to {logDir}/mgx3d.log, or writing to
// stderr when logDir is empty. Unknown levels fall back to INFO.
func NewLogger(logDir string, level string) (*Logger, error) {
	if logDir == "" {
		return newLogger(os.Stderr, nil, level), nil
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(logDir, LogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return newLogger(f, f, level), nil
}

// NewWriterLogger creates a Logger writing JSON lines to w.
// The caller keeps ownership of w; Close does not close it.
func NewWriterLogger(w io.Writer, level string) *Logger {
	return newLogger(w, nil, level)
}

func newLogger(w io.Writer, file sink, level string) *Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevel(level)})
	return &Logger{
		slog: slog.New(h),
		out:  &output{file: file},
	}
}

// NopLogger returns a Logger that discards everything. Objects built
// without a logger use it.
func NopLogger() *Logger {
	return &Logger{
		slog: slog.New(slog.DiscardHandler),
		out:  &output{},
	}
}

func slogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(ParseLevel(level))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// ParseLevel normalizes level to one of ValidLevels, defaulting to INFO.
func ParseLevel(level string) string {
	level = strings.ToUpper(strings.TrimSpace(level))
	if slices.Contains(ValidLevels(), level) {
		return level
	}
	return LevelInfo
}

// ValidLevels returns the accepted level names, most verbose first.
func ValidLevels() []string {
	return []string{LevelDebug, LevelInfo, LevelWarn, LevelError}
}

// WithComponent tags the logger with the emitting component
// ("refobj", "registry", "stress", ...).
func (l *Logger) WithComponent(component string) *Logger {
	return l.With("component", component)
}

// WithObject tags the logger with an object handle and, when non-empty, its
// unique name.
func (l *Logger) WithObject(id uint64, uniqueName string) *Logger {
	if uniqueName == "" {
		return l.With("object_id", id)
	}
	return l.With("object_id", id, "unique_name", uniqueName)
}

// With returns a child logger with alternating key-value attributes. Pairs
// whose key is not a string are dropped.
func (l *Logger) With(args ...any) *Logger {
	attrs := make([]any, 0, len(args))
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			attrs = append(attrs, slog.Any(key, args[i+1]))
		}
	}
	if len(attrs) == 0 {
		return l
	}
	return &Logger{slog: l.slog.With(attrs...), out: l.out}
}

// Debug logs at DEBUG level.
func (l *Logger) Debug(msg string, args ...any) {
	l.slog.Log(context.Background(), slog.LevelDebug, msg, args...)
}

// Info logs at INFO level.
func (l *Logger) Info(msg string, args ...any) {
	l.slog.Log(context.Background(), slog.LevelInfo, msg, args...)
}

// Warn logs at WARN level.
func (l *Logger) Warn(msg string, args ...any) {
	l.slog.Log(context.Background(), slog.LevelWarn, msg, args...)
}

// Error logs at ERROR level.
func (l *Logger) Error(msg string, args ...any) {
	l.slog.Log(context.Background(), slog.LevelError, msg, args...)
}

// Enabled reports whether messages at level would be written, so hot paths
// can skip building attributes.
func (l *Logger) Enabled(level string) bool {
	return l.slog.Enabled(context.Background(), slogLevel(level))
}

// Close syncs and closes the log file. It is a no-op for loggers writing to
// stderr or to a caller-owned writer, and on every call after the first.
func (l *Logger) Close() error {
	return l.out.close()
}

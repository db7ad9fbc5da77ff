// Package logging is the process-wide structured logger. Messages carry
// key/value pairs; the CLI decides the level and destination.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu     sync.RWMutex
	level  = new(slog.LevelVar)
	logger = newLogger(os.Stderr)
)

func init() {
	level.Set(slog.LevelWarn)
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// SetOutput redirects all subsequent log output to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w)
}

// SetVerbose switches between debug and warn-and-above output.
func SetVerbose(v bool) {
	if v {
		level.Set(slog.LevelDebug)
		return
	}
	level.Set(slog.LevelWarn)
}

// SetLevel sets the minimum level from a name: debug, info, warn or error.
// Unknown names are rejected and leave the level unchanged.
func SetLevel(name string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return err
	}
	level.Set(l)
	return nil
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Debug logs at debug level.
func Debug(msg string, kv ...any) { current().Debug(msg, kv...) }

// Info logs at info level.
func Info(msg string, kv ...any) { current().Info(msg, kv...) }

// Warn logs at warn level.
func Warn(msg string, kv ...any) { current().Warn(msg, kv...) }

// Error logs at error level.
func Error(msg string, kv ...any) { current().Error(msg, kv...) }

// WarnErr logs a non-fatal failure together with its error.
func WarnErr(msg string, err error, kv ...any) {
	current().Warn(msg, append([]any{"error", err}, kv...)...)
}

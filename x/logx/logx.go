// Package logx holds the process-wide structured logger. Every record is
// tagged with the component that produced it so bring-up traces can be
// filtered per subsystem.
package logx

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// Component identifies a subsystem for log filtering.
type Component string

const (
	Board    Component = "board"
	Seq      Component = "seq"
	IRQ      Component = "irq"
	COM      Component = "com"
	Driver   Component = "driver"
	Registry Component = "registry"
)

var (
	mu     sync.RWMutex
	level  = new(slog.LevelVar)
	logger *slog.Logger
)

func init() {
	level.Set(slog.LevelWarn)
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// SetLevel sets the minimum level of the default logger.
func SetLevel(l slog.Level) { level.Set(l) }

// Level returns the current minimum level.
func Level() slog.Level { return level.Level() }

// SetLogger replaces the default logger.
func SetLogger(l *slog.Logger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}

// New returns a text logger writing to w at the shared level.
func New(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Default returns the current default logger.
func Default() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// For returns l (or the default logger when l is nil) tagged with c.
func For(l *slog.Logger, c Component) *slog.Logger {
	if l == nil {
		l = Default()
	}
	return l.With("component", string(c))
}

// Package base carries what every class driver gets from the board: a
// logger, the object registry it reports into, and the hook it uses to raise
// an interrupt vector when a host backend has work for it.
package base

import (
	"log/slog"

	"boardcode-go/board/periph"
	"boardcode-go/x/logx"
)

// Publisher is the part of the object registry drivers use.
type Publisher interface {
	Register(name string, initial any) error
	Set(name string, v any) error
}

// Env is shared by every driver of a board.
type Env struct {
	Log     *slog.Logger
	Objects Publisher
	// Raise dispatches a vector; host backends call it from their pump
	// goroutines in place of a hardware interrupt. Nil on targets where the
	// NVIC does it.
	Raise func(periph.Vector)
}

// Logger returns the driver logger tagged with the class.
func (e Env) Logger(c periph.Class) *slog.Logger {
	return logx.For(e.Log, logx.Driver).With("class", c.String())
}

// Notifier returns a func raising v, or nil.
func (e Env) Notifier(v periph.Vector) func() {
	if e.Raise == nil {
		return nil
	}
	raise := e.Raise
	return func() { raise(v) }
}

// Register registers an object when a publisher is configured.
func (e Env) Register(name string, initial any) error {
	if e.Objects == nil {
		return nil
	}
	return e.Objects.Register(name, initial)
}

// Publish updates an object when a publisher is configured. Never call it
// from an interrupt handler.
func (e Env) Publish(name string, v any) error {
	if e.Objects == nil {
		return nil
	}
	return e.Objects.Set(name, v)
}

// Results returns n nil results, the all-success Init return.
func Results(n int) []error { return make([]error, n) }

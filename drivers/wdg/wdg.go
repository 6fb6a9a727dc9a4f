// Package wdg enables and services the independent watchdog. Once enabled
// it cannot be stopped; a missed kick resets the board.
package wdg

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"boardcode-go/drivers/base"
	"boardcode-go/errcode"
	"boardcode-go/x/logx"
)

const op = "wdg"

// DefaultTimeout matches the bring-up budget of the flight loop.
const DefaultTimeout = 250 * time.Millisecond

type Backend interface {
	EnableWatchdog(timeout time.Duration) error
	Kick()
}

type Watchdog struct {
	hw      Backend
	timeout time.Duration
	log     *slog.Logger
	enabled atomic.Bool
	kicks   atomic.Uint32
}

func New(hw Backend, timeout time.Duration, env base.Env) *Watchdog {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Watchdog{hw: hw, timeout: timeout, log: logx.For(env.Log, logx.Driver).With("class", "wdg")}
}

// Enable starts the watchdog. Enabling twice is a no-op.
func (w *Watchdog) Enable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.enabled.Load() {
		return nil
	}
	if err := w.hw.EnableWatchdog(w.timeout); err != nil {
		return errcode.Wrap(errcode.InitFatal, op, err)
	}
	w.enabled.Store(true)
	w.hw.Kick()
	w.log.Info("watchdog enabled", "timeout", w.timeout)
	return nil
}

func (w *Watchdog) Enabled() bool { return w.enabled.Load() }

func (w *Watchdog) Timeout() time.Duration { return w.timeout }

// Kick services the watchdog; a no-op until enabled.
func (w *Watchdog) Kick() {
	if !w.enabled.Load() {
		return
	}
	w.hw.Kick()
	w.kicks.Add(1)
}

func (w *Watchdog) Kicks() uint32 { return w.kicks.Load() }

// Run kicks at a third of the timeout until ctx ends.
func (w *Watchdog) Run(ctx context.Context) {
	t := time.NewTicker(w.timeout / 3)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.Kick()
		}
	}
}

// Forget clears the enabled flag for a cold restart of a simulated board.
func (w *Watchdog) Forget() {
	w.enabled.Store(false)
	w.kicks.Store(0)
}

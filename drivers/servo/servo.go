// Package servo drives the PWM output bank. Pulse widths are set in the
// timer tick domain and clamped to one update period.
package servo

import (
	"context"
	"log/slog"
	"time"

	"boardcode-go/board/devtab"
	"boardcode-go/board/periph"
	"boardcode-go/drivers/base"
	"boardcode-go/errcode"
	"boardcode-go/x/mathx"
)

const op = "servo"

// Outputs is one opened output bank. SetPulse takes a compare value in
// ticks.
type Outputs interface {
	SetCompare(ch int, ticks uint16) error
	Close() error
}

type Backend interface {
	OpenServo(cfg periph.ServoConfig) (Outputs, error)
}

type State struct {
	out    Outputs
	period uint16
	pulses []time.Duration
}

type Table = devtab.Table[periph.ServoConfig, State]

type Driver struct {
	tab *Table
	hw  Backend
	env base.Env
	log *slog.Logger
}

func New(tab *Table, hw Backend, env base.Env) *Driver {
	return &Driver{tab: tab, hw: hw, env: env, log: env.Logger(periph.ClassServo)}
}

func (d *Driver) Class() periph.Class { return periph.ClassServo }

// Period returns the update period in ticks, or an error when the
// frequencies do not fit a 16-bit counter.
func Period(cfg periph.ServoConfig) (uint16, error) {
	if cfg.Tick <= 0 || cfg.Update <= 0 || cfg.Update > cfg.Tick {
		return 0, errcode.New(errcode.InvalidParams, op, cfg.Name+": tick/update")
	}
	n := int64(cfg.Tick / cfg.Update)
	if n > 0xFFFF {
		return 0, errcode.New(errcode.InvalidParams, op, cfg.Name+": period overflows counter")
	}
	return uint16(n), nil
}

func (d *Driver) Init(ctx context.Context) []error {
	errs := base.Results(d.tab.Len())
	d.tab.Each(func(i int, e *devtab.Entry[periph.ServoConfig, State]) {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			return
		}
		cfg := e.Desc()
		period, err := Period(cfg)
		if err != nil {
			errs[i] = err
			return
		}
		out, err := d.hw.OpenServo(cfg)
		if err != nil {
			errs[i] = errcode.Wrap(errcode.Of(err), op, err)
			return
		}
		st := State{out: out, period: period, pulses: make([]time.Duration, len(cfg.Channels))}
		for ch := range cfg.Channels {
			if err := set(&st, cfg, ch, cfg.InitialPulse); err != nil {
				_ = out.Close()
				errs[i] = err
				return
			}
		}
		e.State = st
		if err := d.env.Register(objectName(cfg), append([]time.Duration(nil), st.pulses...)); err != nil {
			d.log.Warn("register object", "name", cfg.Name, "err", err)
		}
		d.log.Debug("outputs armed", "name", cfg.Name, "channels", len(cfg.Channels), "period", period)
	})
	return errs
}

func objectName(cfg periph.ServoConfig) string { return "Servo/" + cfg.Name }

func set(st *State, cfg periph.ServoConfig, ch int, pulse time.Duration) error {
	if ch < 0 || ch >= len(st.pulses) {
		return errcode.New(errcode.InvalidParams, op, "channel")
	}
	ticks := int64(pulse / cfg.Tick.Period())
	ticks = mathx.Clamp(ticks, 0, int64(st.period))
	if err := st.out.SetCompare(ch, uint16(ticks)); err != nil {
		return errcode.Wrap(errcode.Error, op, err)
	}
	st.pulses[ch] = time.Duration(ticks) * cfg.Tick.Period()
	return nil
}

// Set changes the pulse width of one channel. Widths beyond the update
// period are clamped.
func (d *Driver) Set(index, ch int, pulse time.Duration) error {
	e, ok := d.tab.Ready(index)
	if !ok {
		return errcode.New(errcode.NotInitialized, op, devtab.Name(periph.ClassServo, index))
	}
	if err := set(&e.State, e.Desc(), ch, pulse); err != nil {
		return err
	}
	return d.env.Publish(objectName(e.Desc()), append([]time.Duration(nil), e.State.pulses...))
}

// Pulses returns the current widths of every channel.
func (d *Driver) Pulses(index int) ([]time.Duration, error) {
	e, ok := d.tab.Ready(index)
	if !ok {
		return nil, errcode.New(errcode.NotInitialized, op, devtab.Name(periph.ClassServo, index))
	}
	return append([]time.Duration(nil), e.State.pulses...), nil
}

// IRQHandler is a no-op; the output bank has no interrupt.
func (d *Driver) IRQHandler(int) {}

func (d *Driver) Close() {
	d.tab.Each(func(_ int, e *devtab.Entry[periph.ServoConfig, State]) {
		if e.State.out != nil {
			_ = e.State.out.Close()
			e.State.out = nil
		}
	})
}

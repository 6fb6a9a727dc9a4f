// Package gpio drives plain output groups such as status LEDs.
package gpio

import (
	"context"

	pgpio "periph.io/x/conn/v3/gpio"

	"boardcode-go/board/devtab"
	"boardcode-go/board/periph"
	"boardcode-go/drivers/base"
	"boardcode-go/errcode"
)

const op = "gpio"

// Lines is an opened output group.
type Lines interface {
	Out(pin int, l pgpio.Level) error
	Close() error
}

type Backend interface {
	OpenGPIO(cfg periph.GPIOConfig) (Lines, error)
}

type State struct {
	lines Lines
	on    []bool
}

type Table = devtab.Table[periph.GPIOConfig, State]

type Driver struct {
	tab *Table
	hw  Backend
	env base.Env
}

func New(tab *Table, hw Backend, env base.Env) *Driver {
	return &Driver{tab: tab, hw: hw, env: env}
}

func (d *Driver) Class() periph.Class { return periph.ClassGPIO }

// Init opens every group with all lines off.
func (d *Driver) Init(ctx context.Context) []error {
	errs := base.Results(d.tab.Len())
	d.tab.Each(func(i int, e *devtab.Entry[periph.GPIOConfig, State]) {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			return
		}
		cfg := e.Desc()
		lines, err := d.hw.OpenGPIO(cfg)
		if err != nil {
			errs[i] = errcode.Wrap(errcode.Of(err), op, err)
			return
		}
		st := State{lines: lines, on: make([]bool, len(cfg.Pins))}
		for p := range cfg.Pins {
			if err := lines.Out(p, level(cfg, false)); err != nil {
				errs[i] = errcode.Wrap(errcode.Error, op, err)
				return
			}
		}
		e.State = st
	})
	return errs
}

func level(cfg periph.GPIOConfig, on bool) pgpio.Level {
	return pgpio.Level(on != cfg.ActiveLow)
}

func (d *Driver) IRQHandler(int) {}

// Set drives line pin of group index on or off.
func (d *Driver) Set(index, pin int, on bool) error {
	e, ok := d.tab.Ready(index)
	if !ok {
		return errcode.New(errcode.NotInitialized, op, devtab.Name(periph.ClassGPIO, index))
	}
	if pin < 0 || pin >= len(e.State.on) {
		return errcode.New(errcode.InvalidParams, op, "pin")
	}
	if err := e.State.lines.Out(pin, level(e.Desc(), on)); err != nil {
		return errcode.Wrap(errcode.Error, op, err)
	}
	e.State.on[pin] = on
	return nil
}

func (d *Driver) Toggle(index, pin int) error {
	on, err := d.On(index, pin)
	if err != nil {
		return err
	}
	return d.Set(index, pin, !on)
}

func (d *Driver) On(index, pin int) (bool, error) {
	e, ok := d.tab.Ready(index)
	if !ok {
		return false, errcode.New(errcode.NotInitialized, op, devtab.Name(periph.ClassGPIO, index))
	}
	if pin < 0 || pin >= len(e.State.on) {
		return false, errcode.New(errcode.InvalidParams, op, "pin")
	}
	return e.State.on[pin], nil
}

func (d *Driver) Close() {
	d.tab.Each(func(_ int, e *devtab.Entry[periph.GPIOConfig, State]) {
		if e.State.lines != nil {
			_ = e.State.lines.Close()
			e.State.lines = nil
		}
	})
}

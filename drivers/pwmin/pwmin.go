// Package pwmin decodes a bank of PWM receiver inputs from timer captures.
// Each channel measures the high time between a rising and the following
// falling edge.
package pwmin

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"boardcode-go/board/devtab"
	"boardcode-go/board/periph"
	"boardcode-go/drivers/base"
	"boardcode-go/drivers/timcap"
	"boardcode-go/errcode"
)

const op = "pwmin"

type State struct {
	src    timcap.Source
	timers []periph.Timer
	chans  map[periph.TimerChannel]int
	rise   []uint16
	high   []bool
	mu     *sync.Mutex
	width  []time.Duration
	edges  [16]timcap.Edge
	caps   uint32
}

type Table = devtab.Table[periph.PWMInputConfig, State]

type Driver struct {
	tab *Table
	hw  timcap.Backend
	env base.Env
	log *slog.Logger
}

func New(tab *Table, hw timcap.Backend, env base.Env) *Driver {
	return &Driver{tab: tab, hw: hw, env: env, log: env.Logger(periph.ClassPWMInput)}
}

func (d *Driver) Class() periph.Class { return periph.ClassPWMInput }

func (d *Driver) raiser() func(periph.Timer) {
	if d.env.Raise == nil {
		return nil
	}
	raise := d.env.Raise
	return func(t periph.Timer) {
		if v, ok := t.Vector(); ok {
			raise(v)
		}
	}
}

func (d *Driver) Init(ctx context.Context) []error {
	errs := base.Results(d.tab.Len())
	d.tab.Each(func(i int, e *devtab.Entry[periph.PWMInputConfig, State]) {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			return
		}
		cfg := e.Desc()
		if len(cfg.Channels) == 0 || cfg.Tick <= 0 {
			errs[i] = errcode.New(errcode.InvalidParams, op, cfg.Name)
			return
		}
		src, err := d.hw.OpenCapture(cfg.Name, cfg.Channels, cfg.Tick, d.raiser())
		if err != nil {
			errs[i] = errcode.Wrap(errcode.Of(err), op, err)
			return
		}
		n := len(cfg.Channels)
		st := State{
			src:    src,
			timers: cfg.Timers(),
			chans:  make(map[periph.TimerChannel]int, n),
			rise:   make([]uint16, n),
			high:   make([]bool, n),
			mu:     &sync.Mutex{},
			width:  make([]time.Duration, n),
		}
		for k, ch := range cfg.Channels {
			st.chans[ch.TimerChannel] = k
		}
		e.State = st
		if err := d.env.Register(objectName(cfg), make([]time.Duration, n)); err != nil {
			d.log.Warn("register object", "name", cfg.Name, "err", err)
		}
	})
	return errs
}

func objectName(cfg periph.PWMInputConfig) string { return "PWMInput/" + cfg.Name }

// IRQHandler drains the latched captures of every timer of the bank.
// Timers of the bank share one trampoline device.
func (d *Driver) IRQHandler(index int) {
	e, err := d.tab.Entry(index)
	if err != nil || e.State.src == nil {
		return
	}
	for _, t := range e.State.timers {
		d.timer(e, t)
	}
}

// TimerHandler drains the captures of timer t only.
func (d *Driver) TimerHandler(index int, t periph.Timer) {
	e, err := d.tab.Entry(index)
	if err != nil || e.State.src == nil {
		return
	}
	d.timer(e, t)
}

func (d *Driver) timer(e *devtab.Entry[periph.PWMInputConfig, State], t periph.Timer) {
	st := &e.State
	tick := e.Desc().Tick
	for {
		n := st.src.Pending(t, st.edges[:])
		if n == 0 {
			return
		}
		st.mu.Lock()
		for _, ed := range st.edges[:n] {
			k, ok := st.chans[ed.Channel]
			if !ok {
				continue
			}
			st.caps++
			if ed.Rising {
				st.rise[k], st.high[k] = ed.Count, true
				continue
			}
			if st.high[k] {
				st.width[k] = timcap.Width(st.rise[k], ed.Count, tick)
				st.high[k] = false
			}
		}
		st.mu.Unlock()
	}
}

// Widths returns the last measured high time per channel; zero means no
// complete pulse seen yet.
func (d *Driver) Widths(index int) ([]time.Duration, error) {
	e, ok := d.tab.Ready(index)
	if !ok {
		return nil, errcode.New(errcode.NotInitialized, op, devtab.Name(periph.ClassPWMInput, index))
	}
	e.State.mu.Lock()
	defer e.State.mu.Unlock()
	return append([]time.Duration(nil), e.State.width...), nil
}

// Publish pushes the widths to the object registry.
func (d *Driver) Publish(index int) error {
	w, err := d.Widths(index)
	if err != nil {
		return err
	}
	e, _ := d.tab.Entry(index)
	return d.env.Publish(objectName(e.Desc()), w)
}

func (d *Driver) Close() {
	d.tab.Each(func(_ int, e *devtab.Entry[periph.PWMInputConfig, State]) {
		if e.State.src != nil {
			_ = e.State.src.Close()
			e.State.src = nil
		}
	})
}

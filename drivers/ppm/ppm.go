// Package ppm decodes a combined PPM stream captured on one timer channel.
// Channel widths are measured rising edge to rising edge; an interval of at
// least SyncGap ends a frame.
package ppm

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
	"boardcode-go/x/mathx"
)

const op = "ppm"

// MaxChannels bounds a frame.
const MaxChannels = 8

type State struct {
	src   timcap.Source
	last  uint16
	have  bool
	cur   [MaxChannels]time.Duration
	n     int
	bad   bool
	edges [8]timcap.Edge

	mu     *sync.Mutex
	frame  []time.Duration
	frames uint32
	errors uint32
}

type Table = devtab.Table[periph.PPMConfig, State]

type Driver struct {
	tab *Table
	hw  timcap.Backend
	env base.Env
	log *slog.Logger
}

func New(tab *Table, hw timcap.Backend, env base.Env) *Driver {
	return &Driver{tab: tab, hw: hw, env: env, log: env.Logger(periph.ClassPPM)}
}

func (d *Driver) Class() periph.Class { return periph.ClassPPM }

func (d *Driver) Init(ctx context.Context) []error {
	errs := base.Results(d.tab.Len())
	d.tab.Each(func(i int, e *devtab.Entry[periph.PPMConfig, State]) {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			return
		}
		cfg := e.Desc()
		if cfg.Tick <= 0 || cfg.SyncGap <= cfg.MaxPulse || cfg.MinPulse >= cfg.MaxPulse {
			errs[i] = errcode.New(errcode.InvalidParams, op, cfg.Name+": timing")
			return
		}
		var irq func(periph.Timer)
		if raise := d.env.Raise; raise != nil {
			v, _ := cfg.Input.Timer.Vector()
			irq = func(periph.Timer) { raise(v) }
		}
		src, err := d.hw.OpenCapture(cfg.Name, []periph.TimerPin{cfg.Input}, cfg.Tick, irq)
		if err != nil {
			errs[i] = errcode.Wrap(errcode.Of(err), op, err)
			return
		}
		e.State = State{src: src, mu: &sync.Mutex{}}
		if err := d.env.Register(objectName(cfg), []time.Duration(nil)); err != nil {
			d.log.Warn("register object", "name", cfg.Name, "err", err)
		}
	})
	return errs
}

func objectName(cfg periph.PPMConfig) string { return "PPMInput/" + cfg.Name }

func (d *Driver) IRQHandler(index int) {
	e, err := d.tab.Entry(index)
	if err != nil || e.State.src == nil {
		return
	}
	st := &e.State
	cfg := e.Desc()
	for {
		n := st.src.Pending(cfg.Input.Timer, st.edges[:])
		if n == 0 {
			return
		}
		for _, ed := range st.edges[:n] {
			if ed.Channel != cfg.Input.TimerChannel || !ed.Rising {
				continue
			}
			d.edge(st, cfg, ed.Count)
		}
	}
}

func (d *Driver) edge(st *State, cfg periph.PPMConfig, count uint16) {
	if !st.have {
		st.last, st.have = count, true
		return
	}
	w := timcap.Width(st.last, count, cfg.Tick)
	st.last = count
	if w >= cfg.SyncGap {
		st.mu.Lock()
		if st.n > 0 && !st.bad {
			st.frame = append(st.frame[:0], st.cur[:st.n]...)
			st.frames++
		} else if st.n > 0 {
			st.errors++
		}
		st.mu.Unlock()
		st.n, st.bad = 0, false
		return
	}
	if !mathx.Between(w, cfg.MinPulse, cfg.MaxPulse) || st.n == MaxChannels {
		st.bad = true
		return
	}
	st.cur[st.n] = w
	st.n++
}

// Frame returns the channels of the last valid frame.
func (d *Driver) Frame(index int) ([]time.Duration, error) {
	e, ok := d.tab.Ready(index)
	if !ok {
		return nil, errcode.New(errcode.NotInitialized, op, devtab.Name(periph.ClassPPM, index))
	}
	e.State.mu.Lock()
	defer e.State.mu.Unlock()
	return append([]time.Duration(nil), e.State.frame...), nil
}

// Stats returns good and rejected frame counts.
func (d *Driver) Stats(index int) (frames, rejected uint32) {
	e, err := d.tab.Entry(index)
	if err != nil || e.State.mu == nil {
		return 0, 0
	}
	e.State.mu.Lock()
	defer e.State.mu.Unlock()
	return e.State.frames, e.State.errors
}

func (d *Driver) Publish(index int) error {
	f, err := d.Frame(index)
	if err != nil {
		return err
	}
	e, _ := d.tab.Entry(index)
	return d.env.Publish(objectName(e.Desc()), f)
}

func (d *Driver) Close() {
	d.tab.Each(func(_ int, e *devtab.Entry[periph.PPMConfig, State]) {
		if e.State.src != nil {
			_ = e.State.src.Close()
			e.State.src = nil
		}
	})
}

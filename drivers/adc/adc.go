// Package adc is the ADC class driver: the converter scans its inputs into
// a circular DMA buffer of two halves, and the DMA half/full interrupt
// publishes the half that just filled as the latest sample set.
package adc

import (
	"context"
	"log/slog"
	"sync"

	"boardcode-go/board/devtab"
	"boardcode-go/board/periph"
	"boardcode-go/drivers/base"
	"boardcode-go/errcode"
)

const op = "adc"

// Converter is one opened ADC with its circular DMA stream.
type Converter interface {
	// Start begins continuous conversion into buf (two halves).
	Start(buf []uint16) error
	// Half returns which half (0 or 1) the DMA just completed and clears
	// the flag; ok is false on a spurious interrupt.
	Half() (half int, ok bool)
	Stop() error
}

type Backend interface {
	OpenADC(cfg periph.ADCConfig, dmaIRQ func()) (Converter, error)
}

type State struct {
	conv   Converter
	buf    []uint16
	mu     *sync.Mutex
	latest []uint16
	frames uint32
}

type Table = devtab.Table[periph.ADCConfig, State]

type Driver struct {
	tab *Table
	hw  Backend
	env base.Env
	log *slog.Logger
}

func New(tab *Table, hw Backend, env base.Env) *Driver {
	return &Driver{tab: tab, hw: hw, env: env, log: env.Logger(periph.ClassADC)}
}

func (d *Driver) Class() periph.Class { return periph.ClassADC }

func (d *Driver) Init(ctx context.Context) []error {
	errs := base.Results(d.tab.Len())
	d.tab.Each(func(i int, e *devtab.Entry[periph.ADCConfig, State]) {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			return
		}
		cfg := e.Desc()
		if len(cfg.Inputs) == 0 || cfg.Samples <= 0 {
			errs[i] = errcode.New(errcode.InvalidParams, op, cfg.Name+": no inputs")
			return
		}
		if cfg.DMA.RX == nil || !cfg.DMA.RX.Circular {
			errs[i] = errcode.New(errcode.InvalidParams, op, cfg.Name+": needs a circular DMA stream")
			return
		}
		conv, err := d.hw.OpenADC(cfg, d.env.Notifier(cfg.DMA.IRQ.Vector))
		if err != nil {
			errs[i] = errcode.Wrap(errcode.Of(err), op, err)
			return
		}
		half := len(cfg.Inputs) * cfg.Samples
		st := State{conv: conv, buf: make([]uint16, 2*half), mu: &sync.Mutex{}, latest: make([]uint16, len(cfg.Inputs))}
		if err := conv.Start(st.buf); err != nil {
			errs[i] = errcode.Wrap(errcode.Error, op, err)
			return
		}
		e.State = st
		if err := d.env.Register(objectName(cfg), st.latest); err != nil {
			d.log.Warn("register object", "name", cfg.Name, "err", err)
		}
	})
	return errs
}

func objectName(cfg periph.ADCConfig) string { return "ADC/" + cfg.Name }

// IRQHandler averages the completed half per input.
func (d *Driver) IRQHandler(index int) {
	e, err := d.tab.Entry(index)
	if err != nil || e.State.conv == nil {
		return
	}
	st := &e.State
	half, ok := st.conv.Half()
	if !ok {
		return
	}
	n := len(st.latest)
	seg := st.buf[half*len(st.buf)/2 : (half+1)*len(st.buf)/2]
	st.mu.Lock()
	for in := 0; in < n; in++ {
		var sum uint32
		cnt := 0
		for j := in; j < len(seg); j += n {
			sum += uint32(seg[j])
			cnt++
		}
		st.latest[in] = uint16(sum / uint32(cnt))
	}
	st.frames++
	st.mu.Unlock()
}

// Latest copies the most recent averaged sample per input into dst.
func (d *Driver) Latest(index int, dst []uint16) (int, error) {
	e, ok := d.tab.Ready(index)
	if !ok {
		return 0, errcode.New(errcode.NotInitialized, op, devtab.Name(periph.ClassADC, index))
	}
	e.State.mu.Lock()
	defer e.State.mu.Unlock()
	return copy(dst, e.State.latest), nil
}

// Frames counts completed half buffers.
func (d *Driver) Frames(index int) uint32 {
	e, err := d.tab.Entry(index)
	if err != nil || e.State.mu == nil {
		return 0
	}
	e.State.mu.Lock()
	defer e.State.mu.Unlock()
	return e.State.frames
}

// Publish pushes the latest samples to the object registry. Task context
// only.
func (d *Driver) Publish(index int) error {
	e, ok := d.tab.Ready(index)
	if !ok {
		return errcode.New(errcode.NotInitialized, op, devtab.Name(periph.ClassADC, index))
	}
	v := make([]uint16, len(e.State.latest))
	if _, err := d.Latest(index, v); err != nil {
		return err
	}
	return d.env.Publish(objectName(e.Desc()), v)
}

func (d *Driver) Close() {
	d.tab.Each(func(_ int, e *devtab.Entry[periph.ADCConfig, State]) {
		if e.State.conv != nil {
			_ = e.State.conv.Stop()
			e.State.conv = nil
		}
	})
}

// Package spi is the generic SPI class driver. Transfers run on the
// configured DMA streams; the completion interrupt (one handler for both
// the RX and TX channel vectors) counts finished transfers.
package spi

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"tinygo.org/x/drivers"

	"boardcode-go/board/devtab"
	"boardcode-go/board/periph"
	"boardcode-go/drivers/base"
	"boardcode-go/errcode"
)

const op = "spi"

// Bus is one opened SPI controller.
type Bus interface {
	drivers.SPI
	// Select drives the software chip select.
	Select(on bool)
	// Complete acknowledges DMA completion flags and reports whether a
	// transfer finished.
	Complete() bool
	Close() error
}

// Backend opens controllers. dmaIRQ stands in for the completion interrupt.
type Backend interface {
	OpenSPI(cfg periph.SPIConfig, dmaIRQ func()) (Bus, error)
}

type State struct {
	bus       Bus
	mu        *sync.Mutex
	completed uint32
	spurious  uint32
}

type Table = devtab.Table[periph.SPIConfig, State]

type Driver struct {
	tab *Table
	hw  Backend
	env base.Env
	log *slog.Logger
}

func New(tab *Table, hw Backend, env base.Env) *Driver {
	return &Driver{tab: tab, hw: hw, env: env, log: env.Logger(periph.ClassSPI)}
}

func (d *Driver) Class() periph.Class { return periph.ClassSPI }

func (d *Driver) Init(ctx context.Context) []error {
	errs := base.Results(d.tab.Len())
	d.tab.Each(func(i int, e *devtab.Entry[periph.SPIConfig, State]) {
		cfg := e.Desc()
		if cfg.DataSize != 8 && cfg.DataSize != 16 {
			errs[i] = errcode.New(errcode.InvalidParams, op, cfg.Name+": data size")
			return
		}
		var notify func()
		if cfg.DMA != nil {
			notify = d.env.Notifier(cfg.DMA.IRQ.Vector)
		}
		b, err := d.hw.OpenSPI(cfg, notify)
		if err != nil {
			errs[i] = errcode.Wrap(errcode.Of(err), op, err)
			return
		}
		b.Select(false)
		e.State = State{bus: b, mu: &sync.Mutex{}}
		d.log.Debug("controller up", "name", cfg.Name, "regs", string(cfg.Regs), "prescaler", cfg.Prescaler)
	})
	return errs
}

// IRQHandler services the DMA completion vector of entry index.
func (d *Driver) IRQHandler(index int) {
	e, err := d.tab.Entry(index)
	if err != nil || e.State.bus == nil {
		return
	}
	if e.State.bus.Complete() {
		atomic.AddUint32(&e.State.completed, 1)
	} else {
		atomic.AddUint32(&e.State.spurious, 1)
	}
}

// Completed returns the number of DMA completions seen on entry index.
func (d *Driver) Completed(index int) uint32 {
	e, err := d.tab.Entry(index)
	if err != nil {
		return 0
	}
	return atomic.LoadUint32(&e.State.completed)
}

// Bus returns a drivers.SPI view of entry index that frames every
// transaction with the chip select.
func (d *Driver) Bus(index int) (drivers.SPI, error) {
	e, ok := d.tab.Ready(index)
	if !ok {
		return nil, errcode.New(errcode.NotInitialized, op, devtab.Name(periph.ClassSPI, index))
	}
	return &selected{st: &e.State}, nil
}

func (d *Driver) Close() {
	d.tab.Each(func(_ int, e *devtab.Entry[periph.SPIConfig, State]) {
		if e.State.bus != nil {
			_ = e.State.bus.Close()
			e.State.bus = nil
		}
	})
}

type selected struct{ st *State }

var _ drivers.SPI = (*selected)(nil)

func (s *selected) Tx(w, r []byte) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	s.st.bus.Select(true)
	defer s.st.bus.Select(false)
	return s.st.bus.Tx(w, r)
}

func (s *selected) Transfer(b byte) (byte, error) {
	var r [1]byte
	err := s.Tx([]byte{b}, r[:])
	return r[0], err
}

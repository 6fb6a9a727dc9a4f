// Package usart is the generic USART class driver. Each table entry owns a
// hardware port and a receive ring: the interrupt handler drains the port
// into the ring, the public read path drains the ring. The driver is also
// the COM driver for USART-backed links.
package usart

import (
	"context"
	"log/slog"

	"boardcode-go/board/devtab"
	"boardcode-go/board/periph"
	"boardcode-go/drivers/base"
	"boardcode-go/errcode"
	"boardcode-go/x/shmring"
)

const op = "usart"

// DefaultRXBuffer is the receive ring size per port.
const DefaultRXBuffer = 256

// Port is one opened hardware USART.
type Port interface {
	Write(p []byte) (int, error)
	// Drain copies bytes held by the receiver into p without blocking.
	Drain(p []byte) int
	SetBaud(baud uint32) error
	Close() error
}

// Backend opens ports. rxReady, when not nil, is called whenever received
// bytes are waiting and stands in for the RX interrupt.
type Backend interface {
	OpenUSART(cfg periph.USARTConfig, rxReady func()) (Port, error)
}

// State is the per-entry state owned by the driver and its ISR.
type State struct {
	port    Port
	rx      *shmring.Ring
	scratch [32]byte
	irqs    uint32
}

type Table = devtab.Table[periph.USARTConfig, State]

type Driver struct {
	tab    *Table
	hw     Backend
	env    base.Env
	log    *slog.Logger
	rxSize int
}

func New(tab *Table, hw Backend, env base.Env, rxSize int) *Driver {
	if rxSize <= 0 {
		rxSize = DefaultRXBuffer
	}
	return &Driver{tab: tab, hw: hw, env: env, log: env.Logger(periph.ClassUSART), rxSize: rxSize}
}

func (d *Driver) Class() periph.Class { return periph.ClassUSART }

func (d *Driver) Init(ctx context.Context) []error {
	errs := base.Results(d.tab.Len())
	d.tab.Each(func(i int, e *devtab.Entry[periph.USARTConfig, State]) {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			return
		}
		cfg := e.Desc()
		if cfg.Baud == 0 {
			errs[i] = errcode.New(errcode.InvalidParams, op, cfg.Name+": baud")
			return
		}
		p, err := d.hw.OpenUSART(cfg, d.env.Notifier(cfg.IRQ.Vector))
		if err != nil {
			errs[i] = errcode.Wrap(errcode.Of(err), op, err)
			return
		}
		e.State = State{port: p, rx: shmring.New(d.rxSize)}
		d.log.Debug("port open", "name", cfg.Name, "regs", string(cfg.Regs), "baud", cfg.Baud)
	})
	return errs
}

// IRQHandler drains the hardware receiver into the ring.
func (d *Driver) IRQHandler(index int) {
	e, err := d.tab.Entry(index)
	if err != nil || e.State.port == nil {
		return
	}
	st := &e.State
	st.irqs++
	for {
		n := st.port.Drain(st.scratch[:])
		if n == 0 {
			return
		}
		st.rx.Push(st.scratch[:n])
	}
}

func (d *Driver) ready(index int) (*devtab.Entry[periph.USARTConfig, State], error) {
	e, ok := d.tab.Ready(index)
	if !ok {
		return nil, errcode.New(errcode.NotInitialized, op, devtab.Name(periph.ClassUSART, index))
	}
	return e, nil
}

// Available reports whether entry index completed Init.
func (d *Driver) Available(index int) bool { return d.tab.Status(index).Available() }

func (d *Driver) Write(index int, p []byte) (int, error) {
	e, err := d.ready(index)
	if err != nil {
		return 0, err
	}
	if e.Desc().Dir&periph.DirTX == 0 {
		return 0, errcode.New(errcode.Unsupported, op, "receive-only port")
	}
	return e.State.port.Write(p)
}

// Read drains buffered receive bytes; it never blocks.
func (d *Driver) Read(index int, p []byte) (int, error) {
	e, err := d.ready(index)
	if err != nil {
		return 0, err
	}
	return e.State.rx.TryReadInto(p), nil
}

// Readable signals when the receive ring goes non-empty.
func (d *Driver) Readable(index int) (<-chan struct{}, error) {
	e, err := d.ready(index)
	if err != nil {
		return nil, err
	}
	return e.State.rx.Readable(), nil
}

func (d *Driver) SetBaud(index int, baud uint32) error {
	e, err := d.ready(index)
	if err != nil {
		return err
	}
	if baud == 0 {
		return errcode.New(errcode.InvalidParams, op, "baud")
	}
	return e.State.port.SetBaud(baud)
}

// Stats reports receive counters of an entry.
type Stats struct {
	IRQs     uint32
	Buffered int
	Dropped  uint32
}

func (d *Driver) Stats(index int) (Stats, error) {
	e, err := d.ready(index)
	if err != nil {
		return Stats{}, err
	}
	st := &e.State
	return Stats{IRQs: st.irqs, Buffered: st.rx.Available(), Dropped: st.rx.Dropped()}, nil
}

// Close releases every open port. The table itself is reset by its owner.
func (d *Driver) Close() {
	d.tab.Each(func(_ int, e *devtab.Entry[periph.USARTConfig, State]) {
		if e.State.port != nil {
			_ = e.State.port.Close()
			e.State.port = nil
		}
	})
}

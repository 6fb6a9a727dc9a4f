// Package i2c is the generic I2C adapter driver. Each adapter gets an owner
// goroutine that serialises transactions; callers see a drivers.I2C that
// enforces the descriptor's transfer timeout. The event and error vectors
// have separate handlers.
package i2c

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"tinygo.org/x/drivers"

	"boardcode-go/board/devtab"
	"boardcode-go/board/periph"
	"boardcode-go/drivers/base"
	"boardcode-go/errcode"
)

const op = "i2c"

// Adapter is one opened I2C controller.
type Adapter interface {
	drivers.I2C
	// Event acknowledges an event interrupt (start, address, byte done).
	Event()
	// Fault returns and clears the latched bus error, if any.
	Fault() error
	Close() error
}

type Backend interface {
	OpenI2C(cfg periph.I2CConfig) (Adapter, error)
}

type State struct {
	ad     Adapter
	owner  *owner
	events uint32
	faults uint32
	last   atomic.Value // fault
}

type fault struct{ err error }

type Table = devtab.Table[periph.I2CConfig, State]

type Driver struct {
	tab *Table
	hw  Backend
	env base.Env
	log *slog.Logger
}

func New(tab *Table, hw Backend, env base.Env) *Driver {
	return &Driver{tab: tab, hw: hw, env: env, log: env.Logger(periph.ClassI2C)}
}

func (d *Driver) Class() periph.Class { return periph.ClassI2C }

func (d *Driver) Init(ctx context.Context) []error {
	errs := base.Results(d.tab.Len())
	d.tab.Each(func(i int, e *devtab.Entry[periph.I2CConfig, State]) {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			return
		}
		cfg := e.Desc()
		if cfg.Clock <= 0 {
			errs[i] = errcode.New(errcode.InvalidParams, op, cfg.Name+": clock")
			return
		}
		ad, err := d.hw.OpenI2C(cfg)
		if err != nil {
			errs[i] = errcode.Wrap(errcode.Of(err), op, err)
			return
		}
		e.State = State{ad: ad, owner: newOwner(ad)}
		d.log.Debug("adapter up", "name", cfg.Name, "clock", cfg.Clock.String(), "timeout", cfg.TransferTimeout)
	})
	return errs
}

// IRQHandler services the event vector.
func (d *Driver) IRQHandler(index int) {
	e, err := d.tab.Entry(index)
	if err != nil || e.State.ad == nil {
		return
	}
	atomic.AddUint32(&e.State.events, 1)
	e.State.ad.Event()
}

// ErrorHandler services the error vector.
func (d *Driver) ErrorHandler(index int) {
	e, err := d.tab.Entry(index)
	if err != nil || e.State.ad == nil {
		return
	}
	if f := e.State.ad.Fault(); f != nil {
		atomic.AddUint32(&e.State.faults, 1)
		e.State.last.Store(fault{f})
	}
}

// Faults returns the number of bus errors and the latest one.
func (d *Driver) Faults(index int) (uint32, error) {
	e, err := d.tab.Entry(index)
	if err != nil {
		return 0, err
	}
	last, _ := e.State.last.Load().(fault)
	return atomic.LoadUint32(&e.State.faults), last.err
}

// Bus returns a drivers.I2C for adapter index.
func (d *Driver) Bus(index int) (drivers.I2C, error) {
	e, ok := d.tab.Ready(index)
	if !ok {
		return nil, errcode.New(errcode.NotInitialized, op, devtab.Name(periph.ClassI2C, index))
	}
	return &bus{o: e.State.owner, timeout: e.Desc().TransferTimeout}, nil
}

func (d *Driver) Close() {
	d.tab.Each(func(_ int, e *devtab.Entry[periph.I2CConfig, State]) {
		if e.State.owner != nil {
			e.State.owner.stop()
			_ = e.State.ad.Close()
			e.State.owner, e.State.ad = nil, nil
		}
	})
}

type req struct {
	addr uint16
	w, r []byte
	done chan error
}

// owner serialises transactions on one adapter.
type owner struct {
	ad   Adapter
	reqs chan req
	quit chan struct{}
}

func newOwner(ad Adapter) *owner {
	o := &owner{ad: ad, reqs: make(chan req, 16), quit: make(chan struct{})}
	go o.loop()
	return o
}

func (o *owner) loop() {
	for {
		select {
		case r := <-o.reqs:
			err := o.ad.Tx(r.addr, r.w, r.r)
			select {
			case r.done <- err:
			default:
			}
		case <-o.quit:
			return
		}
	}
}

func (o *owner) stop() { close(o.quit) }

// bus posts a request and bounds both the enqueue and the completion.
type bus struct {
	o       *owner
	timeout time.Duration // 0 => no deadline
}

var _ drivers.I2C = (*bus)(nil)

func (b *bus) Tx(addr uint16, w, r []byte) error {
	rq := req{addr: addr, w: w, r: r, done: make(chan error, 1)}
	if b.timeout <= 0 {
		b.o.reqs <- rq
		return <-rq.done
	}

	t := time.NewTimer(b.timeout)
	defer t.Stop()
	select {
	case b.o.reqs <- rq:
	case <-t.C:
		return errcode.Busy
	}
	select {
	case err := <-rq.done:
		return err
	case <-t.C:
		return errcode.Timeout
	}
}

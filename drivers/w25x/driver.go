package w25x

import (
	"context"
	"errors"
	"log/slog"

	"tinygo.org/x/drivers"

	"boardcode-go/board/devtab"
	"boardcode-go/board/periph"
	"boardcode-go/drivers/base"
	"boardcode-go/errcode"
)

const op = "w25x"

// Buses hands out chip-select framed views of the SPI controllers.
type Buses interface {
	Bus(index int) (drivers.SPI, error)
}

type State struct {
	dev *Device
}

type Table = devtab.Table[periph.FlashConfig, State]

// Driver probes every flash slot. A missing or foreign chip degrades its
// slot; the settings store is the only thing that loses.
type Driver struct {
	tab   *Table
	buses Buses
	log   *slog.Logger
}

func NewDriver(tab *Table, buses Buses, env base.Env) *Driver {
	return &Driver{tab: tab, buses: buses, log: env.Logger(periph.ClassFlash)}
}

func (d *Driver) Class() periph.Class { return periph.ClassFlash }

func (d *Driver) Init(ctx context.Context) []error {
	errs := base.Results(d.tab.Len())
	d.tab.Each(func(i int, e *devtab.Entry[periph.FlashConfig, State]) {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			return
		}
		cfg := e.Desc()
		bus, err := d.buses.Bus(cfg.Bus)
		if err != nil {
			errs[i] = errcode.Wrap(errcode.Of(err), op, err)
			return
		}
		dev := New(bus)
		if err := dev.Configure(); err != nil {
			c := errcode.Degraded
			if errors.Is(err, ErrNoDevice) {
				c = errcode.NotPresent
			}
			errs[i] = errcode.Wrap(c, op, err)
			return
		}
		e.State = State{dev: dev}
		d.log.Debug("flash", "name", cfg.Name, "jedec", dev.ID(), "bytes", dev.ID().Size())
	})
	return errs
}

func (d *Driver) IRQHandler(int) {}

// Device returns the probed chip of slot index.
func (d *Driver) Device(index int) (*Device, error) {
	e, ok := d.tab.Ready(index)
	if !ok || e.State.dev == nil {
		return nil, errcode.New(errcode.NotPresent, op, devtab.Name(periph.ClassFlash, index))
	}
	return e.State.dev, nil
}

func (d *Driver) Close() {
	d.tab.Each(func(_ int, e *devtab.Entry[periph.FlashConfig, State]) {
		e.State = State{}
	})
}

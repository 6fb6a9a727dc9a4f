package gpio

import (
	"context"
	"testing"

	pgpio "periph.io/x/conn/v3/gpio"

	"boardcode-go/board/devtab"
	"boardcode-go/board/periph"
	"boardcode-go/drivers/base"
)

type fakeLines map[int]pgpio.Level

func (l fakeLines) Out(p int, v pgpio.Level) error { l[p] = v; return nil }
func (l fakeLines) Close() error                   { return nil }

type fakeHW struct{ l fakeLines }

func (h fakeHW) OpenGPIO(periph.GPIOConfig) (Lines, error) { return h.l, nil }

func TestActiveLowLED(t *testing.T) {
	tab := devtab.MustTable[periph.GPIOConfig, State](periph.ClassGPIO, devtab.Required(periph.GPIOConfig{
		Name: "led", ActiveLow: true, Pins: []periph.Pin{periph.Out(periph.PortA, 6, periph.Speed50MHz)},
	}))
	l := fakeLines{}
	d := New(tab, fakeHW{l}, base.Env{})
	if errs := d.Init(context.Background()); errs[0] != nil {
		t.Fatal(errs[0])
	}
	if l[0] != pgpio.High {
		t.Fatal("led should start off (high)")
	}
	tab.MarkReady(0)
	if err := d.Toggle(0, 0); err != nil {
		t.Fatal(err)
	}
	if l[0] != pgpio.Low {
		t.Fatal("led on should drive low")
	}
	if on, _ := d.On(0, 0); !on {
		t.Fatal("state")
	}
}

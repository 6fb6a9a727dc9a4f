package i2c

import (
	"context"
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3/physic"

	"boardcode-go/board/devtab"
	"boardcode-go/board/periph"
	"boardcode-go/drivers/base"
	"boardcode-go/errcode"
)

type fakeAdapter struct {
	delay  time.Duration
	events int
	fault  error
}

func (a *fakeAdapter) Tx(addr uint16, w, r []byte) error {
	time.Sleep(a.delay)
	if addr != 0x1E {
		return errors.New("nack")
	}
	for i := range r {
		r[i] = byte(i + 1)
	}
	return nil
}
func (a *fakeAdapter) Event()       { a.events++ }
func (a *fakeAdapter) Close() error { return nil }
func (a *fakeAdapter) Fault() error {
	f := a.fault
	a.fault = nil
	return f
}

type fakeHW struct{ ad *fakeAdapter }

func (h fakeHW) OpenI2C(periph.I2CConfig) (Adapter, error) { return h.ad, nil }

func setup(t *testing.T, ad *fakeAdapter, timeout time.Duration) (*Driver, *Table) {
	t.Helper()
	tab := devtab.MustTable[periph.I2CConfig, State](periph.ClassI2C, devtab.Required(periph.I2CConfig{
		Name: "flexi", Regs: "I2C2", Clock: 400 * physic.KiloHertz, TransferTimeout: timeout,
	}))
	d := New(tab, fakeHW{ad}, base.Env{})
	if errs := d.Init(context.Background()); errs[0] != nil {
		t.Fatal(errs[0])
	}
	tab.MarkReady(0)
	t.Cleanup(d.Close)
	return d, tab
}

func TestTxThroughOwner(t *testing.T) {
	d, _ := setup(t, &fakeAdapter{}, 50*time.Millisecond)
	b, err := d.Bus(0)
	if err != nil {
		t.Fatal(err)
	}
	r := make([]byte, 2)
	if err := b.Tx(0x1E, []byte{0x0A}, r); err != nil || r[1] != 2 {
		t.Fatalf("tx %v %v", err, r)
	}
	if err := b.Tx(0x50, []byte{0}, nil); err == nil {
		t.Fatal("nack expected")
	}
}

func TestTxTimeout(t *testing.T) {
	d, _ := setup(t, &fakeAdapter{delay: 100 * time.Millisecond}, 5*time.Millisecond)
	b, _ := d.Bus(0)
	if err := b.Tx(0x1E, []byte{0}, nil); !errcode.Is(err, errcode.Timeout) {
		t.Fatalf("want timeout, got %v", err)
	}
}

func TestHandlers(t *testing.T) {
	ad := &fakeAdapter{}
	d, _ := setup(t, ad, 0)
	d.IRQHandler(0)
	ad.fault = errors.New("arbitration lost")
	d.ErrorHandler(0)
	d.ErrorHandler(0)
	n, last := d.Faults(0)
	if ad.events != 1 || n != 1 || last == nil {
		t.Fatalf("events=%d faults=%d last=%v", ad.events, n, last)
	}
}

// Package usbhid is the USB HID class driver and the COM driver for the USB
// link. Data travels in fixed 64 byte reports: a report id, a payload length
// and up to 62 payload bytes.
package usbhid

import (
	"context"
	"log/slog"

	"boardcode-go/board/devtab"
	"boardcode-go/board/periph"
	"boardcode-go/drivers/base"
	"boardcode-go/errcode"
	"boardcode-go/x/shmring"
)

const op = "usbhid"

const (
	ReportLen  = 64
	ReportID   = 1
	MaxPayload = ReportLen - 2
)

type Report [ReportLen]byte

// Endpoint is the opened device port.
type Endpoint interface {
	// Connected reports VBUS / enumeration.
	Connected() bool
	WriteReport(r *Report) error
	// DrainReport takes one received report; false when none is waiting.
	DrainReport(r *Report) bool
	Close() error
}

type Backend interface {
	OpenUSB(cfg periph.USBConfig, irq func()) (Endpoint, error)
}

type State struct {
	ep      Endpoint
	rx      *shmring.Ring
	scratch Report
	bad     uint32
}

type Table = devtab.Table[periph.USBConfig, State]

type Driver struct {
	tab *Table
	hw  Backend
	env base.Env
	log *slog.Logger
}

func New(tab *Table, hw Backend, env base.Env) *Driver {
	return &Driver{tab: tab, hw: hw, env: env, log: env.Logger(periph.ClassUSB)}
}

func (d *Driver) Class() periph.Class { return periph.ClassUSB }

// Init opens the endpoint. An unplugged cable leaves the slot degraded; the
// endpoint stays open so Close still releases it.
func (d *Driver) Init(ctx context.Context) []error {
	errs := base.Results(d.tab.Len())
	d.tab.Each(func(i int, e *devtab.Entry[periph.USBConfig, State]) {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			return
		}
		cfg := e.Desc()
		ep, err := d.hw.OpenUSB(cfg, d.env.Notifier(cfg.IRQ.Vector))
		if err != nil {
			errs[i] = errcode.Wrap(errcode.Of(err), op, err)
			return
		}
		e.State = State{ep: ep, rx: shmring.New(4 * ReportLen)}
		if !ep.Connected() {
			errs[i] = errcode.New(errcode.Degraded, op, cfg.Name+": cable not connected")
		}
	})
	return errs
}

// IRQHandler moves received report payloads into the ring.
func (d *Driver) IRQHandler(index int) {
	e, err := d.tab.Entry(index)
	if err != nil || e.State.ep == nil {
		return
	}
	st := &e.State
	for st.ep.DrainReport(&st.scratch) {
		n := int(st.scratch[1])
		if st.scratch[0] != ReportID || n > MaxPayload {
			st.bad++
			continue
		}
		st.rx.Push(st.scratch[2 : 2+n])
	}
}

func (d *Driver) ready(index int) (*devtab.Entry[periph.USBConfig, State], error) {
	e, ok := d.tab.Ready(index)
	if !ok {
		return nil, errcode.New(errcode.NotInitialized, op, devtab.Name(periph.ClassUSB, index))
	}
	return e, nil
}

func (d *Driver) Available(index int) bool { return d.tab.Status(index).Available() }

// Write splits p into reports.
func (d *Driver) Write(index int, p []byte) (int, error) {
	e, err := d.ready(index)
	if err != nil {
		return 0, err
	}
	if !e.State.ep.Connected() {
		return 0, errcode.New(errcode.NotPresent, op, "cable not connected")
	}
	var r Report
	sent := 0
	for sent < len(p) {
		n := copy(r[2:], p[sent:])
		r[0], r[1] = ReportID, byte(n)
		clear(r[2+n:])
		if err := e.State.ep.WriteReport(&r); err != nil {
			return sent, errcode.Wrap(errcode.Error, op, err)
		}
		sent += n
	}
	return sent, nil
}

func (d *Driver) Read(index int, p []byte) (int, error) {
	e, err := d.ready(index)
	if err != nil {
		return 0, err
	}
	return e.State.rx.TryReadInto(p), nil
}

// SetBaud has no meaning on a USB link.
func (d *Driver) SetBaud(index int, _ uint32) error {
	if _, err := d.ready(index); err != nil {
		return err
	}
	return errcode.New(errcode.Unsupported, op, "baud on usb")
}

// Malformed counts dropped reports.
func (d *Driver) Malformed(index int) uint32 {
	e, err := d.tab.Entry(index)
	if err != nil {
		return 0
	}
	return e.State.bad
}

func (d *Driver) Close() {
	d.tab.Each(func(_ int, e *devtab.Entry[periph.USBConfig, State]) {
		if e.State.ep != nil {
			_ = e.State.ep.Close()
			e.State.ep = nil
		}
	})
}

// Package com is the logical COM device table. Upper layers address a
// serial link by channel or small index without knowing whether a USART or
// the USB endpoint carries it; the underlying device is a tagged
// (class, index) identity so USART 0 and USB 0 cannot be confused.
package com

import (
	"fmt"
	"log/slog"

	"go.uber.org/multierr"

	"boardcode-go/board/devtab"
	"boardcode-go/board/periph"
	"boardcode-go/errcode"
	"boardcode-go/x/logx"
)

const op = "com"

// Channel names a logical link.
type Channel string

const (
	Telemetry Channel = "telemetry"
	GPS       Channel = "gps"
	USB       Channel = "usb"
	Aux       Channel = "aux"
)

// Driver is the per-class COM operation set.
type Driver interface {
	Class() periph.Class
	Available(index int) bool
	Write(index int, p []byte) (int, error)
	Read(index int, p []byte) (int, error)
	SetBaud(index int, baud uint32) error
}

// Binding maps a channel onto a device and its driver.
type Binding struct {
	Channel Channel
	Device  devtab.DeviceID
	Driver  Driver
}

// Port is one entry of the COM table.
type Port struct {
	index int
	b     Binding
}

func (p *Port) Index() int              { return p.index }
func (p *Port) Channel() Channel        { return p.b.Channel }
func (p *Port) Device() devtab.DeviceID { return p.b.Device }
func (p *Port) Available() bool         { return p.b.Driver.Available(int(p.b.Device.Index)) }
func (p *Port) String() string          { return fmt.Sprintf("%d:%s(%s)", p.index, p.b.Channel, p.b.Device) }

func (p *Port) check() error {
	if !p.Available() {
		return errcode.New(errcode.NotInitialized, op, string(p.b.Channel)+" on "+p.b.Device.String())
	}
	return nil
}

// Write sends p on the link. It fails fast when the device is not ready.
func (p *Port) Write(b []byte) (int, error) {
	if err := p.check(); err != nil {
		return 0, err
	}
	return p.b.Driver.Write(int(p.b.Device.Index), b)
}

// Read drains received bytes without blocking.
func (p *Port) Read(b []byte) (int, error) {
	if err := p.check(); err != nil {
		return 0, err
	}
	return p.b.Driver.Read(int(p.b.Device.Index), b)
}

// SetBaud changes the link rate where the driver supports it.
func (p *Port) SetBaud(baud uint32) error {
	if err := p.check(); err != nil {
		return err
	}
	return p.b.Driver.SetBaud(int(p.b.Device.Index), baud)
}

// Table is the built COM table. Indices follow binding order.
type Table struct {
	ports  []*Port
	byChan map[Channel]*Port
	log    *slog.Logger
}

// Build validates bindings: no channel or device twice, and each driver
// must serve its device's class.
func Build(l *slog.Logger, bindings ...Binding) (*Table, error) {
	t := &Table{byChan: map[Channel]*Port{}, log: logx.For(l, logx.COM)}
	devs := map[devtab.DeviceID]Channel{}
	var errs error
	for _, b := range bindings {
		switch {
		case b.Driver == nil:
			errs = multierr.Append(errs, errcode.New(errcode.InvalidParams, op, string(b.Channel)+": nil driver"))
			continue
		case b.Driver.Class() != b.Device.Class:
			errs = multierr.Append(errs, errcode.New(errcode.ConfigConflict, op,
				fmt.Sprintf("%s: %s driver for %s", b.Channel, b.Driver.Class(), b.Device)))
			continue
		}
		if _, dup := t.byChan[b.Channel]; dup {
			errs = multierr.Append(errs, errcode.New(errcode.ConfigConflict, op, "channel "+string(b.Channel)+" bound twice"))
			continue
		}
		if prev, dup := devs[b.Device]; dup {
			errs = multierr.Append(errs, errcode.New(errcode.ConfigConflict, op,
				fmt.Sprintf("%s shared by %s and %s", b.Device, prev, b.Channel)))
			continue
		}
		devs[b.Device] = b.Channel
		p := &Port{index: len(t.ports), b: b}
		t.ports = append(t.ports, p)
		t.byChan[b.Channel] = p
	}
	if errs != nil {
		return nil, errs
	}
	for _, p := range t.ports {
		t.log.Debug("com bound", "index", p.index, "channel", string(p.b.Channel), "device", p.b.Device.String())
	}
	return t, nil
}

func (t *Table) Len() int { return len(t.ports) }

// Lookup returns the port carrying ch, or not_present.
func (t *Table) Lookup(ch Channel) (*Port, error) {
	if p, ok := t.byChan[ch]; ok {
		return p, nil
	}
	return nil, errcode.New(errcode.NotPresent, op, string(ch))
}

// Index returns the port with logical index i, or not_present.
func (t *Table) Index(i int) (*Port, error) {
	if i < 0 || i >= len(t.ports) {
		return nil, errcode.New(errcode.NotPresent, op, fmt.Sprintf("index %d", i))
	}
	return t.ports[i], nil
}

// Ports lists the table in index order.
func (t *Table) Ports() []*Port { return append([]*Port(nil), t.ports...) }

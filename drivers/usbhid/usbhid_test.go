package usbhid

import (
	"context"
	"testing"

	"boardcode-go/board/devtab"
	"boardcode-go/board/periph"
	"boardcode-go/drivers/base"
	"boardcode-go/errcode"
)

type fakeEP struct {
	plugged bool
	sent    []Report
	inbound []Report
}

func (e *fakeEP) Connected() bool             { return e.plugged }
func (e *fakeEP) WriteReport(r *Report) error { e.sent = append(e.sent, *r); return nil }
func (e *fakeEP) DrainReport(r *Report) bool {
	if len(e.inbound) == 0 {
		return false
	}
	*r, e.inbound = e.inbound[0], e.inbound[1:]
	return true
}
func (e *fakeEP) Close() error { return nil }

type fakeHW struct{ ep *fakeEP }

func (h fakeHW) OpenUSB(periph.USBConfig, func()) (Endpoint, error) { return h.ep, nil }

func table() *Table {
	return devtab.MustTable[periph.USBConfig, State](periph.ClassUSB, devtab.Optional(periph.USBConfig{
		Name: "usb", IRQ: periph.IRQBinding{Vector: periph.VecUSBLP, Preempt: periph.PrioLow, Enabled: true},
	}))
}

func TestUnpluggedIsDegraded(t *testing.T) {
	d := New(table(), fakeHW{&fakeEP{}}, base.Env{})
	errs := d.Init(context.Background())
	if !errcode.Is(errs[0], errcode.Degraded) {
		t.Fatal(errs[0])
	}
	if _, err := d.Write(0, []byte("x")); !errcode.Is(err, errcode.NotInitialized) {
		t.Fatal(err)
	}
}

func TestReportFraming(t *testing.T) {
	tab := table()
	ep := &fakeEP{plugged: true}
	d := New(tab, fakeHW{ep}, base.Env{})
	if errs := d.Init(context.Background()); errs[0] != nil {
		t.Fatal(errs[0])
	}
	tab.MarkReady(0)

	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte(i)
	}
	if n, err := d.Write(0, payload); err != nil || n != 100 {
		t.Fatalf("write %d %v", n, err)
	}
	if len(ep.sent) != 2 || ep.sent[0][1] != MaxPayload || ep.sent[1][1] != 38 || ep.sent[1][2] != 62 {
		t.Fatalf("reports %d", len(ep.sent))
	}

	var in, junk Report
	in[0], in[1] = ReportID, 3
	copy(in[2:], "abc")
	junk[0] = 9
	ep.inbound = []Report{in, junk}
	d.IRQHandler(0)
	buf := make([]byte, 8)
	n, _ := d.Read(0, buf)
	if string(buf[:n]) != "abc" || d.Malformed(0) != 1 {
		t.Fatalf("read %q malformed %d", buf[:n], d.Malformed(0))
	}
	if err := d.SetBaud(0, 9600); !errcode.Is(err, errcode.Unsupported) {
		t.Fatal(err)
	}
}

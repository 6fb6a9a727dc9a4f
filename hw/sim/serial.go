package sim

import (
	"sync"

	"boardcode-go/board/periph"
	"boardcode-go/drivers/usart"
	"boardcode-go/drivers/usbhid"
	"boardcode-go/errcode"
)

type uart struct {
	cfg     periph.USARTConfig
	rxReady func()

	mu     sync.Mutex
	rx     []byte
	tx     []byte
	baud   uint32
	closed bool
}

func (u *uart) Write(p []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.closed {
		return 0, errcode.New(errcode.NotInitialized, op, u.cfg.Name)
	}
	u.tx = append(u.tx, p...)
	return len(p), nil
}

func (u *uart) Drain(p []byte) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := copy(p, u.rx)
	u.rx = u.rx[n:]
	return n
}

func (u *uart) SetBaud(baud uint32) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.baud = baud
	return nil
}

func (u *uart) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.closed = true
	return nil
}

func (b *Board) OpenUSART(cfg periph.USARTConfig, rxReady func()) (usart.Port, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fault(cfg.Name); err != nil {
		return nil, err
	}
	u := &uart{cfg: cfg, rxReady: rxReady, baud: cfg.Baud}
	b.uarts[cfg.Name] = u
	return u, nil
}

func (b *Board) port(name string) (*uart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.uarts[name]
	if !ok {
		return nil, errcode.New(errcode.NotPresent, op, name)
	}
	return u, nil
}

// Inject delivers bytes to the receiver of USART name and raises its
// interrupt.
func (b *Board) Inject(name string, data []byte) error {
	u, err := b.port(name)
	if err != nil {
		return err
	}
	u.mu.Lock()
	if u.cfg.Dir&periph.DirRX == 0 || u.closed {
		u.mu.Unlock()
		return errcode.New(errcode.Unsupported, op, name+": receiver off")
	}
	u.rx = append(u.rx, data...)
	u.mu.Unlock()
	if u.rxReady != nil {
		u.rxReady()
	}
	return nil
}

// Sent returns and clears what USART name transmitted.
func (b *Board) Sent(name string) ([]byte, error) {
	u, err := b.port(name)
	if err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	out := u.tx
	u.tx = nil
	return out, nil
}

// Baud returns the current rate of USART name.
func (b *Board) Baud(name string) (uint32, error) {
	u, err := b.port(name)
	if err != nil {
		return 0, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.baud, nil
}

type endpoint struct {
	b   *Board
	irq func()

	mu     sync.Mutex
	in     []usbhid.Report
	out    []usbhid.Report
	closed bool
}

func (e *endpoint) Connected() bool {
	e.b.mu.Lock()
	defer e.b.mu.Unlock()
	return e.b.cable
}

func (e *endpoint) WriteReport(r *usbhid.Report) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errcode.New(errcode.NotInitialized, op, "usb")
	}
	e.out = append(e.out, *r)
	return nil
}

func (e *endpoint) DrainReport(r *usbhid.Report) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.in) == 0 {
		return false
	}
	*r = e.in[0]
	e.in = e.in[1:]
	return true
}

func (e *endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (b *Board) OpenUSB(cfg periph.USBConfig, irq func()) (usbhid.Endpoint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fault(cfg.Name); err != nil {
		return nil, err
	}
	b.usb = &endpoint{b: b, irq: irq}
	return b.usb, nil
}

// SetCable plugs or unplugs the USB cable.
func (b *Board) SetCable(plugged bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cable = plugged
}

// HostSend delivers data from the USB host as HID reports.
func (b *Board) HostSend(data []byte) error {
	b.mu.Lock()
	e := b.usb
	b.mu.Unlock()
	if e == nil {
		return errcode.New(errcode.NotPresent, op, "usb")
	}
	e.mu.Lock()
	for len(data) > 0 {
		var r usbhid.Report
		n := copy(r[2:], data)
		r[0], r[1] = usbhid.ReportID, byte(n)
		e.in = append(e.in, r)
		data = data[n:]
	}
	e.mu.Unlock()
	if e.irq != nil {
		e.irq()
	}
	return nil
}

// HostReceive returns and clears the payload the board sent to the host.
func (b *Board) HostReceive() []byte {
	b.mu.Lock()
	e := b.usb
	b.mu.Unlock()
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []byte
	for _, r := range e.out {
		out = append(out, r[2:2+int(r[1])]...)
	}
	e.out = nil
	return out
}

//go:build !tinygo

package usart

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"

	"boardcode-go/board/periph"
	"boardcode-go/errcode"
)

// Host maps board USARTs onto host serial devices. Ports maps a descriptor
// name ("telemetry") or register instance ("USART1") to a device path;
// unmapped USARTs are opened on Fallback.
type Host struct {
	Ports    map[string]string
	Fallback Backend
}

func (h *Host) OpenUSART(cfg periph.USARTConfig, rxReady func()) (Port, error) {
	path, ok := h.Ports[cfg.Name]
	if !ok {
		path, ok = h.Ports[string(cfg.Regs)]
	}
	if !ok {
		if h.Fallback == nil {
			return nil, errcode.New(errcode.NotPresent, op, cfg.Name+": no host port")
		}
		return h.Fallback.OpenUSART(cfg, rxReady)
	}
	return openTTY(path, cfg, rxReady)
}

func serialConfig(path string, cfg periph.USARTConfig, baud uint32) *serial.Config {
	c := &serial.Config{
		Name:        path,
		Baud:        int(baud),
		ReadTimeout: 50 * time.Millisecond,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	}
	switch cfg.Parity {
	case periph.ParityEven:
		c.Parity = serial.ParityEven
	case periph.ParityOdd:
		c.Parity = serial.ParityOdd
	}
	if cfg.StopBits == periph.Stop2 {
		c.StopBits = serial.Stop2
	}
	return c
}

// ttyPort pumps the device into a pending buffer from a goroutine; Drain is
// what the RX interrupt handler sees.
type ttyPort struct {
	path    string
	cfg     periph.USARTConfig
	rxReady func()

	mu      sync.Mutex
	sp      *serial.Port
	pending []byte
	quit    chan struct{}
	done    chan struct{}
}

func openTTY(path string, cfg periph.USARTConfig, rxReady func()) (*ttyPort, error) {
	p := &ttyPort{path: path, cfg: cfg, rxReady: rxReady}
	if err := p.open(cfg.Baud); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *ttyPort) open(baud uint32) error {
	sp, err := serial.OpenPort(serialConfig(p.path, p.cfg, baud))
	if err != nil {
		return errcode.Wrap(errcode.NotPresent, op, err)
	}
	p.mu.Lock()
	p.sp = sp
	p.quit = make(chan struct{})
	p.done = make(chan struct{})
	p.mu.Unlock()
	go p.pump(sp, p.quit, p.done)
	return nil
}

func (p *ttyPort) pump(sp *serial.Port, quit, done chan struct{}) {
	defer close(done)
	buf := make([]byte, 64)
	for {
		n, err := sp.Read(buf)
		if n > 0 {
			p.mu.Lock()
			p.pending = append(p.pending, buf[:n]...)
			p.mu.Unlock()
			if p.rxReady != nil {
				p.rxReady()
			}
		}
		select {
		case <-quit:
			return
		default:
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return
		}
	}
}

func (p *ttyPort) Drain(dst []byte) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := copy(dst, p.pending)
	p.pending = p.pending[n:]
	return n
}

func (p *ttyPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	sp := p.sp
	p.mu.Unlock()
	if sp == nil {
		return 0, errcode.New(errcode.NotInitialized, op, p.path)
	}
	return sp.Write(b)
}

func (p *ttyPort) stop() error {
	p.mu.Lock()
	sp, quit, done := p.sp, p.quit, p.done
	p.sp = nil
	p.mu.Unlock()
	if sp == nil {
		return nil
	}
	close(quit)
	err := sp.Close()
	<-done
	return err
}

// SetBaud reopens the device; tarm/serial fixes the rate at open.
func (p *ttyPort) SetBaud(baud uint32) error {
	if err := p.stop(); err != nil {
		return err
	}
	return p.open(baud)
}

func (p *ttyPort) Close() error { return p.stop() }

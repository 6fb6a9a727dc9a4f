//go:build rp2040 || rp2350

package usart

import (
	"context"
	"machine"
	"sync"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"boardcode-go/board/periph"
	"boardcode-go/errcode"
)

// UARTxPort routes one board USART to an RP2 UART and its pins.
type UARTxPort struct {
	UART   *uartx.UART
	TX, RX machine.Pin
}

// UARTx opens board USARTs on RP2 UARTs (development boards standing in for
// the flight controller). Map is keyed by descriptor name or instance.
type UARTx struct {
	Map map[string]UARTxPort
}

// DefaultUARTx routes telemetry to UART0 and the flexi port to UART1 with
// the uartx default pins.
func DefaultUARTx() *UARTx {
	return &UARTx{Map: map[string]UARTxPort{
		"USART1": {UART: uartx.UART0, TX: machine.NoPin, RX: machine.NoPin},
		"USART3": {UART: uartx.UART1, TX: machine.NoPin, RX: machine.NoPin},
	}}
}

func (u *UARTx) OpenUSART(cfg periph.USARTConfig, rxReady func()) (Port, error) {
	r, ok := u.Map[cfg.Name]
	if !ok {
		r, ok = u.Map[string(cfg.Regs)]
	}
	if !ok || r.UART == nil {
		return nil, errcode.New(errcode.NotPresent, op, cfg.Name+": no uart")
	}
	if err := r.UART.Configure(uartx.UARTConfig{BaudRate: cfg.Baud, TX: r.TX, RX: r.RX}); err != nil {
		return nil, errcode.Wrap(errcode.Error, op, err)
	}
	var par uartx.UARTParity = uartx.ParityNone
	switch cfg.Parity {
	case periph.ParityEven:
		par = uartx.ParityEven
	case periph.ParityOdd:
		par = uartx.ParityOdd
	}
	stop := uint8(1)
	if cfg.StopBits == periph.Stop2 {
		stop = 2
	}
	if err := r.UART.SetFormat(8, stop, par); err != nil {
		return nil, errcode.Wrap(errcode.InvalidParams, op, err)
	}
	p := &uartxPort{u: r.UART, rxReady: rxReady}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.pump(ctx)
	return p, nil
}

type uartxPort struct {
	u       *uartx.UART
	rxReady func()
	cancel  context.CancelFunc

	mu      sync.Mutex
	pending []byte
}

func (p *uartxPort) pump(ctx context.Context) {
	buf := make([]byte, 32)
	for {
		n, err := p.u.RecvSomeContext(ctx, buf)
		if n > 0 {
			p.mu.Lock()
			p.pending = append(p.pending, buf[:n]...)
			p.mu.Unlock()
			if p.rxReady != nil {
				p.rxReady()
			}
		}
		if err != nil {
			return
		}
	}
}

func (p *uartxPort) Drain(dst []byte) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := copy(dst, p.pending)
	p.pending = p.pending[n:]
	return n
}

func (p *uartxPort) Write(b []byte) (int, error) { return p.u.Write(b) }

func (p *uartxPort) SetBaud(baud uint32) error {
	p.u.SetBaudRate(baud)
	return nil
}

func (p *uartxPort) Close() error {
	p.cancel()
	return nil
}

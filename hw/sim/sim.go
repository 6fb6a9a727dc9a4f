// Package sim is a host simulation of the board hardware. One Board
// implements every driver backend plus the interrupt sink, so a board
// definition can be brought up, poked and faulted from tests and the
// simulator CLI.
//
// Devices are addressed by descriptor name. A name marked absent fails to
// open with not_present; a name marked failing fails with a hardware error.
package sim

import (
	"sync"

	"boardcode-go/board/irq"
	"boardcode-go/board/periph"
	"boardcode-go/drivers/adc"
	"boardcode-go/drivers/gpio"
	"boardcode-go/drivers/i2c"
	"boardcode-go/drivers/iap"
	"boardcode-go/drivers/servo"
	"boardcode-go/drivers/spektrum"
	"boardcode-go/drivers/spi"
	"boardcode-go/drivers/timcap"
	"boardcode-go/drivers/usart"
	"boardcode-go/drivers/usbhid"
	"boardcode-go/drivers/wdg"
	"boardcode-go/errcode"
)

const op = "sim"

type vectorSlot struct {
	prio  periph.Priority
	entry func()
}

type Board struct {
	mu      sync.Mutex
	absent  map[string]bool
	failing map[string]bool

	vectors  [periph.NumVectors]vectorSlot
	unrouted uint32

	uarts    map[string]*uart
	spis     map[string]*spiBus
	flash    *Flash
	i2cs     map[string]*adapter
	adcs     map[string]*converter
	servos   map[string]*outputs
	captures map[string]*capture
	frames   map[string]*frameTimer
	usb      *endpoint
	cable    bool
	lines    map[string]*lines
	wdg      watchdog
	backup   [10]uint16
}

var (
	_ irq.Sink         = (*Board)(nil)
	_ usart.Backend    = (*Board)(nil)
	_ spi.Backend      = (*Board)(nil)
	_ i2c.Backend      = (*Board)(nil)
	_ adc.Backend      = (*Board)(nil)
	_ servo.Backend    = (*Board)(nil)
	_ timcap.Backend   = (*Board)(nil)
	_ spektrum.Backend = (*Board)(nil)
	_ usbhid.Backend   = (*Board)(nil)
	_ gpio.Backend     = (*Board)(nil)
	_ wdg.Backend      = (*Board)(nil)
	_ iap.Registers    = (*Board)(nil)
)

// New returns a board with a plugged USB cable and a Winbond flash on the
// flash bus.
func New() *Board {
	b := &Board{
		absent:  map[string]bool{},
		failing: map[string]bool{},
		cable:   true,
		flash:   NewFlash(),
	}
	b.clear()
	return b
}

func (b *Board) clear() {
	b.vectors = [periph.NumVectors]vectorSlot{}
	b.unrouted = 0
	b.uarts = map[string]*uart{}
	b.spis = map[string]*spiBus{}
	b.i2cs = map[string]*adapter{}
	b.adcs = map[string]*converter{}
	b.servos = map[string]*outputs{}
	b.captures = map[string]*capture{}
	b.frames = map[string]*frameTimer{}
	b.usb = nil
	b.lines = map[string]*lines{}
	b.wdg = watchdog{}
}

// PowerCycle drops every opened device and the vector table. Fault
// settings and the backup registers survive.
func (b *Board) PowerCycle() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clear()
}

// Absent makes the named devices fail to open with not_present.
func (b *Board) Absent(names ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, n := range names {
		b.absent[n] = true
	}
}

// Fail makes the named devices fail to open with a hardware error.
func (b *Board) Fail(names ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, n := range names {
		b.failing[n] = true
	}
}

// Heal clears every fault setting.
func (b *Board) Heal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.absent = map[string]bool{}
	b.failing = map[string]bool{}
}

// fault must be called with mu held.
func (b *Board) fault(name string) error {
	switch {
	case b.absent[name]:
		return errcode.New(errcode.NotPresent, op, name+": not fitted")
	case b.failing[name]:
		return errcode.New(errcode.Error, op, name+": no response")
	}
	return nil
}

// Set installs a vector entry.
func (b *Board) Set(v periph.Vector, prio periph.Priority, entry func()) error {
	if !v.Valid() {
		return errcode.New(errcode.UnknownVector, op, v.String())
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.vectors[v] = vectorSlot{prio: prio, entry: entry}
	return nil
}

// Installed reports the priority of an installed vector.
func (b *Board) Installed(v periph.Vector) (periph.Priority, bool) {
	if !v.Valid() {
		return 0, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.vectors[v]
	return s.prio, s.entry != nil
}

// Raise runs the installed entry of v, as the NVIC would. A vector with no
// entry is counted and ignored.
func (b *Board) Raise(v periph.Vector) {
	if !v.Valid() {
		return
	}
	b.mu.Lock()
	entry := b.vectors[v].entry
	if entry == nil {
		b.unrouted++
	}
	b.mu.Unlock()
	if entry != nil {
		entry()
	}
}

// Unrouted counts raises of vectors with no installed entry.
func (b *Board) Unrouted() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unrouted
}

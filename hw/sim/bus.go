package sim

import (
	"errors"
	"sync"

	"boardcode-go/board/periph"
	"boardcode-go/drivers/i2c"
	"boardcode-go/drivers/spi"
	"boardcode-go/errcode"
)

// Flash is a W25X serial flash on the SPI flash bus.
type Flash struct {
	mu      sync.Mutex
	ID      [3]byte
	Mem     []byte
	asleep  bool
	wel     bool
	removed bool
}

// NewFlash returns a 2 MiB W25X16 (EF 30 15) filled with 0xFF.
func NewFlash() *Flash {
	f := &Flash{ID: [3]byte{0xEF, 0x30, 0x15}, Mem: make([]byte, 1<<21), asleep: true}
	for i := range f.Mem {
		f.Mem[i] = 0xFF
	}
	return f
}

// tx answers one chip-select framed transaction. A removed chip leaves MISO
// pulled high.
func (f *Flash) tx(w, r []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range r {
		r[i] = 0xFF
	}
	if f.removed || len(w) == 0 {
		return
	}
	if f.asleep && w[0] != 0xAB {
		return
	}
	switch w[0] {
	case 0xAB:
		f.asleep = false
	case 0xB9:
		f.asleep = true
	case 0x9F:
		if len(r) >= 4 {
			copy(r[1:4], f.ID[:])
		}
	case 0x05:
		if len(r) >= 2 {
			r[1] = 0
			if f.wel {
				r[1] |= 0x02
			}
		}
	case 0x06:
		f.wel = true
	case 0x03:
		if len(w) < 4 || len(r) < 4 {
			return
		}
		addr := int(w[1])<<16 | int(w[2])<<8 | int(w[3])
		for i := 4; i < len(r); i++ {
			if a := addr + i - 4; a < len(f.Mem) {
				r[i] = f.Mem[a]
			}
		}
	}
}

// RemoveFlash unsolders the flash chip.
func (b *Board) RemoveFlash() {
	b.flash.mu.Lock()
	b.flash.removed = true
	b.flash.mu.Unlock()
}

// Flash returns the simulated chip.
func (b *Board) Flash() *Flash { return b.flash }

// FlashBus names the SPI controller the flash chip sits on.
const FlashBus = "flash"

type spiBus struct {
	cfg    periph.SPIConfig
	dmaIRQ func()
	dev    func(w, r []byte)

	mu       sync.Mutex
	selected bool
	done     int
	closed   bool
}

func (s *spiBus) Tx(w, r []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errcode.New(errcode.NotInitialized, op, s.cfg.Name)
	}
	if s.dev != nil && s.selected {
		s.dev(w, r)
	} else {
		for i := range r {
			r[i] = 0xFF
		}
	}
	s.done++
	s.mu.Unlock()
	if s.dmaIRQ != nil {
		s.dmaIRQ()
	}
	return nil
}

func (s *spiBus) Transfer(b byte) (byte, error) {
	var r [1]byte
	err := s.Tx([]byte{b}, r[:])
	return r[0], err
}

func (s *spiBus) Select(on bool) {
	s.mu.Lock()
	s.selected = on
	s.mu.Unlock()
}

func (s *spiBus) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == 0 {
		return false
	}
	s.done--
	return true
}

func (s *spiBus) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// OpenSPI opens a controller. The controller named FlashBus has the flash
// chip on its chip select.
func (b *Board) OpenSPI(cfg periph.SPIConfig, dmaIRQ func()) (spi.Bus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fault(cfg.Name); err != nil {
		return nil, err
	}
	s := &spiBus{cfg: cfg, dmaIRQ: dmaIRQ}
	if cfg.Name == FlashBus {
		s.dev = b.flash.tx
	}
	b.spis[cfg.Name] = s
	return s, nil
}

// ErrNACK is returned for transfers to an address nothing answers.
var ErrNACK = errors.New("sim: address not acknowledged")

// I2CDevice answers transfers addressed to it.
type I2CDevice func(w, r []byte) error

type adapter struct {
	b   *Board
	cfg periph.I2CConfig

	mu      sync.Mutex
	devices map[uint16]I2CDevice
	fault   error
	closed  bool
}

func (a *adapter) Tx(addr uint16, w, r []byte) error {
	a.mu.Lock()
	dev, ok := a.devices[addr]
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return errcode.New(errcode.NotInitialized, op, a.cfg.Name)
	}
	a.b.Raise(a.cfg.Event.Vector)
	if !ok {
		a.mu.Lock()
		a.fault = ErrNACK
		a.mu.Unlock()
		a.b.Raise(a.cfg.Error.Vector)
		return ErrNACK
	}
	return dev(w, r)
}

func (a *adapter) Event() {}

func (a *adapter) Fault() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	f := a.fault
	a.fault = nil
	return f
}

func (a *adapter) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return nil
}

func (b *Board) OpenI2C(cfg periph.I2CConfig) (i2c.Adapter, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fault(cfg.Name); err != nil {
		return nil, err
	}
	a := &adapter{b: b, cfg: cfg, devices: map[uint16]I2CDevice{}}
	b.i2cs[cfg.Name] = a
	return a, nil
}

// AttachI2C puts a device at addr on adapter name.
func (b *Board) AttachI2C(name string, addr uint16, dev I2CDevice) error {
	b.mu.Lock()
	a, ok := b.i2cs[name]
	b.mu.Unlock()
	if !ok {
		return errcode.New(errcode.NotPresent, op, name)
	}
	a.mu.Lock()
	a.devices[addr] = dev
	a.mu.Unlock()
	return nil
}

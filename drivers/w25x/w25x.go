// Package w25x drives the Winbond W25X serial flash on the board's SPI bus.
// Bring-up only needs the JEDEC probe; the read and status helpers are used
// by the settings store and diagnostics.
//
// NOTE: the drivers.SPI handed in must frame each Tx with chip select.
package w25x

import (
	"errors"

	"tinygo.org/x/drivers"
)

const (
	cmdWriteEnable = 0x06
	cmdReadStatus  = 0x05
	cmdRead        = 0x03
	cmdJEDECID     = 0x9F
	cmdPowerDown   = 0xB9
	cmdReleasePD   = 0xAB

	statusBusy = 0x01
	statusWEL  = 0x02

	// ManufacturerWinbond is the JEDEC manufacturer byte.
	ManufacturerWinbond = 0xEF
)

var (
	ErrNoDevice     = errors.New("w25x: no device")
	ErrWrongPart    = errors.New("w25x: unexpected part")
	ErrOutOfRange   = errors.New("w25x: address out of range")
	ErrWriteDisable = errors.New("w25x: write enable did not latch")
)

// JEDEC is the identification triple.
type JEDEC struct {
	Manufacturer byte
	MemoryType   byte
	Capacity     byte
}

// Size returns the capacity in bytes encoded by the id (2^Capacity).
func (j JEDEC) Size() uint32 {
	if j.Capacity < 10 || j.Capacity > 31 {
		return 0
	}
	return 1 << j.Capacity
}

type Device struct {
	bus drivers.SPI
	id  JEDEC
	buf [4]byte
}

func New(bus drivers.SPI) *Device { return &Device{bus: bus} }

// Configure wakes the part and checks it is a Winbond flash.
func (d *Device) Configure() error {
	if err := d.bus.Tx([]byte{cmdReleasePD}, nil); err != nil {
		return err
	}
	id, err := d.ReadID()
	if err != nil {
		return err
	}
	switch {
	case id.Manufacturer == 0x00 || id.Manufacturer == 0xFF:
		return ErrNoDevice
	case id.Manufacturer != ManufacturerWinbond:
		return ErrWrongPart
	}
	d.id = id
	return nil
}

// ID returns the identity read by Configure.
func (d *Device) ID() JEDEC { return d.id }

func (d *Device) ReadID() (JEDEC, error) {
	w := []byte{cmdJEDECID, 0, 0, 0}
	r := d.buf[:]
	if err := d.bus.Tx(w, r); err != nil {
		return JEDEC{}, err
	}
	return JEDEC{Manufacturer: r[1], MemoryType: r[2], Capacity: r[3]}, nil
}

func (d *Device) Status() (byte, error) {
	r := d.buf[:2]
	if err := d.bus.Tx([]byte{cmdReadStatus, 0}, r); err != nil {
		return 0, err
	}
	return r[1], nil
}

// Busy reports whether a program or erase is in progress.
func (d *Device) Busy() (bool, error) {
	s, err := d.Status()
	return s&statusBusy != 0, err
}

func (d *Device) WriteEnable() error {
	if err := d.bus.Tx([]byte{cmdWriteEnable}, nil); err != nil {
		return err
	}
	s, err := d.Status()
	if err != nil {
		return err
	}
	if s&statusWEL == 0 {
		return ErrWriteDisable
	}
	return nil
}

// Read fills p from addr.
func (d *Device) Read(addr uint32, p []byte) error {
	if size := d.id.Size(); size != 0 && uint64(addr)+uint64(len(p)) > uint64(size) {
		return ErrOutOfRange
	}
	w := make([]byte, 4+len(p))
	w[0] = cmdRead
	w[1], w[2], w[3] = byte(addr>>16), byte(addr>>8), byte(addr)
	r := make([]byte, len(w))
	if err := d.bus.Tx(w, r); err != nil {
		return err
	}
	copy(p, r[4:])
	return nil
}

func (d *Device) PowerDown() error { return d.bus.Tx([]byte{cmdPowerDown}, nil) }

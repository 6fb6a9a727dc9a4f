package periph

import (
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Port is a GPIO port. The zero value means "no pin".
type Port uint8

const (
	PortNone Port = iota
	PortA
	PortB
	PortC
	PortD
	PortE
)

func (p Port) String() string {
	if p == PortNone || p > PortE {
		return "-"
	}
	return string(rune('A' + int(p-PortA)))
}

// PinID is a (port, pin-number) pair.
type PinID struct {
	Port Port
	Num  uint8
}

func (id PinID) String() string {
	if id.Port == PortNone {
		return "none"
	}
	s := "P" + id.Port.String()
	if id.Num >= 10 {
		s += string(rune('0' + id.Num/10))
	}
	return s + string(rune('0'+id.Num%10))
}

// PinMode is the electrical function of a pin.
type PinMode uint8

const (
	ModeInput PinMode = iota // pull selected by Pin.Pull
	ModeOutputPP
	ModeOutputOD
	ModeAltPP
	ModeAltOD
	ModeAnalog
)

var modeNames = [...]string{"in", "out_pp", "out_od", "af_pp", "af_od", "analog"}

func (m PinMode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "unknown"
}

// Pin is a full pin binding. Speed is the output slew class; zero for inputs.
type Pin struct {
	Port  Port
	Num   uint8
	Mode  PinMode
	Pull  gpio.Pull
	Speed physic.Frequency
}

func (p Pin) ID() PinID { return PinID{Port: p.Port, Num: p.Num} }

// IsZero reports an unbound pin.
func (p Pin) IsZero() bool { return p.Port == PortNone }

// Common speed classes of the F1 GPIO block.
const (
	Speed2MHz  = 2 * physic.MegaHertz
	Speed10MHz = 10 * physic.MegaHertz
	Speed50MHz = 50 * physic.MegaHertz
)

// In returns an input pin binding.
func In(port Port, num uint8, pull gpio.Pull) Pin {
	return Pin{Port: port, Num: num, Mode: ModeInput, Pull: pull}
}

// Alt returns an alternate-function push-pull binding.
func Alt(port Port, num uint8, speed physic.Frequency) Pin {
	return Pin{Port: port, Num: num, Mode: ModeAltPP, Pull: gpio.Float, Speed: speed}
}

// AltOD returns an alternate-function open-drain binding.
func AltOD(port Port, num uint8, speed physic.Frequency) Pin {
	return Pin{Port: port, Num: num, Mode: ModeAltOD, Pull: gpio.Float, Speed: speed}
}

// Out returns a general purpose push-pull output binding.
func Out(port Port, num uint8, speed physic.Frequency) Pin {
	return Pin{Port: port, Num: num, Mode: ModeOutputPP, Pull: gpio.Float, Speed: speed}
}

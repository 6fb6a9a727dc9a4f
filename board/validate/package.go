package validate

import "boardcode-go/board/periph"

// Package describes which GPIO pins a chip package bonds out.
type Package struct {
	Name  string
	ports [periph.PortE + 1]uint16 // bit n set = pin n exists
}

// Has reports whether id is bonded out on the package.
func (p *Package) Has(id periph.PinID) bool {
	if id.Port == periph.PortNone || id.Port > periph.PortE || id.Num > 15 {
		return false
	}
	return p.ports[id.Port]&(1<<id.Num) != 0
}

// NewPackage builds a package from per-port pin masks.
func NewPackage(name string, masks map[periph.Port]uint16) *Package {
	p := &Package{Name: name}
	for port, m := range masks {
		if port > periph.PortNone && port <= periph.PortE {
			p.ports[port] = m
		}
	}
	return p
}

// STM32F103CB is the LQFP48 medium-density part: PA0-15, PB0-15, PC13-15,
// PD0-1 (oscillator pins).
var STM32F103CB = NewPackage("STM32F103CB", map[periph.Port]uint16{
	periph.PortA: 0xFFFF,
	periph.PortB: 0xFFFF,
	periph.PortC: 0xE000,
	periph.PortD: 0x0003,
})

package periph

import "strconv"

// DMAChannel identifies one channel of a DMA controller.
type DMAChannel struct {
	Controller uint8 // 1-based
	Channel    uint8 // 1-based
}

func (c DMAChannel) String() string {
	return "DMA" + strconv.Itoa(int(c.Controller)) + "_CH" + strconv.Itoa(int(c.Channel))
}

// Vector returns the completion vector of the channel (DMA1 only on F1
// medium density).
func (c DMAChannel) Vector() (Vector, bool) {
	if c.Controller != 1 || c.Channel < 1 || c.Channel > 7 {
		return 0, false
	}
	return VecDMA1Ch1 + Vector(c.Channel-1), true
}

type DMADir uint8

const (
	PeriphToMem DMADir = iota
	MemToPeriph
)

type DMAWidth uint8

const (
	WidthByte DMAWidth = iota
	WidthHalfWord
	WidthWord
)

// Bytes returns the transfer unit size.
func (w DMAWidth) Bytes() int { return 1 << w }

type DMAPriority uint8

const (
	DMALow DMAPriority = iota
	DMAMedium
	DMAHigh
	DMAVeryHigh
)

// DMAStream is one direction of a DMA binding.
type DMAStream struct {
	Channel  DMAChannel
	Dir      DMADir
	Width    DMAWidth
	Circular bool
	Priority DMAPriority
}

// DMABinding groups the completion interrupt and the RX/TX streams of a
// descriptor. Either stream may be nil.
type DMABinding struct {
	IRQ IRQBinding
	RX  *DMAStream
	TX  *DMAStream
}

func (b *DMABinding) streams() []*DMAStream {
	var out []*DMAStream
	if b.RX != nil {
		out = append(out, b.RX)
	}
	if b.TX != nil {
		out = append(out, b.TX)
	}
	return out
}

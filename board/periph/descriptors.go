package periph

import (
	"time"

	"periph.io/x/conn/v3/physic"
)

// Direction is the logical data direction of a serial peripheral.
type Direction uint8

const (
	DirRX Direction = 1 << iota
	DirTX

	DirBoth = DirRX | DirTX
)

type Parity uint8

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

type StopBits uint8

const (
	Stop1 StopBits = iota
	Stop2
)

// USARTConfig describes one USART instance.
type USARTConfig struct {
	Name        string
	Regs        Instance
	Baud        uint32
	WordLength  uint8 // 8 or 9
	Parity      Parity
	StopBits    StopBits
	FlowControl bool
	Dir         Direction
	IRQ         IRQBinding
	RX, TX      Pin
}

func (USARTConfig) Class() Class    { return ClassUSART }
func (c USARTConfig) Label() string { return c.Name }
func (c USARTConfig) Claims() []Claim {
	var s claimSet
	s.instance(c.Regs)
	s.vector(c.IRQ.Vector)
	s.pin(c.RX)
	s.pin(c.TX)
	return s
}

// SPIConfig describes one SPI controller and its chip select.
type SPIConfig struct {
	Name          string
	Regs          Instance
	Master        bool
	Mode          uint8 // CPOL<<1 | CPHA
	DataSize      uint8 // 8 or 16
	MSBFirst      bool
	Prescaler     uint16
	CRC           bool
	CRCPolynomial uint16
	DMA           *DMABinding
	SSel          Pin
	SCLK          Pin
	MISO          Pin
	MOSI          Pin
}

func (SPIConfig) Class() Class    { return ClassSPI }
func (c SPIConfig) Label() string { return c.Name }
func (c SPIConfig) Claims() []Claim {
	var s claimSet
	s.instance(c.Regs)
	s.dma(c.DMA)
	for _, p := range []Pin{c.SSel, c.SCLK, c.MISO, c.MOSI} {
		s.pin(p)
	}
	return s
}

// I2CConfig describes one I2C adapter. Event and error lines have their own
// vectors.
type I2CConfig struct {
	Name            string
	Regs            Instance
	Clock           physic.Frequency
	OwnAddr         uint16
	FastDuty169     bool
	TransferTimeout time.Duration
	SCL, SDA        Pin
	Event, Error    IRQBinding
}

func (I2CConfig) Class() Class     { return ClassI2C }
func (c I2CConfig) Label() string { return c.Name }
func (c I2CConfig) Claims() []Claim {
	var s claimSet
	s.instance(c.Regs)
	s.vector(c.Event.Vector)
	s.vector(c.Error.Vector)
	s.pin(c.SCL)
	s.pin(c.SDA)
	return s
}

// ADCConfig describes the converter and its circular DMA stream.
type ADCConfig struct {
	Name   string
	Regs   Instance
	DMA    DMABinding
	Inputs []Pin
	// Samples per half buffer; the DMA interrupt fires on half and full.
	Samples int
}

func (ADCConfig) Class() Class    { return ClassADC }
func (c ADCConfig) Label() string { return c.Name }
func (c ADCConfig) Claims() []Claim {
	var s claimSet
	s.instance(c.Regs)
	s.dma(&c.DMA)
	for _, p := range c.Inputs {
		s.pin(p)
	}
	return s
}

// TimerPin is a timer channel routed to a pin.
type TimerPin struct {
	TimerChannel
	Pin Pin
}

// ServoConfig describes the PWM output bank.
type ServoConfig struct {
	Name         string
	Tick         physic.Frequency // counter resolution
	Update       physic.Frequency // output frame rate
	InitialPulse time.Duration
	Remap        string
	Channels     []TimerPin
}

func (ServoConfig) Class() Class    { return ClassServo }
func (c ServoConfig) Label() string { return c.Name }
func (c ServoConfig) Claims() []Claim {
	var s claimSet
	for _, ch := range c.Channels {
		s.timerChannel(ch.TimerChannel)
		s.pin(ch.Pin)
	}
	return s
}

// PWMInputConfig describes the receiver capture bank. Every timer used by a
// channel contributes its capture vector.
type PWMInputConfig struct {
	Name     string
	Tick     physic.Frequency
	Preempt  Priority
	Channels []TimerPin
}

func (PWMInputConfig) Class() Class    { return ClassPWMInput }
func (c PWMInputConfig) Label() string { return c.Name }
func (c PWMInputConfig) Claims() []Claim {
	var s claimSet
	for _, t := range c.Timers() {
		if v, ok := t.Vector(); ok {
			s.vector(v)
		}
	}
	for _, ch := range c.Channels {
		s.timerChannel(ch.TimerChannel)
		s.pin(ch.Pin)
	}
	return s
}

// Timers returns the distinct timers in channel order.
func (c PWMInputConfig) Timers() []Timer {
	var out []Timer
	seen := map[Timer]bool{}
	for _, ch := range c.Channels {
		if !seen[ch.Timer] {
			seen[ch.Timer] = true
			out = append(out, ch.Timer)
		}
	}
	return out
}

// PPMConfig describes a combined-PPM decoder on one capture channel.
type PPMConfig struct {
	Name     string
	Tick     physic.Frequency
	Preempt  Priority
	Input    TimerPin
	SyncGap  time.Duration
	MinPulse time.Duration
	MaxPulse time.Duration
}

func (PPMConfig) Class() Class    { return ClassPPM }
func (c PPMConfig) Label() string { return c.Name }
func (c PPMConfig) Claims() []Claim {
	var s claimSet
	if v, ok := c.Input.Timer.Vector(); ok {
		s.vector(v)
	}
	s.timerChannel(c.Input.TimerChannel)
	s.pin(c.Input.Pin)
	return s
}

// SpektrumConfig describes a satellite receiver: a receive-only USART (listed
// in the USART table, not claimed here) plus a frame timer.
type SpektrumConfig struct {
	Name       string
	USART      USARTConfig
	FrameTimer Timer
	FrameRate  physic.Frequency
	TimerIRQ   IRQBinding
}

func (SpektrumConfig) Class() Class    { return ClassSpektrum }
func (c SpektrumConfig) Label() string { return c.Name }
func (c SpektrumConfig) Claims() []Claim {
	var s claimSet
	s.instance(Instance(c.FrameTimer.String()))
	s.vector(c.TimerIRQ.Vector)
	return s
}

// USBConfig describes the full-speed device port.
type USBConfig struct {
	Name   string
	DM, DP Pin
	IRQ    IRQBinding
}

func (USBConfig) Class() Class    { return ClassUSB }
func (c USBConfig) Label() string { return c.Name }
func (c USBConfig) Claims() []Claim {
	var s claimSet
	s.instance("USB")
	s.vector(c.IRQ.Vector)
	s.pin(c.DM)
	s.pin(c.DP)
	return s
}

// GPIOConfig describes a group of plain outputs (LEDs, enables).
type GPIOConfig struct {
	Name      string
	Pins      []Pin
	ActiveLow bool
}

func (GPIOConfig) Class() Class    { return ClassGPIO }
func (c GPIOConfig) Label() string { return c.Name }
func (c GPIOConfig) Claims() []Claim {
	var s claimSet
	for _, p := range c.Pins {
		s.pin(p)
	}
	return s
}

// FlashConfig describes a serial flash chip behind an SPI controller. The
// chip select belongs to the controller's descriptor.
type FlashConfig struct {
	Name string
	Bus  int // SPI table index
}

func (FlashConfig) Class() Class    { return ClassFlash }
func (c FlashConfig) Label() string { return c.Name }
func (FlashConfig) Claims() []Claim { return nil }

package coptercontrol

import (
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"boardcode-go/board/periph"
)

// Default link rates.
const (
	TelemetryBaud = 57600
	GPSBaud       = 57600
	SpektrumBaud  = 115200
)

// Descriptor names; the simulator addresses devices by these.
const (
	NameTelemetry = "telemetry"
	NameGPS       = "gps"
	NameSpektrum  = "spektrum"
	NameFlash     = "flash"
	NameSettings  = "w25x"
	NameADC       = "adc"
	NameServo     = "servo"
	NamePWM       = "pwm"
	NamePPM       = "ppm"
	NameUSB       = "usb"
	NameLED       = "led"
	NameI2C       = "i2c-main"
)

// ServoUpdate is the output frame rate.
const ServoUpdate = 50 * physic.Hertz

// ServoInitialPulse is the width every output starts at.
const ServoInitialPulse = 1000 * time.Microsecond

// Every timer on the board counts at 1 MHz.
const timerTick = physic.MegaHertz

func telemetryUSART(baud uint32) periph.USARTConfig {
	return periph.USARTConfig{
		Name: NameTelemetry, Regs: "USART1", Baud: baud,
		WordLength: 8, Parity: periph.ParityNone, StopBits: periph.Stop1, Dir: periph.DirBoth,
		IRQ: periph.IRQBinding{Vector: periph.VecUSART1, Preempt: periph.PrioMid, Enabled: true},
		RX:  periph.In(periph.PortA, 10, gpio.PullUp),
		TX:  periph.Alt(periph.PortA, 9, periph.Speed2MHz),
	}
}

// The flexi port: USART3 on PB10/PB11, shared by GPS, Spektrum and I2C2.

func gpsUSART(baud uint32) periph.USARTConfig {
	return periph.USARTConfig{
		Name: NameGPS, Regs: "USART3", Baud: baud,
		WordLength: 8, Parity: periph.ParityNone, StopBits: periph.Stop1, Dir: periph.DirBoth,
		IRQ: periph.IRQBinding{Vector: periph.VecUSART3, Preempt: periph.PrioMid, Enabled: true},
		RX:  periph.In(periph.PortB, 11, gpio.PullUp),
		TX:  periph.Alt(periph.PortB, 10, periph.Speed2MHz),
	}
}

// spektrumUSART is receive only; TX floats (it becomes the bind line).
func spektrumUSART(baud uint32) periph.USARTConfig {
	return periph.USARTConfig{
		Name: NameSpektrum, Regs: "USART3", Baud: baud,
		WordLength: 8, Parity: periph.ParityNone, StopBits: periph.Stop1, Dir: periph.DirRX,
		IRQ: periph.IRQBinding{Vector: periph.VecUSART3, Preempt: periph.PrioHigh, Enabled: true},
		RX:  periph.In(periph.PortB, 11, gpio.PullUp),
		TX:  periph.In(periph.PortB, 10, gpio.Float),
	}
}

func spektrumReceiver(baud uint32) periph.SpektrumConfig {
	return periph.SpektrumConfig{
		Name:       NameSpektrum,
		USART:      spektrumUSART(baud),
		FrameTimer: periph.TIM6,
		FrameRate:  60 * physic.Hertz,
		TimerIRQ:   periph.IRQBinding{Vector: periph.VecTIM6, Preempt: periph.PrioMid, Enabled: true},
	}
}

// flashSPI is SPI2 carrying the W25X flash and the accelerometer.
func flashSPI() periph.SPIConfig {
	stream := func(ch uint8, dir periph.DMADir) *periph.DMAStream {
		return &periph.DMAStream{
			Channel: periph.DMAChannel{Controller: 1, Channel: ch},
			Dir:     dir, Width: periph.WidthByte, Priority: periph.DMAHigh,
		}
	}
	return periph.SPIConfig{
		Name: NameFlash, Regs: "SPI2",
		Master: true, Mode: 3, DataSize: 8, MSBFirst: true, Prescaler: 8, CRCPolynomial: 7,
		DMA: &periph.DMABinding{
			IRQ: periph.IRQBinding{Vector: periph.VecDMA1Ch4, Preempt: periph.PrioHigh, Enabled: true},
			RX:  stream(4, periph.PeriphToMem),
			TX:  stream(5, periph.MemToPeriph),
		},
		SSel: periph.Out(periph.PortB, 12, periph.Speed10MHz),
		SCLK: periph.Alt(periph.PortB, 13, periph.Speed10MHz),
		MISO: periph.In(periph.PortB, 14, gpio.Float),
		MOSI: periph.Alt(periph.PortB, 15, periph.Speed10MHz),
	}
}

// gyroADC samples the three analog gyro axes.
func gyroADC() periph.ADCConfig {
	analog := func(n uint8) periph.Pin {
		return periph.Pin{Port: periph.PortA, Num: n, Mode: periph.ModeAnalog, Pull: gpio.Float}
	}
	return periph.ADCConfig{
		Name: NameADC, Regs: "ADC1",
		DMA: periph.DMABinding{
			IRQ: periph.IRQBinding{Vector: periph.VecDMA1Ch1, Preempt: periph.PrioHigh, Enabled: true},
			RX: &periph.DMAStream{
				Channel: periph.DMAChannel{Controller: 1, Channel: 1},
				Dir:     periph.PeriphToMem, Width: periph.WidthWord, Circular: true, Priority: periph.DMAHigh,
			},
		},
		Inputs:  []periph.Pin{analog(3), analog(4), analog(5)},
		Samples: 8,
	}
}

func timerPin(t periph.Timer, ch uint8, p periph.Pin) periph.TimerPin {
	return periph.TimerPin{TimerChannel: periph.TimerChannel{Timer: t, Channel: ch}, Pin: p}
}

// servoBank lists the six outputs in connector order. TIM3 needs the
// partial remap to reach PB4.
func servoBank() periph.ServoConfig {
	out := func(port periph.Port, n uint8) periph.Pin { return periph.Alt(port, n, periph.Speed2MHz) }
	return periph.ServoConfig{
		Name: NameServo, Tick: timerTick, Update: ServoUpdate,
		InitialPulse: ServoInitialPulse,
		Remap:        "TIM3_PARTIAL",
		Channels: []periph.TimerPin{
			timerPin(periph.TIM4, 4, out(periph.PortB, 9)),
			timerPin(periph.TIM4, 3, out(periph.PortB, 8)),
			timerPin(periph.TIM4, 2, out(periph.PortB, 7)),
			timerPin(periph.TIM1, 1, out(periph.PortA, 8)),
			timerPin(periph.TIM3, 1, out(periph.PortB, 4)),
			timerPin(periph.TIM2, 3, out(periph.PortA, 2)),
		},
	}
}

func pwmInputs() periph.PWMInputConfig {
	in := func(port periph.Port, n uint8) periph.Pin { return periph.In(port, n, gpio.PullDown) }
	return periph.PWMInputConfig{
		Name: NamePWM, Tick: timerTick, Preempt: periph.PrioMid,
		Channels: []periph.TimerPin{
			timerPin(periph.TIM4, 1, in(periph.PortB, 6)),
			timerPin(periph.TIM3, 2, in(periph.PortB, 5)),
			timerPin(periph.TIM3, 3, in(periph.PortB, 0)),
			timerPin(periph.TIM3, 4, in(periph.PortB, 1)),
			timerPin(periph.TIM2, 1, in(periph.PortA, 0)),
			timerPin(periph.TIM2, 2, in(periph.PortA, 1)),
		},
	}
}

// ppmInput uses the first receiver pin, TIM4 channel 1.
func ppmInput() periph.PPMConfig {
	return periph.PPMConfig{
		Name: NamePPM, Tick: timerTick, Preempt: periph.PrioMid,
		Input:    timerPin(periph.TIM4, 1, periph.In(periph.PortB, 6, gpio.PullDown)),
		SyncGap:  3800 * time.Microsecond,
		MinPulse: 750 * time.Microsecond,
		MaxPulse: 2250 * time.Microsecond,
	}
}

func usbPort() periph.USBConfig {
	return periph.USBConfig{
		Name: NameUSB,
		DM:   periph.Alt(periph.PortA, 11, periph.Speed50MHz),
		DP:   periph.Alt(periph.PortA, 12, periph.Speed50MHz),
		IRQ:  periph.IRQBinding{Vector: periph.VecUSBLP, Preempt: periph.PrioLow, Enabled: true},
	}
}

func statusLED() periph.GPIOConfig {
	return periph.GPIOConfig{Name: NameLED, ActiveLow: true, Pins: []periph.Pin{periph.Out(periph.PortA, 6, periph.Speed50MHz)}}
}

// mainI2C is I2C2 on the flexi port pins.
func mainI2C() periph.I2CConfig {
	return periph.I2CConfig{
		Name: NameI2C, Regs: "I2C2", Clock: 400 * physic.KiloHertz, TransferTimeout: 50 * time.Millisecond,
		SCL:   periph.AltOD(periph.PortB, 10, periph.Speed10MHz),
		SDA:   periph.AltOD(periph.PortB, 11, periph.Speed10MHz),
		Event: periph.IRQBinding{Vector: periph.VecI2C2EV, Preempt: periph.PrioHighest, Enabled: true},
		Error: periph.IRQBinding{Vector: periph.VecI2C2ER, Preempt: periph.PrioHighest, Enabled: true},
	}
}

// settingsFlash is the W25X on the flash bus, SPI table index 0.
func settingsFlash() periph.FlashConfig {
	return periph.FlashConfig{Name: NameSettings, Bus: 0}
}

// PriorityOrder lists classes from most to least latency critical.
var PriorityOrder = []periph.Class{
	periph.ClassI2C, periph.ClassSPI, periph.ClassADC, periph.ClassUSART,
	periph.ClassSpektrum, periph.ClassPWMInput, periph.ClassPPM, periph.ClassUSB,
}

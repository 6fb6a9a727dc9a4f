// Package periph holds the immutable peripheral configuration descriptors a
// board definition is made of: register setup, pin bindings, DMA streams and
// interrupt bindings. Descriptors are plain values; nothing in this package
// touches hardware.
package periph

// Class identifies a peripheral class (one generic driver per class).
type Class uint8

const (
	ClassSPI Class = iota
	ClassUSART
	ClassI2C
	ClassADC
	ClassServo
	ClassPWMInput
	ClassPPM
	ClassSpektrum
	ClassUSB
	ClassGPIO
	ClassFlash

	NumClasses
)

var classNames = [NumClasses]string{
	ClassSPI:      "spi",
	ClassUSART:    "usart",
	ClassI2C:      "i2c",
	ClassADC:      "adc",
	ClassServo:    "servo",
	ClassPWMInput: "pwm",
	ClassPPM:      "ppm",
	ClassSpektrum: "spektrum",
	ClassUSB:      "usb",
	ClassGPIO:     "gpio",
	ClassFlash:    "flash",
}

func (c Class) String() string {
	if c < NumClasses {
		return classNames[c]
	}
	return "unknown"
}

// Valid reports whether c is a known class.
func (c Class) Valid() bool { return c < NumClasses }

// Instance names a peripheral register block ("USART1", "SPI2", "TIM6").
type Instance string

// Descriptor is implemented by every per-class configuration struct.
type Descriptor interface {
	Class() Class
	// Label is the board-level role of the instance ("telemetry", "flash_accel").
	Label() string
	// Claims lists the hardware resources the descriptor owns.
	Claims() []Claim
}

// Package timcap holds the timer input-capture plumbing shared by the PWM
// and PPM receiver drivers.
package timcap

import (
	"time"

	"periph.io/x/conn/v3/physic"

	"boardcode-go/board/periph"
)

// Edge is one latched capture.
type Edge struct {
	Channel periph.TimerChannel
	Count   uint16
	Rising  bool
}

// Source hands out latched edges. Pending is called from the timer ISR and
// must not block.
type Source interface {
	Pending(t periph.Timer, dst []Edge) int
	Close() error
}

// Backend opens capture sources for a set of channels.
type Backend interface {
	OpenCapture(name string, channels []periph.TimerPin, tick physic.Frequency, irq func(periph.Timer)) (Source, error)
}

// Width converts a wrapped 16-bit counter span to a duration at tick.
func Width(from, to uint16, tick physic.Frequency) time.Duration {
	if tick <= 0 {
		return 0
	}
	ticks := uint16(to - from)
	return tick.Period() * time.Duration(ticks)
}

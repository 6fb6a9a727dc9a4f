// Package validate checks a board definition for resource conflicts before
// anything touches hardware.
package validate

import (
	"fmt"

	"go.uber.org/multierr"

	"boardcode-go/board/periph"
	"boardcode-go/errcode"
)

const op = "validate"

// Check reports every pin, DMA channel, vector, timer channel or peripheral
// instance claimed by more than one descriptor, and every pin that does not
// exist on pkg. A nil pkg skips the package check. Errors are aggregated.
func Check(pkg *Package, descs ...periph.Descriptor) error {
	type owner struct {
		label string
		idx   int
	}
	var errs error
	seen := map[periph.ClaimKind]map[string]owner{}
	for i, d := range descs {
		for _, c := range d.Claims() {
			if c.Kind == periph.ClaimPin && pkg != nil && !pkg.Has(c.Pin) {
				errs = multierr.Append(errs, errcode.New(errcode.UnknownPin, op,
					fmt.Sprintf("%s: %s not on %s", d.Label(), c.Key, pkg.Name)))
			}
			m := seen[c.Kind]
			if m == nil {
				m = map[string]owner{}
				seen[c.Kind] = m
			}
			prev, dup := m[c.Key]
			switch {
			case !dup:
				m[c.Key] = owner{label: d.Label(), idx: i}
			case prev.idx != i:
				errs = multierr.Append(errs, errcode.New(errcode.ConfigConflict, op,
					fmt.Sprintf("%s %s claimed by %s and %s", c.Kind, c.Key, prev.label, d.Label())))
			}
		}
	}
	return errs
}

// IRQs lists the interrupt bindings a descriptor enables.
func IRQs(d periph.Descriptor) []periph.IRQBinding {
	var out []periph.IRQBinding
	add := func(b periph.IRQBinding) {
		if b.Enabled {
			out = append(out, b)
		}
	}
	switch c := d.(type) {
	case periph.USARTConfig:
		add(c.IRQ)
	case periph.SPIConfig:
		if c.DMA != nil {
			add(c.DMA.IRQ)
		}
	case periph.I2CConfig:
		add(c.Event)
		add(c.Error)
	case periph.ADCConfig:
		add(c.DMA.IRQ)
	case periph.PWMInputConfig:
		for _, t := range c.Timers() {
			if v, ok := t.Vector(); ok {
				add(periph.IRQBinding{Vector: v, Preempt: c.Preempt, Enabled: true})
			}
		}
	case periph.PPMConfig:
		if v, ok := c.Input.Timer.Vector(); ok {
			add(periph.IRQBinding{Vector: v, Preempt: c.Preempt, Enabled: true})
		}
	case periph.SpektrumConfig:
		add(c.TimerIRQ)
	case periph.USBConfig:
		add(c.IRQ)
	}
	return out
}

// Priorities checks the board-wide preemption ordering: order lists classes
// from most to least latency critical, and no binding of a class may be
// more urgent than the least urgent binding of any class before it.
// Classes not in order are not checked.
func Priorities(order []periph.Class, descs ...periph.Descriptor) error {
	type span struct {
		lo, hi periph.Priority
		set    bool
	}
	var spans [periph.NumClasses]span
	for _, d := range descs {
		if !d.Class().Valid() {
			continue
		}
		s := &spans[d.Class()]
		for _, b := range IRQs(d) {
			if !s.set {
				s.lo, s.hi, s.set = b.Preempt, b.Preempt, true
				continue
			}
			s.lo = min(s.lo, b.Preempt)
			s.hi = max(s.hi, b.Preempt)
		}
	}

	var errs error
	for i, a := range order {
		if !a.Valid() || !spans[a].set {
			continue
		}
		for _, b := range order[i+1:] {
			if !b.Valid() || !spans[b].set {
				continue
			}
			if spans[b].hi > spans[a].lo {
				errs = multierr.Append(errs, errcode.New(errcode.ConfigConflict, op,
					fmt.Sprintf("%s priority %s outranks %s priority %s", b, spans[b].hi, a, spans[a].lo)))
			}
		}
	}
	return errs
}

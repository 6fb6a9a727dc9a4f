// Package features holds the board feature flags. Which features exist in a
// binary is fixed by build tags (pios_gps, pios_spektrum, pios_pwm, pios_ppm,
// pios_usb_hid); Compiled is a constant so a branch guarded by Enabled on a
// feature that is not compiled in is removed by the compiler. Logical USART
// and COM indices are derived from the enabled set by Allocate.
package features

import (
	"strings"

	"github.com/google/shlex"
	"go.uber.org/multierr"

	"boardcode-go/errcode"
)

const op = "features"

// Flags is a set of optional board features.
type Flags uint8

const (
	GPS      Flags = 1 << iota // GPS receiver on the flexi USART
	Spektrum                   // Spektrum satellite on the flexi USART
	PWM                        // six-channel PWM receiver capture
	PPM                        // combined PPM receiver on one capture pin
	USBHID                     // USB HID COM link

	All = GPS | Spektrum | PWM | PPM | USBHID
)

// Compiled is the set of features built into this binary.
const Compiled = gpsBit | spektrumBit | pwmBit | ppmBit | usbHIDBit

var names = []struct {
	f    Flags
	name string
}{
	{GPS, "gps"},
	{Spektrum, "spektrum"},
	{PWM, "pwm"},
	{PPM, "ppm"},
	{USBHID, "usb_hid"},
}

// Default returns the stock selection for this build.
func Default() Flags { return defaultFlags }

// Has reports whether every feature in x is selected.
func (f Flags) Has(x Flags) bool { return f&x == x }

// Enabled is Has restricted to compiled features.
func (f Flags) Enabled(x Flags) bool { return Compiled&x == x && f&x == x }

func (f Flags) String() string {
	var parts []string
	for _, n := range names {
		if f&n.f != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// Lookup resolves a feature name.
func Lookup(name string) (Flags, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "usbhid" || name == "usb" {
		name = "usb_hid"
	}
	for _, n := range names {
		if n.name == name {
			return n.f, true
		}
	}
	return 0, false
}

// Parse applies a shell-style list of edits to the default selection:
// "name" or "+name" enables, "-name" disables, "none" clears and "default"
// restores the stock set. Commas separate as well as spaces.
func Parse(s string) (Flags, error) {
	toks, err := shlex.Split(strings.ReplaceAll(s, ",", " "))
	if err != nil {
		return 0, errcode.Wrap(errcode.InvalidParams, op, err)
	}
	f := Default()
	for _, tok := range toks {
		switch tok {
		case "none":
			f = 0
			continue
		case "default":
			f = Default()
			continue
		case "all":
			f = All
			continue
		}
		off := strings.HasPrefix(tok, "-")
		name := strings.TrimLeft(tok, "+-")
		x, ok := Lookup(name)
		if !ok {
			return 0, errcode.New(errcode.InvalidParams, op, "unknown feature "+name)
		}
		if off {
			f &^= x
		} else {
			f |= x
		}
	}
	return f, nil
}

// Validate rejects selections this board cannot build: features not
// compiled in, and features competing for the same hardware.
func (f Flags) Validate() error {
	var errs error
	if missing := f &^ Compiled; missing != 0 {
		errs = multierr.Append(errs, errcode.New(errcode.Unsupported, op, "not compiled in: "+missing.String()))
	}
	if f.Has(GPS | Spektrum) {
		errs = multierr.Append(errs, errcode.New(errcode.ConfigConflict, op, "gps and spektrum both need USART3"))
	}
	if f.Has(PWM | PPM) {
		errs = multierr.Append(errs, errcode.New(errcode.ConfigConflict, op, "pwm and ppm both need the TIM4 capture vector"))
	}
	return errs
}

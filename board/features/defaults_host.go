//go:build !tinygo

package features

// On the host every feature is compiled in; the default selection is the
// stock CopterControl image.
const defaultFlags = PWM | USBHID

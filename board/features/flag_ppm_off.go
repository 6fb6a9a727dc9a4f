//go:build !pios_ppm && tinygo

package features

const ppmBit Flags = 0

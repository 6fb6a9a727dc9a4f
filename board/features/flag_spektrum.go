//go:build pios_spektrum || !tinygo

package features

const spektrumBit = Spektrum

//go:build !pios_spektrum && tinygo

package features

const spektrumBit Flags = 0

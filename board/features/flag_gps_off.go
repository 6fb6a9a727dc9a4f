//go:build !pios_gps && tinygo

package features

const gpsBit Flags = 0

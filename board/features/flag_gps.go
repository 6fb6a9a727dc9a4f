//go:build pios_gps || !tinygo

package features

const gpsBit = GPS

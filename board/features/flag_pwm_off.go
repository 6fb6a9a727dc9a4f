//go:build !pios_pwm && tinygo

package features

const pwmBit Flags = 0

//go:build pios_pwm || !tinygo

package features

const pwmBit = PWM

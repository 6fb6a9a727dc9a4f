package periph

import "strconv"

// Vector is an interrupt vector number (STM32F10x IRQn numbering).
type Vector uint8

const (
	VecDMA1Ch1   Vector = 11
	VecDMA1Ch2   Vector = 12
	VecDMA1Ch3   Vector = 13
	VecDMA1Ch4   Vector = 14
	VecDMA1Ch5   Vector = 15
	VecDMA1Ch6   Vector = 16
	VecDMA1Ch7   Vector = 17
	VecADC12     Vector = 18
	VecUSBHP     Vector = 19
	VecUSBLP     Vector = 20
	VecTIM1CC    Vector = 27
	VecTIM2      Vector = 28
	VecTIM3      Vector = 29
	VecTIM4      Vector = 30
	VecI2C1EV    Vector = 31
	VecI2C1ER    Vector = 32
	VecI2C2EV    Vector = 33
	VecI2C2ER    Vector = 34
	VecSPI1      Vector = 35
	VecSPI2      Vector = 36
	VecUSART1    Vector = 37
	VecUSART2    Vector = 38
	VecUSART3    Vector = 39
	VecEXTI15_10 Vector = 40
	VecTIM6      Vector = 54

	// NumVectors bounds the vector table.
	NumVectors = 68
)

var vectorNames = map[Vector]string{
	VecDMA1Ch1: "DMA1_Channel1", VecDMA1Ch2: "DMA1_Channel2", VecDMA1Ch3: "DMA1_Channel3",
	VecDMA1Ch4: "DMA1_Channel4", VecDMA1Ch5: "DMA1_Channel5", VecDMA1Ch6: "DMA1_Channel6",
	VecDMA1Ch7: "DMA1_Channel7", VecADC12: "ADC1_2", VecUSBHP: "USB_HP_CAN1_TX",
	VecUSBLP: "USB_LP_CAN1_RX0", VecTIM1CC: "TIM1_CC", VecTIM2: "TIM2", VecTIM3: "TIM3",
	VecTIM4: "TIM4", VecI2C1EV: "I2C1_EV", VecI2C1ER: "I2C1_ER", VecI2C2EV: "I2C2_EV",
	VecI2C2ER: "I2C2_ER", VecSPI1: "SPI1", VecSPI2: "SPI2", VecUSART1: "USART1",
	VecUSART2: "USART2", VecUSART3: "USART3", VecEXTI15_10: "EXTI15_10", VecTIM6: "TIM6",
}

func (v Vector) String() string {
	if s, ok := vectorNames[v]; ok {
		return s
	}
	return "IRQ" + strconv.Itoa(int(v))
}

// Valid reports whether v fits the vector table.
func (v Vector) Valid() bool { return v < NumVectors }

// ParseVector resolves a vector by name ("USART1") or number ("37").
func ParseVector(s string) (Vector, bool) {
	for v, name := range vectorNames {
		if name == s {
			return v, true
		}
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n < NumVectors {
		return Vector(n), true
	}
	return 0, false
}

// Priority is a preemption level; numerically higher is more urgent.
type Priority uint8

const (
	PrioNone Priority = iota
	PrioLow
	PrioMid
	PrioHigh
	PrioHighest
)

var prioNames = [...]string{"none", "low", "mid", "high", "highest"}

func (p Priority) String() string {
	if int(p) < len(prioNames) {
		return prioNames[p]
	}
	return "unknown"
}

// NVIC returns the hardware preemption value (lower is more urgent).
func (p Priority) NVIC() uint8 {
	switch p {
	case PrioHighest:
		return 4
	case PrioHigh:
		return 5
	case PrioMid:
		return 8
	case PrioLow:
		return 12
	}
	return 15
}

// IRQBinding ties a descriptor to an interrupt vector.
type IRQBinding struct {
	Vector  Vector
	Preempt Priority
	Sub     uint8
	Enabled bool
}

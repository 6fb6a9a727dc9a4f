package periph

import "strconv"

// Timer is a general/advanced timer instance number (TIM1 = 1).
type Timer uint8

const (
	TIM1 Timer = 1
	TIM2 Timer = 2
	TIM3 Timer = 3
	TIM4 Timer = 4
	TIM6 Timer = 6
)

func (t Timer) String() string { return "TIM" + strconv.Itoa(int(t)) }

// Vector returns the interrupt used for capture/update events of t.
func (t Timer) Vector() (Vector, bool) {
	switch t {
	case TIM1:
		return VecTIM1CC, true
	case TIM2:
		return VecTIM2, true
	case TIM3:
		return VecTIM3, true
	case TIM4:
		return VecTIM4, true
	case TIM6:
		return VecTIM6, true
	}
	return 0, false
}

// TimerChannel is one capture/compare channel (1..4) of a timer.
type TimerChannel struct {
	Timer   Timer
	Channel uint8
}

func (tc TimerChannel) String() string {
	return tc.Timer.String() + "_CH" + strconv.Itoa(int(tc.Channel))
}

package periph

import (
	"testing"

	"periph.io/x/conn/v3/gpio"
)

func TestPinIDString(t *testing.T) {
	cases := map[PinID]string{
		{PortA, 9}:  "PA9",
		{PortB, 12}: "PB12",
		{PortC, 15}: "PC15",
		{}:          "none",
	}
	for id, want := range cases {
		if got := id.String(); got != want {
			t.Fatalf("%v: got %q want %q", id, got, want)
		}
	}
}

func TestVectorNamesRoundTrip(t *testing.T) {
	v, ok := ParseVector("USART1")
	if !ok || v != VecUSART1 {
		t.Fatalf("ParseVector(USART1)=%v,%v", v, ok)
	}
	if v, ok := ParseVector("54"); !ok || v != VecTIM6 {
		t.Fatalf("numeric parse: %v,%v", v, ok)
	}
	if _, ok := ParseVector("NOPE"); ok {
		t.Fatal("unknown name should not parse")
	}
	if VecDMA1Ch4.String() != "DMA1_Channel4" {
		t.Fatal(VecDMA1Ch4.String())
	}
}

func TestSPIClaimsIncludeBothDMAVectors(t *testing.T) {
	c := SPIConfig{
		Name: "flash",
		Regs: "SPI2",
		DMA: &DMABinding{
			IRQ: IRQBinding{Vector: VecDMA1Ch4, Preempt: PrioHigh, Enabled: true},
			RX:  &DMAStream{Channel: DMAChannel{1, 4}},
			TX:  &DMAStream{Channel: DMAChannel{1, 5}, Dir: MemToPeriph},
		},
		SSel: Out(PortB, 12, Speed10MHz),
		SCLK: Alt(PortB, 13, Speed10MHz),
		MISO: In(PortB, 14, gpio.Float),
		MOSI: Alt(PortB, 15, Speed10MHz),
	}
	keys := map[string]ClaimKind{}
	for _, cl := range c.Claims() {
		keys[cl.Key] = cl.Kind
	}
	for _, want := range []string{"SPI2", "DMA1_CH4", "DMA1_CH5", "DMA1_Channel4", "DMA1_Channel5", "PB12", "PB15"} {
		if _, ok := keys[want]; !ok {
			t.Fatalf("missing claim %q in %v", want, keys)
		}
	}
	if vs := DMAVectors(c.DMA); len(vs) != 2 || vs[0] != VecDMA1Ch4 || vs[1] != VecDMA1Ch5 {
		t.Fatalf("DMAVectors=%v", vs)
	}
}

func TestPWMInputTimersAreDistinctInOrder(t *testing.T) {
	c := PWMInputConfig{Channels: []TimerPin{
		{TimerChannel{TIM4, 1}, In(PortB, 6, gpio.PullDown)},
		{TimerChannel{TIM3, 2}, In(PortB, 5, gpio.PullDown)},
		{TimerChannel{TIM3, 3}, In(PortB, 0, gpio.PullDown)},
	}}
	ts := c.Timers()
	if len(ts) != 2 || ts[0] != TIM4 || ts[1] != TIM3 {
		t.Fatalf("timers=%v", ts)
	}
}

func TestPriorityOrdering(t *testing.T) {
	if !(PrioHighest > PrioHigh && PrioHigh > PrioMid && PrioMid > PrioLow) {
		t.Fatal("priority levels must increase with urgency")
	}
	if PrioHighest.NVIC() >= PrioLow.NVIC() {
		t.Fatal("NVIC value must decrease with urgency")
	}
}

package validate

import (
	"testing"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"

	"boardcode-go/board/periph"
	"boardcode-go/errcode"
)

func telemetry() periph.USARTConfig {
	return periph.USARTConfig{
		Name: "telemetry", Regs: "USART1", Baud: 57600, Dir: periph.DirBoth,
		IRQ: periph.IRQBinding{Vector: periph.VecUSART1, Preempt: periph.PrioMid, Enabled: true},
		RX:  periph.In(periph.PortA, 10, gpio.PullUp),
		TX:  periph.Alt(periph.PortA, 9, periph.Speed2MHz),
	}
}

func flash() periph.SPIConfig {
	return periph.SPIConfig{
		Name: "flash", Regs: "SPI2",
		DMA: &periph.DMABinding{
			IRQ: periph.IRQBinding{Vector: periph.VecDMA1Ch4, Preempt: periph.PrioHigh, Enabled: true},
			RX:  &periph.DMAStream{Channel: periph.DMAChannel{Controller: 1, Channel: 4}},
			TX:  &periph.DMAStream{Channel: periph.DMAChannel{Controller: 1, Channel: 5}, Dir: periph.MemToPeriph},
		},
		SSel: periph.Out(periph.PortB, 12, periph.Speed50MHz),
		SCLK: periph.Alt(periph.PortB, 13, periph.Speed10MHz),
		MISO: periph.In(periph.PortB, 14, gpio.PullUp),
		MOSI: periph.Alt(periph.PortB, 15, periph.Speed10MHz),
	}
}

func TestCheckCleanBoard(t *testing.T) {
	if err := Check(STM32F103CB, telemetry(), flash()); err != nil {
		t.Fatal(err)
	}
}

func TestCheckReportsEveryConflict(t *testing.T) {
	clash := telemetry()
	clash.Name = "clash"
	clash.Regs = "USART2"
	clash.IRQ.Vector = periph.VecUSART2
	clash.TX = periph.Alt(periph.PortB, 13, periph.Speed2MHz) // SPI2 SCLK

	dma := periph.ADCConfig{Name: "adc", Regs: "ADC1", DMA: periph.DMABinding{
		RX: &periph.DMAStream{Channel: periph.DMAChannel{Controller: 1, Channel: 4}},
	}}

	err := Check(STM32F103CB, telemetry(), flash(), clash, dma)
	errs := multierr.Errors(err)
	// PA10 (RX), PB13, DMA1_CH4
	if len(errs) != 3 {
		t.Fatalf("want 3 conflicts, got %d: %v", len(errs), err)
	}
	for _, e := range errs {
		if !errcode.Is(e, errcode.ConfigConflict) {
			t.Fatalf("unexpected code for %v", e)
		}
	}
}

func TestCheckSharedDMAVectorWithinOneDescriptor(t *testing.T) {
	// one SPI descriptor raising DMA1_Channel4 and 5 is not a conflict
	if err := Check(nil, flash()); err != nil {
		t.Fatal(err)
	}
	other := periph.ADCConfig{Name: "adc", Regs: "ADC1", DMA: periph.DMABinding{
		IRQ: periph.IRQBinding{Vector: periph.VecDMA1Ch5, Enabled: true},
		RX:  &periph.DMAStream{Channel: periph.DMAChannel{Controller: 1, Channel: 1}},
	}}
	if err := Check(nil, flash(), other); !errcode.Is(err, errcode.ConfigConflict) {
		t.Fatalf("DMA1_Channel5 vector shared across descriptors: %v", err)
	}
}

func TestCheckUnknownPin(t *testing.T) {
	u := telemetry()
	u.TX = periph.Alt(periph.PortC, 2, periph.Speed2MHz)
	err := Check(STM32F103CB, u)
	if !errcode.Is(err, errcode.UnknownPin) {
		t.Fatalf("PC2 is not bonded on LQFP48: %v", err)
	}
	if !STM32F103CB.Has(periph.PinID{Port: periph.PortC, Num: 13}) {
		t.Fatal("PC13 exists")
	}
}

func TestPriorities(t *testing.T) {
	order := []periph.Class{periph.ClassSPI, periph.ClassUSART}
	if err := Priorities(order, telemetry(), flash()); err != nil {
		t.Fatal(err)
	}
	fast := telemetry()
	fast.IRQ.Preempt = periph.PrioHighest
	if err := Priorities(order, fast, flash()); !errcode.Is(err, errcode.ConfigConflict) {
		t.Fatalf("telemetry outranking SPI must fail: %v", err)
	}
}

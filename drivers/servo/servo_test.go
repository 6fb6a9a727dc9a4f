package servo

import (
	"context"
	"testing"
	"time"

	"periph.io/x/conn/v3/physic"

	"boardcode-go/board/devtab"
	"boardcode-go/board/periph"
	"boardcode-go/drivers/base"
	"boardcode-go/errcode"
)

type fakeOut struct{ cmp map[int]uint16 }

func (o *fakeOut) SetCompare(ch int, t uint16) error { o.cmp[ch] = t; return nil }
func (o *fakeOut) Close() error                      { return nil }

type fakeHW struct{ out *fakeOut }

func (h fakeHW) OpenServo(periph.ServoConfig) (Outputs, error) { return h.out, nil }

func bank() periph.ServoConfig {
	return periph.ServoConfig{
		Name: "outputs", Tick: physic.MegaHertz, Update: 50 * physic.Hertz,
		InitialPulse: 1000 * time.Microsecond,
		Channels: []periph.TimerPin{
			{TimerChannel: periph.TimerChannel{Timer: periph.TIM4, Channel: 4}, Pin: periph.Alt(periph.PortB, 9, periph.Speed2MHz)},
			{TimerChannel: periph.TimerChannel{Timer: periph.TIM4, Channel: 3}, Pin: periph.Alt(periph.PortB, 8, periph.Speed2MHz)},
		},
	}
}

func TestInitialPulseAndClamp(t *testing.T) {
	tab := devtab.MustTable[periph.ServoConfig, State](periph.ClassServo, devtab.Required(bank()))
	out := &fakeOut{cmp: map[int]uint16{}}
	d := New(tab, fakeHW{out}, base.Env{})
	if errs := d.Init(context.Background()); errs[0] != nil {
		t.Fatal(errs[0])
	}
	if out.cmp[0] != 1000 || out.cmp[1] != 1000 {
		t.Fatalf("initial compare %v", out.cmp)
	}
	if err := d.Set(0, 1, time.Second); !errcode.Is(err, errcode.NotInitialized) {
		t.Fatalf("set before ready: %v", err)
	}
	tab.MarkReady(0)
	if err := d.Set(0, 1, time.Second); err != nil {
		t.Fatal(err)
	}
	if out.cmp[1] != 20000 {
		t.Fatalf("clamped compare %d", out.cmp[1])
	}
	if err := d.Set(0, 2, time.Millisecond); !errcode.Is(err, errcode.InvalidParams) {
		t.Fatalf("bad channel: %v", err)
	}
	p, _ := d.Pulses(0)
	if p[1] != 20*time.Millisecond {
		t.Fatalf("pulses %v", p)
	}
}

func TestPeriodOverflow(t *testing.T) {
	c := bank()
	c.Update = 10 * physic.Hertz
	if _, err := Period(c); !errcode.Is(err, errcode.InvalidParams) {
		t.Fatal(err)
	}
}

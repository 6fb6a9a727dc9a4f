package ppm

import (
	"context"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"boardcode-go/board/devtab"
	"boardcode-go/board/periph"
	"boardcode-go/drivers/base"
	"boardcode-go/drivers/timcap"
	"boardcode-go/errcode"
)

type fakeSrc struct{ edges []timcap.Edge }

func (s *fakeSrc) Pending(_ periph.Timer, dst []timcap.Edge) int {
	n := copy(dst, s.edges)
	s.edges = s.edges[n:]
	return n
}
func (s *fakeSrc) Close() error { return nil }

type fakeHW struct{ src *fakeSrc }

func (h fakeHW) OpenCapture(string, []periph.TimerPin, physic.Frequency, func(periph.Timer)) (timcap.Source, error) {
	return h.src, nil
}

var input = periph.TimerPin{TimerChannel: periph.TimerChannel{Timer: periph.TIM4, Channel: 1}, Pin: periph.In(periph.PortB, 6, gpio.PullDown)}

func decoder(t *testing.T) (*Driver, *fakeSrc) {
	t.Helper()
	tab := devtab.MustTable[periph.PPMConfig, State](periph.ClassPPM, devtab.Required(periph.PPMConfig{
		Name: "ppm", Tick: physic.MegaHertz, Input: input,
		SyncGap: 3800 * time.Microsecond, MinPulse: 750 * time.Microsecond, MaxPulse: 2250 * time.Microsecond,
	}))
	src := &fakeSrc{}
	d := New(tab, fakeHW{src}, base.Env{})
	if errs := d.Init(context.Background()); errs[0] != nil {
		t.Fatal(errs[0])
	}
	tab.MarkReady(0)
	return d, src
}

// rises converts intervals (µs) into rising edges starting at 60000.
func rises(intervals ...int) []timcap.Edge {
	c := uint16(60000)
	out := []timcap.Edge{{Channel: input.TimerChannel, Count: c, Rising: true}}
	for _, iv := range intervals {
		c += uint16(iv)
		out = append(out, timcap.Edge{Channel: input.TimerChannel, Count: c, Rising: true})
	}
	return out
}

func TestFrameDecode(t *testing.T) {
	d, src := decoder(t)
	src.edges = rises(5000, 1000, 1500, 2000, 6000)
	d.IRQHandler(0)
	f, err := d.Frame(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(f) != 3 || f[0] != time.Millisecond || f[2] != 2*time.Millisecond {
		t.Fatalf("frame %v", f)
	}
	if good, bad := d.Stats(0); good != 1 || bad != 0 {
		t.Fatalf("stats %d %d", good, bad)
	}
}

func TestOutOfRangePulseRejectsFrame(t *testing.T) {
	d, src := decoder(t)
	src.edges = rises(5000, 1000, 300, 1500, 6000)
	d.IRQHandler(0)
	f, _ := d.Frame(0)
	if len(f) != 0 {
		t.Fatalf("frame %v", f)
	}
	if _, bad := d.Stats(0); bad != 1 {
		t.Fatalf("rejected %d", bad)
	}
}

func TestTimingValidated(t *testing.T) {
	tab := devtab.MustTable[periph.PPMConfig, State](periph.ClassPPM, devtab.Required(periph.PPMConfig{
		Name: "ppm", Tick: physic.MegaHertz, Input: input, SyncGap: time.Millisecond, MaxPulse: 2 * time.Millisecond,
	}))
	errs := New(tab, fakeHW{&fakeSrc{}}, base.Env{}).Init(context.Background())
	if !errcode.Is(errs[0], errcode.InvalidParams) {
		t.Fatal(errs[0])
	}
}

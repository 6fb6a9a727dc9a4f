package seq

import (
	"context"
	"errors"
	"slices"
	"testing"

	"go.uber.org/multierr"

	"boardcode-go/board/devtab"
	"boardcode-go/board/periph"
	"boardcode-go/errcode"
)

func TestOrderIsFixed(t *testing.T) {
	want := []Phase{PhaseTimeBase, PhaseBusFabric, PhaseOptional, PhaseRegistries, PhaseCOM, PhasePeripherals, PhaseWatchdog}
	if got := Order(); !slices.Equal(got, want) {
		t.Fatalf("order %v", got)
	}
	pos := map[Phase]int{}
	for i, p := range Order() {
		pos[p] = i
	}
	for _, p := range Order() {
		for _, r := range p.Requires() {
			if pos[r] >= pos[p] {
				t.Fatalf("%s runs before its dependency %s", p, r)
			}
		}
	}
	if len(PhaseWatchdog.Requires()) != int(NumPhases)-1 {
		t.Fatal("watchdog must depend on every other phase")
	}
}

// registry records whether Initialize ran; drivers refuse to init without it.
type registry struct {
	name  string
	log   *[]string
	ready bool
}

func (r *registry) step() Step {
	return Func(r.name, PhaseRegistries, func(context.Context) error {
		r.ready = true
		*r.log = append(*r.log, r.name)
		return nil
	})
}

type fakeDriver struct {
	class periph.Class
	deps  []*registry
	log   *[]string
	errs  []error
	calls int
}

func (d *fakeDriver) Class() periph.Class { return d.class }
func (d *fakeDriver) IRQHandler(int)      {}
func (d *fakeDriver) Init(context.Context) []error {
	d.calls++
	*d.log = append(*d.log, d.class.String())
	out := make([]error, len(d.errs))
	copy(out, d.errs)
	for _, r := range d.deps {
		if !r.ready {
			for i := range out {
				out[i] = errors.New(r.name + " not initialised")
			}
		}
	}
	return out
}

func usarts(t *testing.T) *devtab.Table[periph.USARTConfig, struct{}] {
	t.Helper()
	tab, err := devtab.NewTable[periph.USARTConfig, struct{}](periph.ClassUSART,
		devtab.Required(periph.USARTConfig{Name: "telemetry", Regs: "USART1"}),
		devtab.Optional(periph.USARTConfig{Name: "gps", Regs: "USART3"}),
	)
	if err != nil {
		t.Fatal(err)
	}
	return tab
}

func TestRegistriesBeforeDrivers(t *testing.T) {
	var log []string
	objs := &registry{name: "objects", log: &log}
	alarms := &registry{name: "alarms", log: &log}
	tab := usarts(t)
	reg, _ := devtab.NewRegistry(tab)
	drv := &fakeDriver{class: periph.ClassUSART, deps: []*registry{objs, alarms}, log: &log, errs: make([]error, 2)}

	s := New(Options{Registry: reg})
	// added in the wrong textual order on purpose
	if err := s.Add(DriverStep("usart", PhasePeripherals, drv, tab), objs.step(), alarms.step()); err != nil {
		t.Fatal(err)
	}
	rep, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(log, []string{"objects", "alarms", "usart"}) {
		t.Fatalf("call order %v", log)
	}
	if !rep.Complete() || !reg.Available(devtab.ID(periph.ClassUSART, 1)) {
		t.Fatal("all slots should be ready")
	}
}

func TestDegradedNeverHalts(t *testing.T) {
	var log []string
	tab := usarts(t)
	reg, _ := devtab.NewRegistry(tab)
	drv := &fakeDriver{class: periph.ClassUSART, log: &log, errs: []error{nil, errcode.New(errcode.NotPresent, "usart", "no gps")}}

	var alarmed []string
	s := New(Options{Registry: reg, Alarm: func(src string, err error) { alarmed = append(alarmed, src) }})
	wdg := false
	_ = s.Add(
		DriverStep("usart", PhasePeripherals, drv, tab),
		Func("wdg", PhaseWatchdog, func(context.Context) error { wdg = true; return nil }),
	)
	rep, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !wdg || !rep.Complete() {
		t.Fatal("sequence must complete")
	}
	if reg.Status(devtab.ID(periph.ClassUSART, 1)) != devtab.StatusDegraded {
		t.Fatal("slot must be degraded")
	}
	if !errcode.Is(reg.Lookup(devtab.ID(periph.ClassUSART, 1)), errcode.Degraded) {
		t.Fatal("lookups fail fast")
	}
	if len(rep.Degraded) != 1 || !slices.Equal(alarmed, []string{"gps"}) {
		t.Fatalf("degraded=%v alarmed=%v", rep.Degraded, alarmed)
	}
}

func TestFatalHaltsBeforeWatchdog(t *testing.T) {
	var log []string
	tab := usarts(t)
	reg, _ := devtab.NewRegistry(tab)
	drv := &fakeDriver{class: periph.ClassUSART, log: &log, errs: []error{errcode.Timeout, nil}}

	s := New(Options{Registry: reg})
	wdg := false
	_ = s.Add(
		DriverStep("usart", PhasePeripherals, drv, tab),
		Func("wdg", PhaseWatchdog, func(context.Context) error { wdg = true; return nil }),
	)
	rep, err := s.Run(context.Background())
	if !errcode.Is(err, errcode.InitFatal) {
		t.Fatalf("want init_fatal, got %v", err)
	}
	if !errors.Is(err, errcode.Timeout) {
		t.Fatal("cause must be kept")
	}
	if wdg {
		t.Fatal("watchdog must not arm after a fatal halt")
	}
	if rep.Halted == nil || rep.Halted.Step != "usart" {
		t.Fatalf("halted at %+v", rep.Halted)
	}
	if reg.Status(devtab.ID(periph.ClassUSART, 0)) != devtab.StatusFailed {
		t.Fatal("mandatory slot must be failed")
	}
}

func TestRunOnceUntilReset(t *testing.T) {
	n := 0
	s := New(Options{})
	_ = s.Add(Func("tick", PhaseTimeBase, func(context.Context) error { n++; return nil }))
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run(context.Background()); !errcode.Is(err, errcode.Busy) {
		t.Fatalf("second run: %v", err)
	}
	if err := s.Add(Func("late", PhaseTimeBase, func(context.Context) error { return nil })); !errcode.Is(err, errcode.Busy) {
		t.Fatal("add after run must fail")
	}
	_ = s.Reset()
	if _, err := s.Run(context.Background()); err != nil || n != 2 {
		t.Fatalf("rerun: n=%d err=%v", n, err)
	}
}

func TestObserverAndCancel(t *testing.T) {
	var seen []string
	s := New(Options{})
	s.OnStep(func(r Record) { seen = append(seen, r.Step+":"+r.Outcome().String()) })
	_ = s.Add(
		Func("a", PhaseBusFabric, func(context.Context) error { return errcode.New(errcode.Degraded, "t", "x") }),
		Func("b", PhaseCOM, func(context.Context) error { return nil }),
	)
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(seen, []string{"a:degraded", "b:ok"}) {
		t.Fatalf("seen %v", seen)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = s.Reset()
	if _, err := s.Run(ctx); !errcode.Is(err, errcode.InitFatal) {
		t.Fatalf("cancelled run: %v", err)
	}
}

func TestClassifyCombinedErrors(t *testing.T) {
	soft := multierr.Combine(
		errcode.New(errcode.Degraded, "usart", "gps silent"),
		errcode.New(errcode.NotPresent, "usb", "cable out"),
	)
	if r := Classify(soft); r.Outcome != Degraded {
		t.Fatalf("all-soft combination: %v", r.Outcome)
	}
	hard := multierr.Append(soft, errcode.New(errcode.InitFatal, "spi", "bus fault"))
	if r := Classify(hard); r.Outcome != Fatal {
		t.Fatalf("one fatal member: %v", r.Outcome)
	}
	if r := Classify(nil); r.Outcome != OK {
		t.Fatalf("nil: %v", r.Outcome)
	}
	if r := Classify(errors.New("plain")); r.Outcome != Fatal {
		t.Fatalf("uncoded error: %v", r.Outcome)
	}
}

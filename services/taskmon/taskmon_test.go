package taskmon

import (
	"context"
	"testing"
	"time"

	"boardcode-go/bus"
	"boardcode-go/errcode"
	"boardcode-go/services/alarms"
	"boardcode-go/x/timex"
)

func TestAddBeforeInitialize(t *testing.T) {
	m := New(&timex.Manual{}, nil, nil)
	if err := m.Add("telemetry", time.Second); !errcode.Is(err, errcode.NotInitialized) {
		t.Fatalf("got %v", err)
	}
}

func TestStaleRaisesAndClears(t *testing.T) {
	b := bus.NewBus(4)
	al := alarms.New(b, nil)
	_ = al.Initialize()
	clk := &timex.Manual{}
	m := New(clk, al, nil)
	_ = m.Initialize()
	_ = m.Add("telemetry", 100*time.Millisecond)
	_ = m.Add("actuator", time.Second)

	clk.Advance(200 * time.Millisecond)
	if st := m.Check(); len(st) != 1 || st[0] != "telemetry" {
		t.Fatalf("stale %v", st)
	}
	if s, _ := al.Get("task/telemetry"); s != alarms.Warning {
		t.Fatalf("alarm %v", s)
	}

	_ = m.Touch("telemetry")
	if st := m.Check(); len(st) != 0 {
		t.Fatalf("stale %v", st)
	}
	if s, _ := al.Get("task/telemetry"); s != alarms.Cleared {
		t.Fatal("alarm must clear on recovery")
	}
	if err := m.Touch("nope"); !errcode.Is(err, errcode.NotPresent) {
		t.Fatal(err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	m := New(&timex.Manual{}, nil, nil)
	_ = m.Initialize()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, bus.NewBus(2).NewConnection("t"), time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
}

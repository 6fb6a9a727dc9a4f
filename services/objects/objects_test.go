package objects

import (
	"testing"

	"boardcode-go/bus"
	"boardcode-go/errcode"
)

func TestRegisterBeforeInitialize(t *testing.T) {
	m := New(bus.NewBus(4), nil)
	if err := m.Register("FlightStatus", 0); !errcode.Is(err, errcode.NotInitialized) {
		t.Fatalf("want not_initialized, got %v", err)
	}
}

func TestRegisterSetGet(t *testing.T) {
	b := bus.NewBus(4)
	m := New(b, nil)
	if err := m.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := m.Register("ServoOutput", []uint16{1500, 1500}); err != nil {
		t.Fatal(err)
	}
	if err := m.Register("ServoOutput", nil); !errcode.Is(err, errcode.ConfigConflict) {
		t.Fatalf("duplicate: %v", err)
	}
	if err := m.Set("Nope", 1); !errcode.Is(err, errcode.NotPresent) {
		t.Fatalf("unknown: %v", err)
	}

	sub, err := m.Subscribe("ServoOutput")
	if err != nil {
		t.Fatal(err)
	}
	first := <-sub.Channel()
	if v := first.Payload.([]uint16); v[0] != 1500 {
		t.Fatalf("retained %v", v)
	}
	_ = m.Set("ServoOutput", []uint16{1000, 2000})
	next := <-sub.Channel()
	if v := next.Payload.([]uint16); v[1] != 2000 {
		t.Fatalf("update %v", v)
	}
	if v, _ := m.Get("ServoOutput"); v.([]uint16)[0] != 1000 {
		t.Fatal("get")
	}
}

func TestResetClearsRetained(t *testing.T) {
	b := bus.NewBus(4)
	m := New(b, nil)
	_ = m.Initialize()
	_ = m.Register("A", 1)
	m.Reset()
	if m.Ready() || len(m.Names()) != 0 {
		t.Fatal("reset must return to cold")
	}
	probe := b.NewConnection("probe").Subscribe(Topic("A"))
	select {
	case msg := <-probe.Channel():
		t.Fatalf("stale retained %v", msg.Payload)
	default:
	}
	_ = m.Initialize()
	if m.Inits() != 2 {
		t.Fatalf("inits=%d", m.Inits())
	}
}

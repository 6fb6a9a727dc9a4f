package alarms

import (
	"testing"

	"boardcode-go/bus"
	"boardcode-go/errcode"
)

func TestSetBeforeInitialize(t *testing.T) {
	m := New(bus.NewBus(4), nil)
	if err := m.Set("I2C", Warning); !errcode.Is(err, errcode.NotInitialized) {
		t.Fatalf("got %v", err)
	}
}

func TestRaiseAndClear(t *testing.T) {
	b := bus.NewBus(4)
	m := New(b, nil)
	_ = m.Initialize()
	watch := b.NewConnection("watch").Subscribe(bus.T("alarms", "+"))

	if err := m.SetReason("USB", Warning, "no cable"); err != nil {
		t.Fatal(err)
	}
	msg := <-watch.Channel()
	if a := msg.Payload.(Alarm); a.Name != "USB" || a.Severity != Warning {
		t.Fatalf("published %+v", a)
	}
	// unchanged alarms are not republished
	_ = m.SetReason("USB", Warning, "no cable")
	select {
	case m := <-watch.Channel():
		t.Fatalf("duplicate publish %v", m.Payload)
	default:
	}
	if s, _ := m.Get("USB"); s != Warning {
		t.Fatal(s)
	}
	if r := m.Raised(); len(r) != 1 || r[0].Reason != "no cable" {
		t.Fatalf("raised %+v", r)
	}

	_ = m.Set("USB", Cleared)
	if msg := <-watch.Channel(); msg.Payload != nil {
		t.Fatal("clear publishes nil payload")
	}
	if len(m.Raised()) != 0 {
		t.Fatal("cleared")
	}
}

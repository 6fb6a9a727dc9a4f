package timex

import (
	"testing"
	"time"
)

func TestManualClock(t *testing.T) {
	var m Manual
	m.Init()
	m.Delay(1500 * time.Microsecond)
	if Micros(&m) != 1500 {
		t.Fatalf("micros=%d", Micros(&m))
	}
	m.Init()
	if m.Since() != 0 || m.Inits() != 2 {
		t.Fatalf("re-init: since=%v inits=%d", m.Since(), m.Inits())
	}
}

func TestHostClockIsMonotonic(t *testing.T) {
	var h Host
	if h.Since() != 0 {
		t.Fatal("uninitialised host clock should read zero")
	}
	h.Init()
	a := h.Since()
	h.Delay(time.Millisecond)
	if b := h.Since(); b <= a {
		t.Fatalf("clock did not advance: %v -> %v", a, b)
	}
}

package devtab

import (
	"errors"
	"strings"
	"testing"

	"boardcode-go/board/periph"
	"boardcode-go/errcode"
)

type rxState struct {
	head, tail int
	buf        []byte
}

func usart(name string, vec periph.Vector) periph.USARTConfig {
	return periph.USARTConfig{Name: name, Regs: periph.Instance(name), Baud: 57600,
		IRQ: periph.IRQBinding{Vector: vec, Enabled: true}}
}

func newUSARTs(t *testing.T) *Table[periph.USARTConfig, rxState] {
	t.Helper()
	tab, err := NewTable[periph.USARTConfig, rxState](periph.ClassUSART,
		Required(usart("USART1", periph.VecUSART1)),
		Optional(usart("USART3", periph.VecUSART3)),
	)
	if err != nil {
		t.Fatal(err)
	}
	return tab
}

func TestDeviceIDString(t *testing.T) {
	if got := ID(periph.ClassUSART, 0).String(); got != "usart:0" {
		t.Fatal(got)
	}
	if ID(periph.ClassUSART, 0) == ID(periph.ClassUSB, 0) {
		t.Fatal("usart:0 and usb:0 must differ")
	}
}

func TestEntryOutOfRangeKeepsIndex(t *testing.T) {
	tab, err := NewTable[periph.USARTConfig, struct{}](periph.ClassUSART, Required(usart("USART1", periph.VecUSART1)))
	if err != nil {
		t.Fatal(err)
	}
	for _, i := range []int{-1, 1, 256} {
		_, err := tab.Entry(i)
		if !errcode.Is(err, errcode.NotPresent) {
			t.Fatalf("index %d: %v", i, err)
		}
		if want := Name(periph.ClassUSART, i); !strings.Contains(err.Error(), want) {
			t.Fatalf("index %d: %q does not name %q", i, err, want)
		}
	}
}

func TestTableRejectsForeignClass(t *testing.T) {
	_, err := NewTable[periph.USARTConfig, struct{}](periph.ClassSPI, Required(usart("USART1", periph.VecUSART1)))
	if !errcode.Is(err, errcode.ConfigConflict) {
		t.Fatalf("want config_conflict, got %v", err)
	}
}

func TestTableStatusLifecycle(t *testing.T) {
	tab := newUSARTs(t)
	if tab.Len() != 2 || tab.Status(0) != StatusPending {
		t.Fatalf("len=%d status=%v", tab.Len(), tab.Status(0))
	}
	if tab.Status(5) != StatusAbsent {
		t.Fatal("out of range must be absent")
	}
	tab.MarkReady(0)
	tab.MarkDegraded(1, errors.New("no cable"))
	if !tab.Status(0).Available() || tab.Status(1).Available() {
		t.Fatal("only the ready slot is available")
	}
	if tab.Err(1) == nil || !tab.Optional(1) || tab.Optional(0) {
		t.Fatal("degraded slot keeps its error and optionality")
	}
	if _, ok := tab.Ready(1); ok {
		t.Fatal("Ready must refuse degraded slot")
	}
	if _, err := tab.Entry(9); !errcode.Is(err, errcode.NotPresent) {
		t.Fatalf("Entry(9): %v", err)
	}
}

func TestResetClearsState(t *testing.T) {
	tab := newUSARTs(t)
	e, _ := tab.Entry(0)
	e.State.buf = make([]byte, 8)
	e.State.head = 3
	tab.MarkFailed(0, errors.New("x"))
	tab.Reset()
	if e.State.buf != nil || e.State.head != 0 {
		t.Fatalf("state survived reset: %+v", e.State)
	}
	if tab.Status(0) != StatusPending || tab.Err(0) != nil {
		t.Fatal("status must return to pending")
	}
	if e.Desc().Name != "USART1" {
		t.Fatal("descriptor must survive reset")
	}
}

func TestRegistryLookup(t *testing.T) {
	tab := newUSARTs(t)
	reg, err := NewRegistry(tab)
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.Add(newUSARTs(t)); !errcode.Is(err, errcode.ConfigConflict) {
		t.Fatalf("duplicate class: %v", err)
	}

	cases := []struct {
		id   DeviceID
		want errcode.Code
	}{
		{ID(periph.ClassUSART, 0), errcode.NotInitialized},
		{ID(periph.ClassUSART, 7), errcode.NotPresent},
		{ID(periph.ClassUSB, 0), errcode.NotPresent},
	}
	for _, c := range cases {
		if got := errcode.Of(reg.Lookup(c.id)); got != c.want {
			t.Fatalf("%v: got %v want %v", c.id, got, c.want)
		}
	}

	tab.MarkReady(0)
	tab.MarkDegraded(1, errors.New("absent"))
	if err := reg.Lookup(ID(periph.ClassUSART, 0)); err != nil {
		t.Fatal(err)
	}
	if !errcode.Is(reg.Lookup(ID(periph.ClassUSART, 1)), errcode.Degraded) {
		t.Fatal("degraded slot must fail fast")
	}
	if !reg.Available(ID(periph.ClassUSART, 0)) || reg.Available(ID(periph.ClassUSART, 1)) {
		t.Fatal("availability gate")
	}

	snap := reg.Snapshot()
	if len(snap) != 2 || snap[1].Status != StatusDegraded || snap[1].Err == "" {
		t.Fatalf("snapshot: %+v", snap)
	}
	reg.Reset()
	if reg.Status(ID(periph.ClassUSART, 0)) != StatusPending {
		t.Fatal("registry reset")
	}
}

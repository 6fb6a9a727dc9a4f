package com

import (
	"testing"

	"boardcode-go/board/devtab"
	"boardcode-go/board/periph"
	"boardcode-go/errcode"
)

type fakeDriver struct {
	class periph.Class
	ready map[int]bool
	wrote map[int][]byte
}

func newFake(c periph.Class) *fakeDriver {
	return &fakeDriver{class: c, ready: map[int]bool{}, wrote: map[int][]byte{}}
}

func (f *fakeDriver) Class() periph.Class           { return f.class }
func (f *fakeDriver) Available(i int) bool          { return f.ready[i] }
func (f *fakeDriver) Read(int, []byte) (int, error) { return 0, nil }
func (f *fakeDriver) SetBaud(int, uint32) error     { return nil }
func (f *fakeDriver) Write(i int, p []byte) (int, error) {
	f.wrote[i] = append(f.wrote[i], p...)
	return len(p), nil
}

func TestBuildAndLookup(t *testing.T) {
	usart, usb := newFake(periph.ClassUSART), newFake(periph.ClassUSB)
	tab, err := Build(nil,
		Binding{Telemetry, devtab.ID(periph.ClassUSART, 0), usart},
		Binding{USB, devtab.ID(periph.ClassUSB, 0), usb},
	)
	if err != nil {
		t.Fatal(err)
	}
	p, err := tab.Lookup(USB)
	if err != nil || p.Index() != 1 || p.Device().Class != periph.ClassUSB {
		t.Fatalf("usb port %v %v", p, err)
	}
	if _, err := tab.Lookup(Aux); !errcode.Is(err, errcode.NotPresent) {
		t.Fatalf("aux: %v", err)
	}
	if _, err := tab.Index(2); !errcode.Is(err, errcode.NotPresent) {
		t.Fatalf("index 2: %v", err)
	}
}

func TestWriteFailsFastUntilReady(t *testing.T) {
	usart := newFake(periph.ClassUSART)
	tab, _ := Build(nil, Binding{Telemetry, devtab.ID(periph.ClassUSART, 0), usart})
	p, _ := tab.Index(0)
	if _, err := p.Write([]byte("hi")); !errcode.Is(err, errcode.NotInitialized) {
		t.Fatalf("want not_initialized, got %v", err)
	}
	if len(usart.wrote) != 0 {
		t.Fatal("driver must not be touched")
	}
	usart.ready[0] = true
	if n, err := p.Write([]byte("hi")); err != nil || n != 2 || string(usart.wrote[0]) != "hi" {
		t.Fatalf("write n=%d err=%v", n, err)
	}
}

func TestBuildRejectsCollisions(t *testing.T) {
	usart, usb := newFake(periph.ClassUSART), newFake(periph.ClassUSB)
	cases := [][]Binding{
		{{Telemetry, devtab.ID(periph.ClassUSART, 0), usart}, {Aux, devtab.ID(periph.ClassUSART, 0), usart}},
		{{Telemetry, devtab.ID(periph.ClassUSART, 0), usart}, {Telemetry, devtab.ID(periph.ClassUSART, 1), usart}},
		{{USB, devtab.ID(periph.ClassUSB, 0), usart}},
	}
	for i, c := range cases {
		if _, err := Build(nil, c...); !errcode.Is(err, errcode.ConfigConflict) {
			t.Fatalf("case %d: %v", i, err)
		}
	}
	// same small index, different class: distinct devices
	if _, err := Build(nil,
		Binding{Telemetry, devtab.ID(periph.ClassUSART, 0), usart},
		Binding{USB, devtab.ID(periph.ClassUSB, 0), usb},
	); err != nil {
		t.Fatal(err)
	}
}

package iap

import (
	"context"
	"testing"

	"boardcode-go/errcode"
)

type regs [4]uint16

func (r *regs) EnableBackup() error         { return nil }
func (r *regs) ReadBackup(i int) uint16     { return r[i] }
func (r *regs) WriteBackup(i int, v uint16) { r[i] = v }

func TestBootRequest(t *testing.T) {
	r := &regs{}
	p := New(r)
	if err := p.Request(); !errcode.Is(err, errcode.NotInitialized) {
		t.Fatal(err)
	}
	if err := p.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	if p.Requested() || p.Boots() != 1 {
		t.Fatal("fresh state")
	}
	if err := p.Request(); err != nil {
		t.Fatal(err)
	}
	if !p.Requested() {
		t.Fatal("request not visible")
	}
	p.Clear()
	if p.Requested() {
		t.Fatal("request not cleared")
	}
	_ = p.Init(context.Background())
	if p.Boots() != 2 {
		t.Fatalf("boots %d", p.Boots())
	}
}

// Package irq is the trampoline layer: a fixed table indexed by vector that
// forwards an interrupt to exactly one class handler with the device index
// pre-resolved. The table is built once at board-definition time and then
// installed into a Sink (the hardware vector table on a device, a software
// dispatcher on the host).
package irq

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/multierr"

	"boardcode-go/board/devtab"
	"boardcode-go/board/periph"
	"boardcode-go/errcode"
)

const op = "irq"

// Handler is a generic class ISR. It must not block.
type Handler func(index int)

// Trampoline is the fixed entry for one vector.
type Trampoline struct {
	Name     string
	Vector   periph.Vector
	Device   devtab.DeviceID
	Priority periph.Priority
	Handler  Handler
}

// Gate reports whether a device may take interrupts.
type Gate interface {
	Available(id devtab.DeviceID) bool
}

// Builder collects trampolines and shared-vector groups.
type Builder struct {
	tramps []Trampoline
	shared map[periph.Vector][]string
}

func NewBuilder() *Builder {
	return &Builder{shared: map[periph.Vector][]string{}}
}

// Share declares v as an intentional shared vector whose possible consumers
// are named. At most one of them may be bound.
func (b *Builder) Share(v periph.Vector, consumers ...string) *Builder {
	b.shared[v] = append(b.shared[v], consumers...)
	return b
}

// Bind adds a trampoline.
func (b *Builder) Bind(t Trampoline) *Builder {
	b.tramps = append(b.tramps, t)
	return b
}

// Build validates the bindings and returns the dispatch table. Every
// problem found is reported.
func (b *Builder) Build(gate Gate) (*Table, error) {
	t := &Table{gate: gate}
	var errs error
	for _, tr := range b.tramps {
		switch {
		case !tr.Vector.Valid():
			errs = multierr.Append(errs, errcode.New(errcode.UnknownVector, op, tr.Name))
			continue
		case tr.Handler == nil:
			errs = multierr.Append(errs, errcode.New(errcode.InvalidParams, op, tr.Name+": nil handler"))
			continue
		}
		if members, ok := b.shared[tr.Vector]; ok && !contains(members, tr.Name) {
			errs = multierr.Append(errs, errcode.New(errcode.ConfigConflict, op,
				fmt.Sprintf("%s is not a declared consumer of shared %s", tr.Name, tr.Vector)))
			continue
		}
		if prev := t.slots[tr.Vector]; prev != nil {
			what := "bound twice"
			if _, ok := b.shared[tr.Vector]; ok {
				what = "shared vector has more than one active consumer"
			}
			errs = multierr.Append(errs, errcode.New(errcode.ConfigConflict, op,
				fmt.Sprintf("%s: %s (%s, %s)", tr.Vector, what, prev.Name, tr.Name)))
			continue
		}
		tr := tr
		t.slots[tr.Vector] = &tr
	}
	if errs != nil {
		return nil, errs
	}
	return t, nil
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// Table is the built vector dispatch table.
type Table struct {
	slots    [periph.NumVectors]*Trampoline
	gate     Gate
	spurious atomic.Uint32
	fired    [periph.NumVectors]atomic.Uint32
}

// Dispatch forwards vector v to its handler. An unbound vector yields
// unknown_vector; a vector whose device has not completed init yields
// not_initialized and is counted as spurious. Neither case calls a handler.
func (t *Table) Dispatch(v periph.Vector) error {
	if !v.Valid() {
		t.spurious.Add(1)
		return errcode.New(errcode.UnknownVector, op, v.String())
	}
	tr := t.slots[v]
	if tr == nil {
		t.spurious.Add(1)
		return errcode.New(errcode.UnknownVector, op, v.String())
	}
	if t.gate != nil && !t.gate.Available(tr.Device) {
		t.spurious.Add(1)
		return errcode.New(errcode.NotInitialized, op, tr.Name+" "+tr.Device.String())
	}
	t.fired[v].Add(1)
	tr.Handler(int(tr.Device.Index))
	return nil
}

// Entry returns the fixed entry point for v, suitable for a hardware vector
// slot. Errors are counted, not returned.
func (t *Table) Entry(v periph.Vector) func() {
	return func() { _ = t.Dispatch(v) }
}

// Lookup returns the trampoline bound to v.
func (t *Table) Lookup(v periph.Vector) (Trampoline, bool) {
	if !v.Valid() || t.slots[v] == nil {
		return Trampoline{}, false
	}
	return *t.slots[v], true
}

// Bindings lists trampolines in vector order.
func (t *Table) Bindings() []Trampoline {
	var out []Trampoline
	for _, tr := range t.slots {
		if tr != nil {
			out = append(out, *tr)
		}
	}
	return out
}

// Spurious counts dispatches that reached no handler.
func (t *Table) Spurious() uint32 { return t.spurious.Load() }

// Fired counts handled dispatches on v.
func (t *Table) Fired(v periph.Vector) uint32 {
	if !v.Valid() {
		return 0
	}
	return t.fired[v].Load()
}

// Reset clears the counters.
func (t *Table) Reset() {
	t.spurious.Store(0)
	for i := range t.fired {
		t.fired[i].Store(0)
	}
}

// Sink receives the table at install time.
type Sink interface {
	Set(v periph.Vector, prio periph.Priority, entry func()) error
}

// Install hands every binding to s in vector order.
func (t *Table) Install(s Sink) error {
	for _, tr := range t.Bindings() {
		if err := s.Set(tr.Vector, tr.Priority, t.Entry(tr.Vector)); err != nil {
			return errcode.Wrap(errcode.Of(err), op, err)
		}
	}
	return nil
}

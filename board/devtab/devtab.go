// Package devtab holds the device tables: per peripheral class, an ordered,
// fixed collection of immutable descriptors each paired with driver-owned
// mutable state and a slot status. The Registry groups one table per class
// and is the handle passed to drivers, the IRQ layer and upper layers instead
// of link-time globals.
package devtab

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"boardcode-go/board/periph"
	"boardcode-go/errcode"
)

// MaxEntries bounds a table; indices fit a uint8.
const MaxEntries = 255

// DeviceID is the tagged identity of a logical device: the class removes the
// ambiguity between, say, USART 0 and USB 0.
type DeviceID struct {
	Class periph.Class
	Index uint8
}

func ID(c periph.Class, i int) DeviceID { return DeviceID{Class: c, Index: uint8(i)} }

func (id DeviceID) String() string { return Name(id.Class, int(id.Index)) }

// Name formats a class and a raw index the way DeviceID prints, without
// narrowing the index first.
func Name(c periph.Class, i int) string { return c.String() + ":" + strconv.Itoa(i) }

// Status is the lifecycle of one slot.
type Status uint32

const (
	StatusPending  Status = iota // declared, not initialised yet
	StatusReady                  // driver init completed
	StatusDegraded               // optional device failed; feature unavailable
	StatusFailed                 // mandatory device failed; bring-up halted
	StatusAbsent                 // no such slot (lookups only)
)

var statusNames = [...]string{"pending", "ready", "degraded", "failed", "absent"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "unknown"
}

// Available reports whether the slot may be used.
func (s Status) Available() bool { return s == StatusReady }

// Def is a board-definition time table entry.
type Def[D periph.Descriptor] struct {
	Desc     D
	Optional bool
}

func Required[D periph.Descriptor](d D) Def[D] { return Def[D]{Desc: d} }
func Optional[D periph.Descriptor](d D) Def[D] { return Def[D]{Desc: d, Optional: true} }

// Entry pairs an immutable descriptor with the owning driver's state.
type Entry[D periph.Descriptor, S any] struct {
	desc     D
	optional bool

	// State belongs to the class driver and its ISR.
	State S

	status atomic.Uint32
	mu     sync.Mutex
	err    error
}

func (e *Entry[D, S]) Desc() D        { return e.desc }
func (e *Entry[D, S]) Optional() bool { return e.optional }
func (e *Entry[D, S]) Status() Status { return Status(e.status.Load()) }
func (e *Entry[D, S]) Ready() bool    { return e.Status() == StatusReady }
func (e *Entry[D, S]) setStatus(s Status, err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
	e.status.Store(uint32(s))
}

func (e *Entry[D, S]) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Slots is the class-agnostic view of a table.
type Slots interface {
	Class() periph.Class
	Len() int
	Status(i int) Status
	Label(i int) string
	Optional(i int) bool
	Err(i int) error
	MarkReady(i int)
	MarkDegraded(i int, err error)
	MarkFailed(i int, err error)
	Reset()
	Descriptors() []periph.Descriptor
}

// Table is the device table of one class.
type Table[D periph.Descriptor, S any] struct {
	class   periph.Class
	entries []*Entry[D, S]
}

var _ Slots = (*Table[periph.USARTConfig, struct{}])(nil)

// NewTable builds a table. Every descriptor must belong to class.
func NewTable[D periph.Descriptor, S any](class periph.Class, defs ...Def[D]) (*Table[D, S], error) {
	if len(defs) > MaxEntries {
		return nil, errcode.New(errcode.ConfigConflict, "devtab", class.String()+": too many entries")
	}
	t := &Table[D, S]{class: class, entries: make([]*Entry[D, S], len(defs))}
	for i, d := range defs {
		if d.Desc.Class() != class {
			return nil, errcode.New(errcode.ConfigConflict, "devtab",
				class.String()+" table given "+d.Desc.Class().String()+" descriptor "+d.Desc.Label())
		}
		t.entries[i] = &Entry[D, S]{desc: d.Desc, optional: d.Optional}
	}
	return t, nil
}

// MustTable is NewTable for static board definitions; it panics on error.
func MustTable[D periph.Descriptor, S any](class periph.Class, defs ...Def[D]) *Table[D, S] {
	t, err := NewTable[D, S](class, defs...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table[D, S]) Class() periph.Class { return t.class }
func (t *Table[D, S]) Len() int            { return len(t.entries) }

func (t *Table[D, S]) ok(i int) bool { return i >= 0 && i < len(t.entries) }

// Entry returns the i-th entry or not_present.
func (t *Table[D, S]) Entry(i int) (*Entry[D, S], error) {
	if !t.ok(i) {
		return nil, errcode.New(errcode.NotPresent, "devtab", Name(t.class, i))
	}
	return t.entries[i], nil
}

// Ready returns the i-th entry only if it completed initialisation.
func (t *Table[D, S]) Ready(i int) (*Entry[D, S], bool) {
	if !t.ok(i) || !t.entries[i].Ready() {
		return nil, false
	}
	return t.entries[i], true
}

func (t *Table[D, S]) Status(i int) Status {
	if !t.ok(i) {
		return StatusAbsent
	}
	return t.entries[i].Status()
}

func (t *Table[D, S]) Label(i int) string {
	if !t.ok(i) {
		return ""
	}
	return t.entries[i].desc.Label()
}

func (t *Table[D, S]) Optional(i int) bool { return t.ok(i) && t.entries[i].optional }

func (t *Table[D, S]) Err(i int) error {
	if !t.ok(i) {
		return nil
	}
	return t.entries[i].Err()
}

func (t *Table[D, S]) MarkReady(i int) {
	if t.ok(i) {
		t.entries[i].setStatus(StatusReady, nil)
	}
}

func (t *Table[D, S]) MarkDegraded(i int, err error) {
	if t.ok(i) {
		t.entries[i].setStatus(StatusDegraded, err)
	}
}

func (t *Table[D, S]) MarkFailed(i int, err error) {
	if t.ok(i) {
		t.entries[i].setStatus(StatusFailed, err)
	}
}

// Reset returns every slot to the cold state: pending, no error, zero state.
func (t *Table[D, S]) Reset() {
	var zero S
	for _, e := range t.entries {
		e.setStatus(StatusPending, nil)
		e.State = zero
	}
}

func (t *Table[D, S]) Descriptors() []periph.Descriptor {
	out := make([]periph.Descriptor, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.desc
	}
	return out
}

// Each calls fn for every entry in index order.
func (t *Table[D, S]) Each(fn func(i int, e *Entry[D, S])) {
	for i, e := range t.entries {
		fn(i, e)
	}
}

// Driver is the contract a generic peripheral driver honours.
type Driver interface {
	Class() periph.Class
	// Init programs hardware for every table entry and returns one result
	// per entry, in index order (nil = success).
	Init(ctx context.Context) []error
	// IRQHandler services an interrupt for an initialised entry.
	IRQHandler(index int)
}

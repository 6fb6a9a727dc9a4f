package devtab

import (
	"boardcode-go/board/periph"
	"boardcode-go/errcode"
)

// Registry owns one table per class. Its shape is fixed once the board is
// defined, so lookups from interrupt context take no lock.
type Registry struct {
	tables [periph.NumClasses]Slots
}

// NewRegistry builds a registry from tables.
func NewRegistry(tables ...Slots) (*Registry, error) {
	r := &Registry{}
	for _, t := range tables {
		if err := r.Add(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add installs a table. Two tables for the same class conflict. Add is a
// board-definition time operation and must not race with lookups.
func (r *Registry) Add(t Slots) error {
	if t == nil {
		return nil
	}
	c := t.Class()
	if !c.Valid() {
		return errcode.New(errcode.InvalidParams, "devtab", "invalid class")
	}
	if r.tables[c] != nil {
		return errcode.New(errcode.ConfigConflict, "devtab", "duplicate table for "+c.String())
	}
	r.tables[c] = t
	return nil
}

// Table returns the table of class c.
func (r *Registry) Table(c periph.Class) (Slots, bool) {
	if !c.Valid() || r.tables[c] == nil {
		return nil, false
	}
	return r.tables[c], true
}

// Classes lists the classes present, in class order.
func (r *Registry) Classes() []periph.Class {
	var out []periph.Class
	for c, t := range r.tables {
		if t != nil {
			out = append(out, periph.Class(c))
		}
	}
	return out
}

// Status returns the slot status, StatusAbsent for unknown slots.
func (r *Registry) Status(id DeviceID) Status {
	t, ok := r.Table(id.Class)
	if !ok {
		return StatusAbsent
	}
	return t.Status(int(id.Index))
}

// Available reports whether id completed initialisation. Safe from ISRs.
func (r *Registry) Available(id DeviceID) bool { return r.Status(id) == StatusReady }

// Lookup returns nil for a usable slot and a coded error otherwise.
func (r *Registry) Lookup(id DeviceID) error {
	switch r.Status(id) {
	case StatusReady:
		return nil
	case StatusAbsent:
		return errcode.New(errcode.NotPresent, "devtab", id.String())
	case StatusDegraded:
		return errcode.New(errcode.Degraded, "devtab", id.String())
	default:
		return errcode.New(errcode.NotInitialized, "devtab", id.String())
	}
}

// SlotInfo is a point-in-time view of one slot.
type SlotInfo struct {
	ID       DeviceID
	Label    string
	Status   Status
	Optional bool
	Err      string
}

// Snapshot lists every slot ordered by class then index.
func (r *Registry) Snapshot() []SlotInfo {
	var out []SlotInfo
	for _, c := range r.Classes() {
		t := r.tables[c]
		for i := 0; i < t.Len(); i++ {
			si := SlotInfo{
				ID:       ID(c, i),
				Label:    t.Label(i),
				Status:   t.Status(i),
				Optional: t.Optional(i),
			}
			if err := t.Err(i); err != nil {
				si.Err = err.Error()
			}
			out = append(out, si)
		}
	}
	return out
}

// Descriptors returns every descriptor of every table.
func (r *Registry) Descriptors() []periph.Descriptor {
	var out []periph.Descriptor
	for _, c := range r.Classes() {
		out = append(out, r.tables[c].Descriptors()...)
	}
	return out
}

// Reset returns every table to the cold state.
func (r *Registry) Reset() {
	for _, t := range r.tables {
		if t != nil {
			t.Reset()
		}
	}
}

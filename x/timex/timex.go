// Package timex provides the board time base: a monotonic tick source and
// delay service established by the first bring-up phase.
package timex

import (
	"sync"
	"sync/atomic"
	"time"
)

// Clock is the monotonic time base every later bring-up phase may use.
type Clock interface {
	// Init starts the tick source. Calling it again restarts from zero.
	Init()
	// Since returns the time elapsed since Init.
	Since() time.Duration
	// Delay blocks for d.
	Delay(d time.Duration)
}

// NowMs returns Unix milliseconds as int64.
func NowMs() int64 { return time.Now().UnixMilli() }

// Micros truncates a Clock reading to a wrapping 32-bit microsecond counter,
// the shape timer-driven drivers store in their state.
func Micros(c Clock) uint32 { return uint32(c.Since() / time.Microsecond) }

// Host is a Clock backed by the runtime monotonic clock.
type Host struct {
	mu    sync.RWMutex
	start time.Time
}

func (h *Host) Init() {
	h.mu.Lock()
	h.start = time.Now()
	h.mu.Unlock()
}

func (h *Host) Since() time.Duration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.start.IsZero() {
		return 0
	}
	return time.Since(h.start)
}

func (h *Host) Delay(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

// Manual is a Clock that only moves when told to. Delay advances it.
type Manual struct {
	now   atomic.Int64
	inits atomic.Int32
}

func (m *Manual) Init() {
	m.now.Store(0)
	m.inits.Add(1)
}

func (m *Manual) Since() time.Duration { return time.Duration(m.now.Load()) }
func (m *Manual) Delay(d time.Duration) {
	if d > 0 {
		m.now.Add(int64(d))
	}
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) { m.Delay(d) }

// Inits reports how many times Init was called.
func (m *Manual) Inits() int { return int(m.inits.Load()) }

// Package shmring is a single-producer, single-consumer byte ring used for
// interrupt-fed receive buffers. The producer is the device ISR, the consumer
// is the driver's public read path; neither side locks.
package shmring

import (
	"sync/atomic"

	"boardcode-go/x/mathx"
)

// Ring is a single-producer, single-consumer byte ring.
type Ring struct {
	buf  []byte
	mask uint32
	rd   atomic.Uint32 // consumer index (monotonic)
	wr   atomic.Uint32 // producer index (monotonic)

	dropped atomic.Uint32 // bytes Push discarded because the ring was full

	readable chan struct{} // 0->>0 available edge
}

// New allocates a ring. size is rounded up to a power of two (minimum 2).
func New(size int) *Ring {
	if size < 2 {
		size = 2
	}
	n := mathx.CeilPow2(uint32(size))
	return &Ring{
		buf:      make([]byte, n),
		mask:     n - 1,
		readable: make(chan struct{}, 1),
	}
}

func (r *Ring) size() uint32 { return uint32(len(r.buf)) }

// Cap returns the ring capacity in bytes.
func (r *Ring) Cap() int { return len(r.buf) }

func (r *Ring) Space() int {
	return int(r.size() - (r.wr.Load() - r.rd.Load()))
}

func (r *Ring) Available() int {
	return int(r.wr.Load() - r.rd.Load())
}

// Dropped returns the number of bytes Push discarded since the last Reset.
func (r *Ring) Dropped() uint32 { return r.dropped.Load() }

// Push writes src and discards what does not fit, counting the discarded
// bytes as dropped. Producer side only.
func (r *Ring) Push(src []byte) int {
	n := r.TryWriteFrom(src)
	if n < len(src) {
		r.dropped.Add(uint32(len(src) - n))
	}
	return n
}

// TryWriteFrom copies as much of src as fits and returns the count. The
// caller keeps the remainder. Producer side only.
func (r *Ring) TryWriteFrom(src []byte) (n int) {
	if len(src) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load()
	before := wr - rd
	n = mathx.Min(int(r.size()-before), len(src))
	if n == 0 {
		return 0
	}

	wrIdx := wr & r.mask
	first := mathx.Min(int(r.size()-wrIdx), n)
	copy(r.buf[wrIdx:wrIdx+uint32(first)], src[:first])
	if second := n - first; second > 0 {
		copy(r.buf[:second], src[first:n])
	}
	r.wr.Store(wr + uint32(n)) // release

	if before == 0 {
		select {
		case r.readable <- struct{}{}:
		default:
		}
	}
	return n
}

// TryReadInto copies up to len(dst) buffered bytes. Consumer side only.
func (r *Ring) TryReadInto(dst []byte) (n int) {
	if len(dst) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load() // acquire
	n = mathx.Min(int(wr-rd), len(dst))
	if n <= 0 {
		return 0
	}

	rdIdx := rd & r.mask
	first := mathx.Min(int(r.size()-rdIdx), n)
	copy(dst[:first], r.buf[rdIdx:rdIdx+uint32(first)])
	if second := n - first; second > 0 {
		copy(dst[first:n], r.buf[:second])
	}
	r.rd.Store(rd + uint32(n)) // release
	return n
}

// Reset discards buffered data. Only valid while neither side is active
// (cold start, before the owning interrupt is enabled).
func (r *Ring) Reset() {
	r.rd.Store(0)
	r.wr.Store(0)
	r.dropped.Store(0)
	select {
	case <-r.readable:
	default:
	}
}

// Readable fires once on each empty -> non-empty transition.
func (r *Ring) Readable() <-chan struct{} { return r.readable }

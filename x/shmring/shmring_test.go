package shmring

import "testing"

func TestOrderAcrossWrapWithPartialProgress(t *testing.T) {
	r := New(64)

	const N = 2000
	src := make([]byte, N)
	for i := range src {
		src[i] = byte(i)
	}

	p := src
	dst := make([]byte, N)
	off := 0
	for off < N {
		if len(p) > 0 {
			step := min(7, len(p))
			step = r.TryWriteFrom(p[:step])
			p = p[step:]
		}
		var tmp [5]byte
		n := r.TryReadInto(tmp[:])
		copy(dst[off:], tmp[:n])
		off += n
	}
	for i := 0; i < N; i++ {
		if dst[i] != src[i] {
			t.Fatalf("mismatch at %d: got=%d want=%d", i, dst[i], src[i])
		}
	}
	if r.Dropped() != 0 {
		t.Fatalf("unexpected drops: %d", r.Dropped())
	}
}

func TestSizeRoundsUpAndCountsDrops(t *testing.T) {
	r := New(5)
	if r.Cap() != 8 {
		t.Fatalf("cap=%d want 8", r.Cap())
	}
	if n := r.TryWriteFrom(make([]byte, 10)); n != 8 {
		t.Fatalf("wrote %d want 8", n)
	}
	if r.Dropped() != 0 {
		t.Fatalf("partial write counted %d drops", r.Dropped())
	}
	if n := r.Push(make([]byte, 2)); n != 0 {
		t.Fatalf("push into full ring wrote %d", n)
	}
	if r.Dropped() != 2 || r.Space() != 0 {
		t.Fatalf("dropped=%d space=%d", r.Dropped(), r.Space())
	}
	r.Reset()
	if r.Available() != 0 || r.Dropped() != 0 {
		t.Fatal("reset did not clear ring")
	}
}

func TestReadableEdge(t *testing.T) {
	r := New(8)
	select {
	case <-r.Readable():
		t.Fatal("unexpected Readable on empty ring")
	default:
	}
	r.TryWriteFrom([]byte{1, 2, 3})
	select {
	case <-r.Readable():
	default:
		t.Fatal("expected Readable")
	}
	r.TryWriteFrom([]byte{4})
	select {
	case <-r.Readable():
		t.Fatal("edge should be coalesced while non-empty")
	default:
	}
}

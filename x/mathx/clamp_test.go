package mathx

import "testing"

func TestClampSwapsBounds(t *testing.T) {
	if got := Clamp(9, 4, 1); got != 4 {
		t.Fatalf("Clamp(9,4,1)=%d", got)
	}
	if got := Clamp(0, 1, 4); got != 1 {
		t.Fatalf("Clamp(0,1,4)=%d", got)
	}
	if !Between(3, 4, 1) || Between(5, 1, 4) {
		t.Fatal("Between")
	}
}

func TestCeilPow2(t *testing.T) {
	cases := map[uint32]uint32{0: 1, 1: 1, 2: 2, 3: 4, 17: 32, 64: 64}
	for in, want := range cases {
		if got := CeilPow2(in); got != want {
			t.Fatalf("CeilPow2(%d)=%d want %d", in, got, want)
		}
	}
}

package timcap

import (
	"testing"
	"time"

	"periph.io/x/conn/v3/physic"
)

func TestWidthWraps(t *testing.T) {
	if w := Width(1000, 2500, physic.MegaHertz); w != 1500*time.Microsecond {
		t.Fatal(w)
	}
	if w := Width(65000, 964, physic.MegaHertz); w != 1500*time.Microsecond {
		t.Fatalf("wrapped: %v", w)
	}
	if Width(0, 10, 0) != 0 {
		t.Fatal("zero tick")
	}
}

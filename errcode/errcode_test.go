package errcode

import (
	"errors"
	"fmt"
	"testing"

	"go.uber.org/multierr"
)

func TestCodesAreStableStrings(t *testing.T) {
	cases := map[string]Code{
		"config_conflict": ConfigConflict,
		"init_fatal":      InitFatal,
		"degraded":        Degraded,
		"not_present":     NotPresent,
		"not_initialized": NotInitialized,
		"unknown_vector":  UnknownVector,
		"unknown_pin":     UnknownPin,
	}
	for want, c := range cases {
		if c.Error() != want {
			t.Fatalf("code %q mismatch: got %q", want, c.Error())
		}
	}
}

func TestOfThroughWrapping(t *testing.T) {
	if Of(nil) != OK {
		t.Fatal("nil should map to ok")
	}
	if got := Of(fmt.Errorf("ctx: %w", NotPresent)); got != NotPresent {
		t.Fatalf("wrapped code: got %q", got)
	}
	e := &E{C: InitFatal, Op: "spi", Err: errors.New("bus fault")}
	if got := Of(fmt.Errorf("phase: %w", e)); got != InitFatal {
		t.Fatalf("wrapped E: got %q", got)
	}
	if Of(errors.New("plain")) != Error {
		t.Fatal("plain error should map to generic code")
	}
}

func TestEErrorString(t *testing.T) {
	e := &E{C: ConfigConflict, Op: "validate", Msg: "PB10 claimed twice"}
	if e.Error() != "validate: config_conflict: PB10 claimed twice" {
		t.Fatalf("unexpected string %q", e.Error())
	}
	if Wrap(InitFatal, "x", nil) != nil {
		t.Fatal("Wrap(nil) must be nil")
	}
}

func TestOfPrefersOutermostCode(t *testing.T) {
	e := &E{C: InitFatal, Op: "com", Err: NotPresent}
	if got := Of(e); got != InitFatal {
		t.Fatalf("outer code should win, got %q", got)
	}
}

func TestOfThroughCombinedErrors(t *testing.T) {
	err := multierr.Append(
		New(ConfigConflict, "validate", "PB10 claimed twice"),
		New(ConfigConflict, "validate", "DMA1_CH4 claimed twice"),
	)
	if got := Of(err); got != ConfigConflict {
		t.Fatalf("combined: got %q", got)
	}
	if !Is(fmt.Errorf("board: %w", err), ConfigConflict) {
		t.Fatal("wrapped combination lost its code")
	}
	mixed := multierr.Append(errors.New("plain"), New(InvalidParams, "irq", "nil handler"))
	if got := Of(mixed); got != InvalidParams {
		t.Fatalf("first coded member should win, got %q", got)
	}
}

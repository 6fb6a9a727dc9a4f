package wdg

import (
	"context"
	"errors"
	"testing"
	"time"

	"boardcode-go/drivers/base"
	"boardcode-go/errcode"
)

type fakeHW struct {
	timeout time.Duration
	kicks   int
	fail    bool
}

func (h *fakeHW) EnableWatchdog(t time.Duration) error {
	if h.fail {
		return errors.New("lsi not ready")
	}
	h.timeout = t
	return nil
}
func (h *fakeHW) Kick() { h.kicks++ }

func TestKickOnlyOnceEnabled(t *testing.T) {
	hw := &fakeHW{}
	w := New(hw, 0, base.Env{})
	w.Kick()
	if hw.kicks != 0 {
		t.Fatal("kicked while disabled")
	}
	if err := w.Enable(context.Background()); err != nil {
		t.Fatal(err)
	}
	if hw.timeout != DefaultTimeout || hw.kicks != 1 {
		t.Fatalf("timeout %v kicks %d", hw.timeout, hw.kicks)
	}
	w.Kick()
	if w.Kicks() != 1 || hw.kicks != 2 {
		t.Fatalf("kicks %d/%d", w.Kicks(), hw.kicks)
	}
}

func TestEnableFailureIsFatal(t *testing.T) {
	w := New(&fakeHW{fail: true}, time.Second, base.Env{})
	if err := w.Enable(context.Background()); !errcode.Is(err, errcode.InitFatal) || w.Enabled() {
		t.Fatal(err)
	}
}

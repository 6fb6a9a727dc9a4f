package errcode

import "errors"

// Code is a stable, log-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Code lets a bare Code and an *E be found by the same errors.As target.
func (c Code) Code() Code { return c }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	Busy          Code = "busy"
	Unsupported   Code = "unsupported"
	InvalidParams Code = "invalid_params"
	Timeout       Code = "timeout"

	// Board definition
	ConfigConflict Code = "config_conflict"
	UnknownPin     Code = "unknown_pin"
	PinInUse       Code = "pin_in_use"

	// Bring-up
	InitFatal Code = "init_fatal"
	Degraded  Code = "degraded"

	// Runtime lookup / dispatch
	NotPresent     Code = "not_present"
	NotInitialized Code = "not_initialized"
	UnknownVector  Code = "unknown_vector"
	UnknownDevice  Code = "unknown_device"

	Error Code = "error" // generic fallback
)

// E is the optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// New builds an *E.
func New(c Code, op, msg string) *E { return &E{C: c, Op: op, Msg: msg} }

// Wrap attaches a code and operation to a cause. A nil cause yields nil.
func Wrap(c Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: c, Op: op, Err: err}
}

// Of extracts a Code from an error, defaulting to Error. The outermost code
// in a wrapping chain wins (github.com/pkg/errors wrappers unwrap too). In a
// multi-error the first coded member wins.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	var c interface{ Code() Code }
	if errors.As(err, &c) {
		return c.Code()
	}
	return Error
}

// Is reports whether err carries code c anywhere in its chain.
func Is(err error, c Code) bool { return err != nil && Of(err) == c }

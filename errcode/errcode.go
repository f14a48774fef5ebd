package errcode

import "errors"

// Code is a stable error identifier shared by drivers and services.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK             Code = "ok"
	IOError        Code = "io_error"        // bus or line transfer failed
	FrameError     Code = "frame_error"     // co-processor reply malformed
	FaultLatched   Code = "fault_latched"   // motor IC reported fault bits
	OutOfRange     Code = "out_of_range"    // caller value outside documented domain
	Interrupted    Code = "interrupted"     // sleep or wait cancelled
	NotInitialised Code = "not_initialised" // chip used before Initialize
	Timeout        Code = "timeout"
	InvalidConfig  Code = "invalid_config"
	Unsupported    Code = "unsupported"

	Error Code = "error" // generic fallback
)

// E wraps a Code with the failing operation, a message and a cause.
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

// Is lets errors.Is(err, errcode.X) match a wrapped E.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// New builds an *E.
func New(c Code, op, msg string) *E { return &E{C: c, Op: op, Msg: msg} }

// Wrap builds an *E around a cause. A nil cause yields nil.
func Wrap(c Code, op, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: c, Op: op, Msg: msg, Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Error
}

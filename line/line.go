// Package line defines the digital-line abstractions the drivers borrow:
// push-pull outputs, inputs with pull resistors, and inputs that report edges.
package line

// Pull selects an input's bias resistor.
type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// Edge selection for interrupts and edge events.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return "none"
	}
}

// Level helpers.
const (
	Low  = false
	High = true
)

// Output is a digital output line.
type Output interface {
	Set(level bool) error
	Get() bool
	// SetShutdownState selects the level the line is left at when the
	// owning process releases it.
	SetShutdownState(level bool)
	Number() int
}

// Input is a digital input line.
type Input interface {
	ConfigureInput(pull Pull) error
	Get() bool
	Number() int
}

// IRQInput is an input able to call back on edges. The handler runs in
// interrupt (or poller) context and must not block.
type IRQInput interface {
	Input
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// PinFactory supplies lines by board name (e.g. "GPIO17").
type PinFactory interface {
	Output(name string, initial bool) (Output, error)
	Input(name string, pull Pull) (IRQInput, error)
}

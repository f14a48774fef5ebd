package drv8830

import (
	"fmt"

	"rovercode-go/errcode"
)

// Fault is the highest-priority condition in a FAULT register value.
type Fault byte

const (
	FaultFree      Fault = 0
	FaultCondition Fault = 0x01 // FAULT: some condition below is latched
	FaultOCP       Fault = 0x02 // overcurrent
	FaultUVLO      Fault = 0x04 // undervoltage lockout
	FaultOTS       Fault = 0x08 // overtemperature
	FaultILimit    Fault = 0x10 // extended current limit
)

// priority order for DecodeFault.
var faultOrder = [...]struct {
	f    Fault
	name string
}{
	{FaultILimit, "current limit"},
	{FaultOTS, "overtemperature"},
	{FaultUVLO, "undervoltage lockout"},
	{FaultOCP, "overcurrent"},
	{FaultCondition, "fault"},
}

func (f Fault) String() string {
	if f == FaultFree {
		return "none"
	}
	for _, e := range faultOrder {
		if e.f == f {
			return e.name
		}
	}
	return fmt.Sprintf("fault(0x%02X)", byte(f))
}

// DecodeFault maps a FAULT register value to its highest-priority condition.
// A non-zero value with no known bit is an IOError.
func DecodeFault(b byte) (Fault, error) {
	if b == 0 {
		return FaultFree, nil
	}
	for _, e := range faultOrder {
		if b&byte(e.f) != 0 {
			return e.f, nil
		}
	}
	return FaultFree, errcode.New(errcode.IOError, "drv8830.decode_fault",
		fmt.Sprintf("unknown fault bits 0x%02X", b))
}

// FaultError reports latched fault bits (already cleared on the chip).
type FaultError struct {
	Fault Fault
	Raw   byte
	Addr  uint16
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("drv8830 0x%02X: %s: %s (bits 0x%02X)",
		e.Addr, errcode.FaultLatched, e.Fault, e.Raw)
}

func (e *FaultError) Code() errcode.Code { return errcode.FaultLatched }

func (e *FaultError) Is(target error) bool { return target == errcode.FaultLatched }

// Package drv8830 drives the TI DRV8830 voltage-controlled H-bridge.
//
// The chip takes one control byte: VSET (output voltage step) in bits 7..2
// and the IN2|IN1 bridge mode in bits 1..0.
package drv8830

import (
	"fmt"
	"log/slog"

	"tinygo.org/x/drivers"

	"rovercode-go/drivers/i2cdev"
	"rovercode-go/x/mathx"
)

// Solder-jumper addresses.
const (
	AddressA0 uint16 = 0x60
	AddressA1 uint16 = 0x61
	AddressA2 uint16 = 0x63
	AddressA3 uint16 = 0x64
)

const (
	RegControl byte = 0x00
	RegFault   byte = 0x01

	FaultClear byte = 0x80

	// MinSpeed is the dead zone: smaller magnitudes freewheel.
	MinSpeed = 6
	MaxSpeed = 63
)

// Direction is the IN2|IN1 bridge mode.
type Direction byte

const (
	Freewheel Direction = 0b00
	Reverse   Direction = 0b01
	Forward   Direction = 0b10
	Brake     Direction = 0b11
)

var directionNames = [...]string{"freewheel", "reverse", "forward", "brake"}

func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return fmt.Sprintf("direction(%d)", byte(d))
}

// ControlByte returns the CONTROL value for a signed speed step.
func ControlByte(speed int) byte {
	mag := mathx.Abs(speed)
	if mag < MinSpeed {
		return byte(Freewheel)
	}
	dir := Forward
	if speed < 0 {
		dir = Reverse
	}
	return byte(mathx.Min(mag, MaxSpeed))<<2 | byte(dir)
}

type Config struct {
	// Address defaults to AddressA0.
	Address uint16
	Logger  *slog.Logger
}

type Device struct {
	dev *i2cdev.Device
	log *slog.Logger
}

func New(bus drivers.I2C, cfg Config) *Device {
	addr := cfg.Address
	if addr == 0 {
		addr = AddressA0
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Device{
		dev: i2cdev.New(bus, addr, log),
		log: log.With("chip", "drv8830", "addr", addr),
	}
}

func (d *Device) Address() uint16 { return d.dev.Address() }

// Drive sets speed in VSET steps; the sign selects the direction and
// magnitudes above MaxSpeed saturate.
func (d *Device) Drive(speed int) error {
	return d.dev.Write(RegControl, ControlByte(speed))
}

// StandBy floats both outputs.
func (d *Device) StandBy() error {
	return d.dev.Write(RegControl, byte(Freewheel))
}

// Brake shorts both outputs.
func (d *Device) Brake() error {
	return d.dev.Write(RegControl, byte(Brake))
}

// Fault reads the FAULT register and, when any bit is latched, clears it.
// The raw bits read are returned.
func (d *Device) Fault() (byte, error) {
	b, err := d.dev.Read(RegFault)
	if err != nil {
		return 0, err
	}
	if b != 0 {
		d.log.Debug("fault latched", "bits", b)
		if err := d.ResetFault(); err != nil {
			return b, err
		}
	}
	return b, nil
}

// ResetFault clears latched faults unconditionally.
func (d *Device) ResetFault() error {
	return d.dev.Write(RegFault, FaultClear)
}

// CheckFault reads and clears the FAULT register and reports latched bits
// as a *FaultError.
func (d *Device) CheckFault() error {
	b, err := d.Fault()
	if err != nil {
		return err
	}
	f, err := DecodeFault(b)
	if err != nil {
		return err
	}
	if f == FaultFree {
		return nil
	}
	return &FaultError{Fault: f, Raw: b, Addr: d.Address()}
}

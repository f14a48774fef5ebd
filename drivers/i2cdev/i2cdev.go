// Package i2cdev binds a 7-bit address on an I²C bus and offers byte and
// block register access plus read-modify-write pin helpers. Every transfer
// failure is returned as an errcode.IOError naming address and register.
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when both
// w and r are provided, without releasing the bus.
package i2cdev

import (
	"fmt"
	"log/slog"

	"tinygo.org/x/drivers"

	"rovercode-go/errcode"
)

// RawReader is an optional bus capability: a plain read that reports how many
// bytes the peripheral actually delivered.
type RawReader interface {
	RawRead(addr uint16, p []byte) (int, error)
}

// Device is a register-oriented view of one address on a shared bus. It does
// not serialise callers; the bus owner does.
type Device struct {
	bus  drivers.I2C
	addr uint16
	log  *slog.Logger

	// Fixed buffers to avoid per-call heap allocations.
	w [33]byte
	r [1]byte
}

// MaxBlock is the largest register block WriteBlock accepts.
const MaxBlock = 32

// New binds addr on bus. A nil logger discards.
func New(bus drivers.I2C, addr uint16, log *slog.Logger) *Device {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Device{bus: bus, addr: addr, log: log}
}

func (d *Device) Address() uint16 { return d.addr }

func (d *Device) fail(op string, reg int, err error) error {
	msg := fmt.Sprintf("addr=0x%02X", d.addr)
	if reg >= 0 {
		msg += fmt.Sprintf(" reg=0x%02X", reg)
	}
	d.log.Error("i2c transfer failed", "op", op, "addr", d.addr, "reg", reg, "err", err)
	return errcode.Wrap(errcode.IOError, op, msg, err)
}

// Read returns one register byte.
func (d *Device) Read(reg byte) (byte, error) {
	d.w[0] = reg
	if err := d.bus.Tx(d.addr, d.w[:1], d.r[:1]); err != nil {
		return 0, d.fail("i2c.read", int(reg), err)
	}
	return d.r[0], nil
}

// ReadBlock fills buf from consecutive registers starting at reg.
func (d *Device) ReadBlock(reg byte, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	d.w[0] = reg
	if err := d.bus.Tx(d.addr, d.w[:1], buf); err != nil {
		return d.fail("i2c.read_block", int(reg), err)
	}
	return nil
}

// Write stores one register byte.
func (d *Device) Write(reg, val byte) error {
	d.w[0] = reg
	d.w[1] = val
	if err := d.bus.Tx(d.addr, d.w[:2], nil); err != nil {
		return d.fail("i2c.write", int(reg), fmt.Errorf("value 0x%02X: %w", val, err))
	}
	return nil
}

// WriteBlock stores buf into consecutive registers starting at reg.
func (d *Device) WriteBlock(reg byte, buf []byte) error {
	if len(buf) > MaxBlock {
		return errcode.New(errcode.OutOfRange, "i2c.write_block", fmt.Sprintf("%d bytes > %d", len(buf), MaxBlock))
	}
	d.w[0] = reg
	n := copy(d.w[1:], buf)
	if err := d.bus.Tx(d.addr, d.w[:1+n], nil); err != nil {
		return d.fail("i2c.write_block", int(reg), err)
	}
	return nil
}

// WriteRaw sends buf with no register byte.
func (d *Device) WriteRaw(buf []byte) error {
	if err := d.bus.Tx(d.addr, buf, nil); err != nil {
		return d.fail("i2c.write_raw", -1, err)
	}
	return nil
}

// ReadRaw reads into buf with no register byte and returns the count the
// peripheral delivered (len(buf) when the bus cannot tell).
func (d *Device) ReadRaw(buf []byte) (int, error) {
	if rr, ok := d.bus.(RawReader); ok {
		n, err := rr.RawRead(d.addr, buf)
		if err != nil {
			return n, d.fail("i2c.read_raw", -1, err)
		}
		return n, nil
	}
	if err := d.bus.Tx(d.addr, nil, buf); err != nil {
		return 0, d.fail("i2c.read_raw", -1, err)
	}
	return len(buf), nil
}

// Register pin helpers (read-modify-write against a mask).

func (d *Device) ReadPin(reg, mask byte) (byte, error) {
	v, err := d.Read(reg)
	if err != nil {
		return 0, err
	}
	return GetBit(v, mask), nil
}

func (d *Device) IsHigh(reg, mask byte) (bool, error) {
	v, err := d.ReadPin(reg, mask)
	return v == 1, err
}

func (d *Device) IsLow(reg, mask byte) (bool, error) {
	hi, err := d.IsHigh(reg, mask)
	return !hi, err
}

// ConfigPin sets or clears mask in reg.
func (d *Device) ConfigPin(reg byte, level bool, mask byte) error {
	return d.ConfigPinRW(reg, reg, level, mask)
}

// ConfigPinRW reads readReg, applies the mask and writes writeReg (for
// chips with separate input/output latches).
func (d *Device) ConfigPinRW(readReg, writeReg byte, level bool, mask byte) error {
	v, err := d.Read(readReg)
	if err != nil {
		return err
	}
	return d.Write(writeReg, SetBit(v, mask, level))
}

// ConfigPinToggle inverts mask read from readReg and writes writeReg.
func (d *Device) ConfigPinToggle(readReg, writeReg, mask byte) error {
	v, err := d.Read(readReg)
	if err != nil {
		return err
	}
	return d.Write(writeReg, ToggleBit(v, mask))
}

// Update applies (v | set) &^ clear to reg.
func (d *Device) Update(reg, set, clear byte) error {
	v, err := d.Read(reg)
	if err != nil {
		return err
	}
	return d.Write(reg, (v|set)&^clear)
}

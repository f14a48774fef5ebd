package platform

import (
	"errors"
	"sync"
)

// RegWrite is one byte written to a register of a fake device.
type RegWrite struct {
	Addr uint16
	Reg  byte
	Val  byte
}

// FakeDevice is a per-address register file. In Raw mode transfers carry no
// register byte: writes land in RawOut and reads are served from RawIn.
type FakeDevice struct {
	Regs [256]byte
	Raw  bool
	// Wide models chips whose register pointer selects a multi-byte register
	// with no auto-increment: transfers at reg use Words[reg].
	Wide  bool
	Words [256][2]byte

	RawIn  []byte
	RawOut [][]byte
	// ShortRead, when >0, caps the bytes delivered by a raw read.
	ShortRead int
	// Err fails every transfer to this address.
	Err error
	// OnWrite runs after each register byte is stored.
	OnWrite func(reg, val byte)
}

// FakeI2C implements tinygo drivers.I2C plus the raw-read capability used by
// i2cdev, for host-side tests.
type FakeI2C struct {
	mu     sync.Mutex
	devs   map[uint16]*FakeDevice
	writes []RegWrite
	reads  []RegWrite
}

// ErrNoDevice is returned for addresses with no fake attached (a NACK).
var ErrNoDevice = errors.New("fake i2c: no device at address")

func NewFakeI2C() *FakeI2C {
	return &FakeI2C{devs: map[uint16]*FakeDevice{}}
}

// Attach returns the device at addr, creating it if needed.
func (f *FakeI2C) Attach(addr uint16) *FakeDevice {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devs[addr]
	if !ok {
		d = &FakeDevice{}
		f.devs[addr] = d
	}
	return d
}

func (f *FakeI2C) Tx(addr uint16, w, r []byte) error {
	f.mu.Lock()
	d, ok := f.devs[addr]
	if !ok {
		f.mu.Unlock()
		return ErrNoDevice
	}
	if d.Err != nil {
		f.mu.Unlock()
		return d.Err
	}
	if d.Raw {
		if len(w) > 0 {
			d.RawOut = append(d.RawOut, append([]byte(nil), w...))
		}
		if len(r) > 0 {
			copy(r, d.RawIn)
		}
		f.mu.Unlock()
		return nil
	}
	var hooks []func()
	if len(w) > 0 && d.Wide {
		reg := w[0]
		for i, v := range w[1:] {
			if i < len(d.Words[reg]) {
				d.Words[reg][i] = v
			}
			f.writes = append(f.writes, RegWrite{Addr: addr, Reg: reg, Val: v})
		}
		for i := range r {
			if i < len(d.Words[reg]) {
				r[i] = d.Words[reg][i]
			}
			f.reads = append(f.reads, RegWrite{Addr: addr, Reg: reg, Val: r[i]})
		}
	} else if len(w) > 0 {
		reg := w[0]
		for i, v := range w[1:] {
			rr := reg + byte(i)
			d.Regs[rr] = v
			f.writes = append(f.writes, RegWrite{Addr: addr, Reg: rr, Val: v})
			if d.OnWrite != nil {
				cb, rv, vv := d.OnWrite, rr, v
				hooks = append(hooks, func() { cb(rv, vv) })
			}
		}
		for i := range r {
			rr := reg + byte(i)
			r[i] = d.Regs[rr]
			f.reads = append(f.reads, RegWrite{Addr: addr, Reg: rr, Val: r[i]})
		}
	} else if len(r) > 0 {
		copy(r, d.Regs[:])
	}
	f.mu.Unlock()
	for _, h := range hooks {
		h()
	}
	return nil
}

// RawRead delivers at most ShortRead bytes when set, otherwise len(p).
func (f *FakeI2C) RawRead(addr uint16, p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devs[addr]
	if !ok {
		return 0, ErrNoDevice
	}
	if d.Err != nil {
		return 0, d.Err
	}
	n := copy(p, d.RawIn)
	if d.ShortRead > 0 && d.ShortRead < n {
		n = d.ShortRead
	}
	return n, nil
}

// Writes returns every register byte written, in bus order.
func (f *FakeI2C) Writes() []RegWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RegWrite(nil), f.writes...)
}

// WritesTo filters Writes by address.
func (f *FakeI2C) WritesTo(addr uint16) []RegWrite {
	var out []RegWrite
	for _, w := range f.Writes() {
		if w.Addr == addr {
			out = append(out, w)
		}
	}
	return out
}

// Reads returns every register byte read, in bus order.
func (f *FakeI2C) Reads() []RegWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RegWrite(nil), f.reads...)
}

// Reset clears the transfer logs but keeps register contents.
func (f *FakeI2C) Reset() {
	f.mu.Lock()
	f.writes = nil
	f.reads = nil
	f.mu.Unlock()
}

// Package coproc talks to a microcontroller co-processor over I²C using a
// fixed little-endian frame: 5-byte requests, 16-byte replies of which the
// first 9 carry token, status and a 32-bit value.
package coproc

import (
	"context"
	"log/slog"
	"time"

	"tinygo.org/x/drivers"

	"rovercode-go/drivers/i2cdev"
	"rovercode-go/x/timex"
)

// AddressDefault is the usual slave address of the co-processor sketch.
const AddressDefault uint16 = 0x04

type Config struct {
	Address uint16
	// ReplyDelay is waited between request and reply in Exchange. Zero
	// means read immediately.
	ReplyDelay time.Duration
	Sleeper    timex.Sleeper
	Logger     *slog.Logger
}

type Device struct {
	dev   *i2cdev.Device
	delay time.Duration
	sleep timex.Sleeper
	log   *slog.Logger

	rx   [ReplySize]byte
	last Reply
	ok   bool
}

func New(bus drivers.I2C, cfg Config) *Device {
	addr := cfg.Address
	if addr == 0 {
		addr = AddressDefault
	}
	if cfg.Sleeper == nil {
		cfg.Sleeper = timex.Real{}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Device{
		dev:   i2cdev.New(bus, addr, log),
		delay: cfg.ReplyDelay,
		sleep: cfg.Sleeper,
		log:   log.With("chip", "coproc", "addr", addr),
	}
}

func (d *Device) Address() uint16 { return d.dev.Address() }

// Write sends one request frame.
func (d *Device) Write(token uint64, st Status) error {
	b := NewRequest(token, st).Encode()
	return d.dev.WriteRaw(b[:])
}

// Read fetches and decodes one reply. A short frame fails with FrameError
// and leaves Last unchanged.
func (d *Device) Read() (Reply, error) {
	n, err := d.dev.ReadRaw(d.rx[:])
	if err != nil {
		return Reply{}, err
	}
	r, err := DecodeReply(d.rx[:n])
	if err != nil {
		d.log.Debug("short reply", "n", n)
		return Reply{}, err
	}
	d.last, d.ok = r, true
	return r, nil
}

// Exchange writes a request and reads the reply.
func (d *Device) Exchange(ctx context.Context, token uint64, st Status) (Reply, error) {
	if err := d.Write(token, st); err != nil {
		return Reply{}, err
	}
	if d.delay > 0 {
		if err := d.sleep.Sleep(ctx, d.delay); err != nil {
			return Reply{}, err
		}
	}
	return d.Read()
}

// Last returns the most recent successfully decoded reply.
func (d *Device) Last() (Reply, bool) { return d.last, d.ok }

// Package pca9685 drives the NXP PCA9685 16-channel, 12-bit PWM generator
// and provides motor and servo views over its channels.
//
// One Device exists per chip address; the application enforces that at
// wiring time. The Device does not serialise callers: if several goroutines
// share it they must exclude each other.
package pca9685

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"tinygo.org/x/drivers"

	"rovercode-go/drivers/i2cdev"
	"rovercode-go/errcode"
	"rovercode-go/x/timex"
)

// Settling delays.
const (
	resetDelay = 100 * time.Millisecond
	modeDelay  = 5 * time.Millisecond
)

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// Address defaults to 0x40 if zero.
	Address uint16
	// Sleeper defaults to timex.Real.
	Sleeper timex.Sleeper
	Logger  *slog.Logger
}

// Device is a PCA9685 on an I²C bus.
type Device struct {
	dev   *i2cdev.Device
	sleep timex.Sleeper
	log   *slog.Logger

	freq        int
	initialised bool
}

// New constructs a Device. It does not touch the chip.
func New(bus drivers.I2C, cfg Config) *Device {
	addr := cfg.Address
	if addr == 0 {
		addr = AddressDefault
	}
	sl := cfg.Sleeper
	if sl == nil {
		sl = timex.Real{}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Device{
		dev:   i2cdev.New(bus, addr, log),
		sleep: sl,
		log:   log.With("chip", "pca9685", "addr", addr),
	}
}

func (d *Device) Address() uint16   { return d.dev.Address() }
func (d *Device) Frequency() int    { return d.freq }
func (d *Device) Initialised() bool { return d.initialised }

// Initialize soft-resets the chip, zeroes the all-channel registers and wakes
// the oscillator. Safe to call again.
func (d *Device) Initialize(ctx context.Context) error {
	if err := d.dev.Write(RegMode1, SoftReset); err != nil {
		return err
	}
	if err := d.writeAll(0, 0); err != nil {
		return err
	}
	if err := d.sleep.Sleep(ctx, resetDelay); err != nil {
		return err
	}
	if err := d.dev.ConfigPin(RegMode1, false, Mode1Sleep); err != nil {
		return err
	}
	if err := d.sleep.Sleep(ctx, resetDelay); err != nil {
		return err
	}
	d.initialised = true
	d.log.Debug("initialised")
	return nil
}

// Prescale returns the PRE_SCALE value for hz:
//
//	clamp(floor(25e6/(4096*hz) - 0.5), 3, 255)
//
// The -0.5 makes floor() round the ideal divider to the nearest integer
// before the datasheet's -1.
func Prescale(hz int) byte {
	if hz <= 0 {
		return PrescaleMax
	}
	v := math.Floor(float64(OscillatorHz)/float64(Resolution*hz) - 0.5)
	if v < PrescaleMin {
		return PrescaleMin
	}
	if v > PrescaleMax {
		return PrescaleMax
	}
	return byte(v)
}

// OutputFrequency is the PWM frequency produced by a prescale value.
func OutputFrequency(prescale byte) float64 {
	return float64(OscillatorHz) / (float64(Resolution) * (float64(prescale) + 1))
}

// SetFrequency programs the PWM frequency. PRE_SCALE only accepts writes
// while MODE1.SLEEP is set, so the oscillator is stopped, reprogrammed and
// restarted.
func (d *Device) SetFrequency(ctx context.Context, hz int) error {
	if hz <= 0 {
		return errcode.New(errcode.OutOfRange, "pca9685.set_frequency", fmt.Sprintf("%d Hz", hz))
	}
	pre := Prescale(hz)
	mode, err := d.dev.Read(RegMode1)
	if err != nil {
		return err
	}
	awake := mode &^ (Mode1Sleep | Mode1Restart)
	if err := d.dev.Write(RegMode1, awake|Mode1Sleep); err != nil {
		return err
	}
	if err := d.dev.Write(RegPrescale, pre); err != nil {
		return err
	}
	if err := d.dev.Write(RegMode1, awake); err != nil {
		return err
	}
	if err := d.sleep.Sleep(ctx, modeDelay); err != nil {
		return err
	}
	if err := d.dev.Write(RegMode1, awake|Mode1Restart); err != nil {
		return err
	}
	if err := d.sleep.Sleep(ctx, modeDelay); err != nil {
		return err
	}
	d.freq = hz
	d.log.Debug("frequency set", "hz", hz, "prescale", pre)
	return nil
}

func checkTicks(op string, on, off uint16) error {
	if on > MaxTick || off > MaxTick {
		return errcode.New(errcode.OutOfRange, op, fmt.Sprintf("on=%d off=%d exceed %d", on, off, MaxTick))
	}
	return nil
}

// SetChannel writes LEDn_ON_L, ON_H, OFF_L, OFF_H in that order.
func (d *Device) SetChannel(ch int, on, off uint16) error {
	if !d.initialised {
		return errcode.New(errcode.NotInitialised, "pca9685.set_channel", "call Initialize first")
	}
	if ch < 0 || ch >= NumChannels {
		return errcode.New(errcode.OutOfRange, "pca9685.set_channel", fmt.Sprintf("channel %d", ch))
	}
	if err := checkTicks("pca9685.set_channel", on, off); err != nil {
		return err
	}
	return d.writeQuad(channelBase(ch), on, off)
}

// SetAllChannels writes the ALL_LED registers.
func (d *Device) SetAllChannels(on, off uint16) error {
	if !d.initialised {
		return errcode.New(errcode.NotInitialised, "pca9685.set_all", "call Initialize first")
	}
	if err := checkTicks("pca9685.set_all", on, off); err != nil {
		return err
	}
	return d.writeAll(on, off)
}

func (d *Device) writeAll(on, off uint16) error { return d.writeQuad(RegAllOnL, on, off) }

// Byte-by-byte writes keep the chip's latch-on-high-byte ordering explicit.
func (d *Device) writeQuad(base byte, on, off uint16) error {
	vals := [4]byte{byte(on), byte(on >> 8), byte(off), byte(off >> 8)}
	for i, v := range vals {
		if err := d.dev.Write(base+byte(i), v); err != nil {
			return err
		}
	}
	return nil
}

// Halt drives every channel off.
func (d *Device) Halt() error {
	if !d.initialised {
		return nil
	}
	return d.writeAll(0, 0)
}

// Channel returns a view of channel ch.
func (d *Device) Channel(ch int) (Channel, error) {
	if ch < 0 || ch >= NumChannels {
		return Channel{}, errcode.New(errcode.OutOfRange, "pca9685.channel", fmt.Sprintf("channel %d", ch))
	}
	return Channel{dev: d, idx: ch}, nil
}

// Motor returns an unsigned duty-cycle view of channel ch.
func (d *Device) Motor(ch int) (Motor, error) {
	c, err := d.Channel(ch)
	return Motor{ch: c}, err
}

// Servo returns a servo view of channel ch with the default calibration.
func (d *Device) Servo(ch int) (Servo, error) {
	return d.ServoWith(ch, DefaultServoConfig())
}

// ServoWith returns a servo view with a custom calibration.
func (d *Device) ServoWith(ch int, cal ServoConfig) (Servo, error) {
	c, err := d.Channel(ch)
	if err != nil {
		return Servo{}, err
	}
	if err := cal.Validate(); err != nil {
		return Servo{}, err
	}
	return Servo{ch: c, cal: cal}, nil
}

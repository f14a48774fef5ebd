// Package motorhat drives a PCA9685-based dual motor HAT. Each motor uses
// one PWM channel for speed and two channels held fully on or off as the
// IN1/IN2 direction levels of its H-bridge.
package motorhat

import (
	"context"
	"fmt"
	"log/slog"

	"rovercode-go/drivers/pca9685"
	"rovercode-go/errcode"
)

// Motor selects one side of the HAT.
type Motor int

const (
	MotorA Motor = iota
	MotorB
)

func (m Motor) String() string {
	switch m {
	case MotorA:
		return "A"
	case MotorB:
		return "B"
	default:
		return fmt.Sprintf("motor(%d)", int(m))
	}
}

// Channels assigns PCA9685 channels to one motor.
type Channels struct {
	PWM, IN1, IN2 int
}

// DefaultChannels is the HAT's fixed wiring.
var DefaultChannels = [2]Channels{
	MotorA: {PWM: 0, IN1: 1, IN2: 2},
	MotorB: {PWM: 5, IN1: 3, IN2: 4},
}

type Config struct {
	// Channels defaults to DefaultChannels.
	Channels *[2]Channels
	Logger   *slog.Logger
}

type Device struct {
	pwm *pca9685.Device
	ch  [2]Channels
	log *slog.Logger
}

func New(pwm *pca9685.Device, cfg Config) *Device {
	ch := DefaultChannels
	if cfg.Channels != nil {
		ch = *cfg.Channels
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Device{pwm: pwm, ch: ch, log: log.With("chip", "motorhat")}
}

// Initialize resets the controller, leaving every channel off.
func (d *Device) Initialize(ctx context.Context) error {
	return d.pwm.Initialize(ctx)
}

func (d *Device) level(ch int, high bool) error {
	if high {
		return d.pwm.SetChannel(ch, 0, pca9685.MaxTick)
	}
	return d.pwm.SetChannel(ch, 0, 0)
}

// SetSpeed runs m at |speed| of full scale; the sign picks the direction.
// A speed too small to give any duty stops the motor with both IN levels
// low.
func (d *Device) SetSpeed(m Motor, speed float64) error {
	if m != MotorA && m != MotorB {
		return errcode.New(errcode.OutOfRange, "motorhat.set_speed", m.String())
	}
	c := d.ch[m]
	duty := pca9685.DutyFromSpeed(speed)
	if err := d.pwm.SetChannel(c.PWM, 0, duty); err != nil {
		return err
	}
	if err := d.level(c.IN1, duty > 0 && speed < 0); err != nil {
		return err
	}
	if err := d.level(c.IN2, duty > 0 && speed > 0); err != nil {
		return err
	}
	d.log.Debug("set speed", "motor", m.String(), "duty", duty)
	return nil
}

// Stop stops both motors.
func (d *Device) Stop() error {
	if err := d.SetSpeed(MotorA, 0); err != nil {
		return err
	}
	return d.SetSpeed(MotorB, 0)
}

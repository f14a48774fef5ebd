// Package tb6612 drives a TB6612 dual H-bridge wired to two PCA9685 motor
// channels (PWMA/PWMB) and two direction lines (MA/MB).
//
// Forward and stop share a pin pattern: forward motion comes from the duty
// cycle alone while both direction lines stay low; backward raises both.
package tb6612

import (
	"context"
	"log/slog"
	"time"

	"rovercode-go/drivers/pca9685"
	"rovercode-go/line"
	"rovercode-go/x/timex"
)

// State is the bridge direction.
type State int8

const (
	Stop     State = 0
	Forward  State = 1
	Backward State = -1
)

type pattern struct {
	name   string
	ma, mb bool
}

var patterns = map[State]pattern{
	Stop:     {"stop", line.Low, line.Low},
	Forward:  {"forward", line.Low, line.Low},
	Backward: {"backward", line.High, line.High},
}

func (s State) String() string { return patterns[s].name }

// Pins returns the MA/MB levels for s.
func (s State) Pins() (ma, mb bool) {
	p := patterns[s]
	return p.ma, p.mb
}

// StateFor selects the direction by the sign of speed.
func StateFor(speed float64) State {
	switch {
	case speed > 0:
		return Forward
	case speed < 0:
		return Backward
	default:
		return Stop
	}
}

// DutyOutput is one PWM channel taking an off-tick duty (pca9685.Motor).
type DutyOutput interface {
	SetDuty(off int) error
}

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// SwitchDelay is the pause before direction lines change. Default 50 ms.
	SwitchDelay time.Duration
	Sleeper     timex.Sleeper
	Logger      *slog.Logger
}

// Device borrows its direction lines and motor channels; it owns neither.
type Device struct {
	ma, mb line.Output
	a, b   DutyOutput
	state  State

	delay time.Duration
	sleep timex.Sleeper
	log   *slog.Logger
}

func New(ma, mb line.Output, motorA, motorB DutyOutput, cfg Config) *Device {
	if cfg.SwitchDelay <= 0 {
		cfg.SwitchDelay = 50 * time.Millisecond
	}
	if cfg.Sleeper == nil {
		cfg.Sleeper = timex.Real{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Device{
		ma: ma, mb: mb, a: motorA, b: motorB,
		delay: cfg.SwitchDelay,
		sleep: cfg.Sleeper,
		log:   cfg.Logger.With("chip", "tb6612"),
	}
}

func (d *Device) State() State { return d.state }

// Pins returns the borrowed direction lines.
func (d *Device) Pins() [2]line.Output { return [2]line.Output{d.ma, d.mb} }

// SetPWM drives both motors at |speed| of full scale in the direction given
// by its sign.
func (d *Device) SetPWM(ctx context.Context, speed float64) error {
	st := StateFor(speed)
	duty := int(pca9685.DutyFromSpeed(speed))
	ma, mb := st.Pins()

	if err := d.sleep.Sleep(ctx, d.delay); err != nil {
		return err
	}
	if err := d.ma.Set(ma); err != nil {
		return err
	}
	if err := d.mb.Set(mb); err != nil {
		return err
	}
	d.state = st
	if err := d.a.SetDuty(duty); err != nil {
		return err
	}
	if err := d.b.SetDuty(duty); err != nil {
		return err
	}
	d.log.Debug("set pwm", "duty", duty, "ma", ma, "mb", mb, "state", st.String())
	return nil
}

// Reset releases both direction lines LOW on shutdown and drives them HIGH
// now so the bridge is disabled.
func (d *Device) Reset() error {
	d.log.Debug("reset")
	for _, p := range d.Pins() {
		if p == nil {
			continue
		}
		p.SetShutdownState(line.Low)
		if err := p.Set(line.High); err != nil {
			return err
		}
	}
	return nil
}

package pca9685

import (
	"fmt"

	"rovercode-go/errcode"
	"rovercode-go/x/mathx"
)

// Channel is a thin view of one PWM output. Identity is the index; the view
// holds no state of its own.
type Channel struct {
	dev *Device
	idx int
}

func (c Channel) Index() int { return c.idx }

// Set writes raw on/off ticks.
func (c Channel) Set(on, off uint16) error {
	if c.dev == nil {
		return errcode.New(errcode.NotInitialised, "pca9685.channel", "view has no controller")
	}
	return c.dev.SetChannel(c.idx, on, off)
}

// ---- Motor ----

// Motor maps an unsigned duty onto a channel (on-tick fixed at 0). Direction
// is handled by whatever owns the view.
type Motor struct {
	ch Channel
}

func (m Motor) Channel() Channel { return m.ch }

// DutyFromSpeed converts a normalised speed to off ticks: floor(|s|*4095),
// with |s| clamped to 1.
func DutyFromSpeed(speed float64) uint16 {
	mag := mathx.Clamp(mathx.Abs(speed), 0, 1)
	return uint16(mag * MaxTick)
}

// SetSpeed drives the channel at |speed| of full scale.
func (m Motor) SetSpeed(speed float64) error { return m.SetDuty(int(DutyFromSpeed(speed))) }

// SetDuty writes off ticks with on = 0.
func (m Motor) SetDuty(off int) error { return m.SetPWM(0, off) }

// SetPWM clamps both ticks to [0, 4095].
func (m Motor) SetPWM(on, off int) error {
	return m.ch.Set(uint16(mathx.Clamp(on, 0, MaxTick)), uint16(mathx.Clamp(off, 0, MaxTick)))
}

// ---- Servo ----

// ServoConfig is a servo calibration in ticks.
type ServoConfig struct {
	MinLimit int // lower mechanical limit
	MaxLimit int // upper mechanical limit
	Delta    int // permitted steering travel around the midpoint
	Trim     int // centre offset
}

// DefaultServoConfig returns the steering servo calibration.
func DefaultServoConfig() ServoConfig {
	return ServoConfig{MinLimit: 400, MaxLimit: 2000, Delta: 500, Trim: -20}
}

func (c ServoConfig) MinSteering() int { return (c.MinLimit + c.MaxLimit - c.Delta) / 2 }
func (c ServoConfig) MaxSteering() int { return (c.MinLimit + c.MaxLimit + c.Delta) / 2 }
func (c ServoConfig) Centre() int      { return (c.MinLimit+c.MaxLimit)/2 + c.Trim }

func (c ServoConfig) Validate() error {
	if c.MinLimit < 0 || c.MaxLimit > MaxTick || c.MinLimit >= c.MaxLimit || c.Delta < 0 || c.MinSteering() < 1 {
		return errcode.New(errcode.InvalidConfig, "pca9685.servo", fmt.Sprintf("calibration %+v", c))
	}
	return nil
}

// Servo maps steering commands onto a channel within the calibrated travel.
type Servo struct {
	ch  Channel
	cal ServoConfig
}

func (s Servo) Channel() Channel         { return s.ch }
func (s Servo) Calibration() ServoConfig { return s.cal }

// OffTicks is the clamped off-tick for a relative command.
func (s Servo) OffTicks(rel int) int {
	return mathx.Clamp(s.cal.Centre()+rel, s.cal.MinSteering(), s.cal.MaxSteering())
}

// Set steers by rel ticks from the trimmed centre.
func (s Servo) Set(rel int) error {
	return s.ch.Set(0, uint16(s.OffTicks(rel)))
}

// SetPWM writes explicit ticks. off is clamped to the steering window; an
// on-tick outside [0, MinSteering-1] is rejected.
func (s Servo) SetPWM(on, off int) error {
	if on < 0 || on > s.cal.MinSteering()-1 {
		return errcode.New(errcode.OutOfRange, "pca9685.servo", fmt.Sprintf("on=%d outside [0,%d]", on, s.cal.MinSteering()-1))
	}
	off = mathx.Clamp(off, s.cal.MinSteering(), s.cal.MaxSteering())
	return s.ch.Set(uint16(on), uint16(off))
}

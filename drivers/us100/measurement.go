package us100

import (
	"fmt"

	"rovercode-go/x/mathx"
)

// Measurement is one completed echo. Fields are fixed-point with one
// decimal: ElapsedDeciMs is tenths of a millisecond, DistanceDeciCm tenths
// of a centimetre.
type Measurement struct {
	TimestampNs    int64 // falling edge
	ElapsedDeciMs  int64
	DistanceDeciCm int64
}

// Nanoseconds per tenth of a millisecond.
const nsPerDeciMs = 100_000

// ElapsedDeciMs rounds elapsedNs to tenths of a millisecond, half up.
func ElapsedDeciMs(elapsedNs int64) int64 {
	return mathx.RoundHalfUpDiv(elapsedNs, nsPerDeciMs)
}

// DistanceDeciCm converts an echo width to tenths of a centimetre, half up.
// Sound covers 0.034 cm/µs and the echo is a round trip: cm = ns·17·10⁻⁶.
func DistanceDeciCm(elapsedNs int64) int64 {
	return mathx.RoundHalfUpDiv(elapsedNs*17, nsPerDeciMs)
}

func NewMeasurement(fallingNs, elapsedNs int64) Measurement {
	return Measurement{
		TimestampNs:    fallingNs,
		ElapsedDeciMs:  ElapsedDeciMs(elapsedNs),
		DistanceDeciCm: DistanceDeciCm(elapsedNs),
	}
}

func (m Measurement) ElapsedMs() float64  { return float64(m.ElapsedDeciMs) / 10 }
func (m Measurement) DistanceCm() float64 { return float64(m.DistanceDeciCm) / 10 }

func (m Measurement) String() string {
	return fmt.Sprintf("%d.%d cm (%d.%d ms @%d)",
		m.DistanceDeciCm/10, m.DistanceDeciCm%10,
		m.ElapsedDeciMs/10, m.ElapsedDeciMs%10, m.TimestampNs)
}

// Sink receives each completed measurement on the edge delivery goroutine.
type Sink interface {
	Publish(Measurement)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Measurement)

func (f SinkFunc) Publish(m Measurement) { f(m) }

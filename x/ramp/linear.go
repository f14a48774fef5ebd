// Package ramp steps a drive level linearly towards a target.
package ramp

import (
	"context"
	"time"

	"rovercode-go/x/mathx"
	"rovercode-go/x/timex"
)

// Step applies one level. An error aborts the ramp.
type Step func(level float64) error

// Levels returns the intermediate levels of a steps-long ramp from cur to
// to, ending exactly on to. steps<=1 yields just {to}.
func Levels(cur, to float64, steps int) []float64 {
	if steps <= 1 {
		return []float64{to}
	}
	out := make([]float64, steps)
	d := (to - cur) / float64(steps)
	for i := 1; i < steps; i++ {
		out[i-1] = cur + d*float64(i)
	}
	out[steps-1] = to
	return out
}

// Linear walks cur to to in steps increments spread evenly over dur,
// sleeping before each one. steps<=1 or dur<=0 snaps to to. The step period
// is floored at 1 ms.
func Linear(ctx context.Context, s timex.Sleeper, cur, to float64, dur time.Duration, steps int, set Step) error {
	if steps <= 1 || dur <= 0 {
		return set(to)
	}
	period := mathx.Max(dur/time.Duration(steps), time.Millisecond)
	for _, lvl := range Levels(cur, to, steps) {
		if err := s.Sleep(ctx, period); err != nil {
			return err
		}
		if err := set(lvl); err != nil {
			return err
		}
	}
	return nil
}

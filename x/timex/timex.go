// Package timex holds the clock and sleep abstractions the drivers are
// written against, so tests can run blocking sequences on virtual time.
package timex

import (
	"context"
	"sync"
	"time"

	"rovercode-go/errcode"
)

// Sleeper blocks for d or until ctx is done. A cancelled sleep returns an
// error carrying errcode.Interrupted.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Clock reports a monotonic timestamp in nanoseconds.
type Clock interface {
	NowNanos() int64
}

// Real is the production Sleeper and Clock.
type Real struct{}

var epoch = time.Now()

// NowNanos is monotonic: it is measured from process start.
func (Real) NowNanos() int64 { return int64(time.Since(epoch)) }

func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return errcode.Wrap(errcode.Interrupted, "sleep", "", err)
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return errcode.Wrap(errcode.Interrupted, "sleep", "", ctx.Err())
	}
}

// Fake is a virtual clock. Sleep advances it instantly and records the
// requested duration. Safe for concurrent use.
type Fake struct {
	mu     sync.Mutex
	now    int64
	sleeps []time.Duration
	// OnSleep, if set, runs after each sleep with the lock released.
	OnSleep func(d time.Duration)
}

// NewFake returns a Fake starting at startNs.
func NewFake(startNs int64) *Fake { return &Fake{now: startNs} }

func (f *Fake) NowNanos() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves virtual time forward without recording a sleep.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now += int64(d)
	f.mu.Unlock()
}

// Set pins virtual time to ns.
func (f *Fake) Set(ns int64) {
	f.mu.Lock()
	f.now = ns
	f.mu.Unlock()
}

func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return errcode.Wrap(errcode.Interrupted, "sleep", "", err)
		}
	}
	f.mu.Lock()
	f.now += int64(d)
	f.sleeps = append(f.sleeps, d)
	hook := f.OnSleep
	f.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return nil
}

// Sleeps returns a copy of the recorded sleep durations.
func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}

// Total is the sum of recorded sleeps.
func (f *Fake) Total() time.Duration {
	var sum time.Duration
	for _, d := range f.Sleeps() {
		sum += d
	}
	return sum
}

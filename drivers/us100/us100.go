// Package us100 drives a US-100 ultrasonic range finder in pulse-width mode:
// one trigger output and one echo input whose high time is the round-trip
// flight time.
//
// Echo edges arrive on the line.EdgeWorker goroutine. The state, the two
// edge timestamps and the last result are the only fields shared with that
// goroutine; all are atomics, and results are published as one pointer swap
// of an immutable Measurement.
package us100

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"rovercode-go/errcode"
	"rovercode-go/line"
	"rovercode-go/x/timex"
)

// State of the measurement cycle.
type State int32

const (
	Neutral State = iota
	Started
	Rising
	Falling
)

func (s State) String() string {
	switch s {
	case Neutral:
		return "neutral"
	case Started:
		return "started"
	case Rising:
		return "rising"
	case Falling:
		return "falling"
	default:
		return "unknown"
	}
}

// Trigger pulse timing.
const (
	triggerLow    = 2 * time.Millisecond
	triggerHigh   = 2 * time.Millisecond
	triggerSettle = 10 * time.Millisecond
)

type Config struct {
	// EchoPoll is the busy-wait step while echo is still high. Default 1 ms.
	EchoPoll time.Duration
	// EchoPolls bounds the busy-wait. Default 100.
	EchoPolls int
	Sleeper   timex.Sleeper
	Logger    *slog.Logger
	// Sink, if set, receives every completed measurement.
	Sink Sink
	// Debounce drops echo edges closer than this to the previous accepted
	// edge. Zero accepts every edge.
	Debounce time.Duration
}

type Device struct {
	trig line.Output
	echo line.IRQInput

	state   atomic.Int32
	rising  atomic.Int64
	falling atomic.Int64
	last    atomic.Pointer[Measurement]

	sink     Sink
	debounce time.Duration
	poll     time.Duration
	polls    int
	sleep    timex.Sleeper
	log      *slog.Logger
}

func New(trig line.Output, echo line.IRQInput, cfg Config) *Device {
	if cfg.EchoPoll <= 0 {
		cfg.EchoPoll = time.Millisecond
	}
	if cfg.EchoPolls <= 0 {
		cfg.EchoPolls = 100
	}
	if cfg.Sleeper == nil {
		cfg.Sleeper = timex.Real{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Device{
		trig:     trig,
		echo:     echo,
		sink:     cfg.Sink,
		debounce: cfg.Debounce,
		poll:     cfg.EchoPoll,
		polls:    cfg.EchoPolls,
		sleep:    cfg.Sleeper,
		log:      cfg.Logger.With("chip", "us100"),
	}
}

// Attach routes echo edges through w. The returned func detaches.
func (d *Device) Attach(w *line.EdgeWorker) (func(), error) {
	return w.Watch(d.echo, line.EdgeBoth, d.debounce, d.HandleEdge)
}

func (d *Device) State() State     { return State(d.state.Load()) }
func (d *Device) RisingNs() int64  { return d.rising.Load() }
func (d *Device) FallingNs() int64 { return d.falling.Load() }

// Last returns the most recent completed measurement.
func (d *Device) Last() (Measurement, bool) {
	m := d.last.Load()
	if m == nil {
		return Measurement{}, false
	}
	return *m, true
}

// StartMeasuring waits for the echo line to drop, arms the state machine and
// pulses the trigger. The result arrives later through HandleEdge.
func (d *Device) StartMeasuring(ctx context.Context) error {
	for i := 0; d.echo.Get(); i++ {
		if i >= d.polls {
			return errcode.New(errcode.Timeout, "us100.start", "echo still high")
		}
		if err := d.sleep.Sleep(ctx, d.poll); err != nil {
			return err
		}
	}

	d.rising.Store(0)
	d.falling.Store(0)
	d.state.Store(int32(Started))

	if err := d.trig.Set(line.Low); err != nil {
		return errcode.Wrap(errcode.IOError, "us100.trigger", "", err)
	}
	if err := d.sleep.Sleep(ctx, triggerLow); err != nil {
		return err
	}
	if err := d.trig.Set(line.High); err != nil {
		return errcode.Wrap(errcode.IOError, "us100.trigger", "", err)
	}
	if err := d.sleep.Sleep(ctx, triggerHigh); err != nil {
		return err
	}
	if err := d.trig.Set(line.Low); err != nil {
		return errcode.Wrap(errcode.IOError, "us100.trigger", "", err)
	}
	return d.sleep.Sleep(ctx, triggerSettle)
}

// HandleEdge advances the state machine. Edges that do not match the
// current state are ignored.
func (d *Device) HandleEdge(ev line.EdgeEvent) {
	switch ev.Edge {
	case line.EdgeRising:
		if d.state.CompareAndSwap(int32(Started), int32(Rising)) {
			d.rising.Store(ev.TS)
		}
	case line.EdgeFalling:
		rise := d.rising.Load()
		if !d.state.CompareAndSwap(int32(Rising), int32(Falling)) {
			return
		}
		d.falling.Store(ev.TS)
		elapsed := ev.TS - rise
		if elapsed < 0 {
			elapsed = 0
		}
		m := NewMeasurement(ev.TS, elapsed)
		d.last.Store(&m)
		d.log.Debug("measured", "distance_cm", m.DistanceCm(), "elapsed_ms", m.ElapsedMs())
		if d.sink != nil {
			d.sink.Publish(m)
		}
	}
}

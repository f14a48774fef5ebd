package us100

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"rovercode-go/errcode"
	"rovercode-go/line"
	"rovercode-go/platform"
	"rovercode-go/x/timex"
)

type capture struct{ got []Measurement }

func (c *capture) Publish(m Measurement) { c.got = append(c.got, m) }

func newTestDevice(t *testing.T) (*Device, *platform.FakePin, *platform.FakePin, *timex.Fake, *capture) {
	t.Helper()
	trig, echo := platform.NewFakePin(23), platform.NewFakePin(24)
	clk := timex.NewFake(0)
	sink := &capture{}
	d := New(trig, echo, Config{Sleeper: clk, Sink: sink})
	return d, trig, echo, clk, sink
}

func rising(ts int64) line.EdgeEvent {
	return line.EdgeEvent{Pin: 24, Level: true, Edge: line.EdgeRising, TS: ts}
}
func falling(ts int64) line.EdgeEvent {
	return line.EdgeEvent{Pin: 24, Level: false, Edge: line.EdgeFalling, TS: ts}
}

func TestConversionLiteral(t *testing.T) {
	m := NewMeasurement(1_000_058_000, 58_000)
	if m.DistanceDeciCm != 10 || m.DistanceCm() != 1.0 {
		t.Fatalf("distance %v", m.DistanceCm())
	}
	if m.ElapsedDeciMs != 1 {
		t.Fatalf("elapsed %v", m.ElapsedMs())
	}
	if m.String() != "1.0 cm (0.1 ms @1000058000)" {
		t.Fatalf("string %q", m.String())
	}
}

func TestDistanceRoundsHalfUpAndIsMonotone(t *testing.T) {
	cases := []struct {
		ns   int64
		deci int64
	}{
		{0, 0},
		{2941, 0},         // 0.049997 cm
		{2942, 1},         // 0.050014 cm
		{5_882_353, 1000}, // 100.000001 cm
	}
	for _, c := range cases {
		if got := DistanceDeciCm(c.ns); got != c.deci {
			t.Fatalf("%d ns: got %d want %d", c.ns, got, c.deci)
		}
	}
	prev := int64(0)
	for ns := int64(0); ns < 40_000_000; ns += 997 {
		d := DistanceDeciCm(ns)
		if d < prev {
			t.Fatalf("not monotone at %d", ns)
		}
		prev = d
	}
}

func TestStartMeasuringPulsesTrigger(t *testing.T) {
	d, trig, _, clk, _ := newTestDevice(t)
	if err := d.StartMeasuring(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(trig.History(), []bool{false, true, false}) {
		t.Fatalf("trigger %v", trig.History())
	}
	want := []time.Duration{2 * time.Millisecond, 2 * time.Millisecond, 10 * time.Millisecond}
	if !reflect.DeepEqual(clk.Sleeps(), want) {
		t.Fatalf("sleeps %v", clk.Sleeps())
	}
	if d.State() != Started {
		t.Fatalf("state %v", d.State())
	}
}

func TestStartMeasuringWaitsForEcho(t *testing.T) {
	d, _, echo, clk, _ := newTestDevice(t)
	_ = echo.Set(true)
	polls := 0
	clk.OnSleep = func(dur time.Duration) {
		if dur == time.Millisecond {
			polls++
			if polls == 3 {
				_ = echo.Set(false)
			}
		}
	}
	if err := d.StartMeasuring(context.Background()); err != nil {
		t.Fatal(err)
	}
	if polls != 3 {
		t.Fatalf("polls %d", polls)
	}
}

func TestStartMeasuringTimesOut(t *testing.T) {
	d, trig, echo, clk, _ := newTestDevice(t)
	_ = echo.Set(true)
	err := d.StartMeasuring(context.Background())
	if errcode.Of(err) != errcode.Timeout {
		t.Fatalf("got %v", err)
	}
	if len(clk.Sleeps()) != 100 || len(trig.History()) != 0 || d.State() != Neutral {
		t.Fatal("timeout must not touch the trigger")
	}
}

func TestStartMeasuringInterrupted(t *testing.T) {
	d, _, _, _, _ := newTestDevice(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.StartMeasuring(ctx); errcode.Of(err) != errcode.Interrupted {
		t.Fatalf("got %v", err)
	}
}

func TestTriggerFailure(t *testing.T) {
	d, trig, _, _, _ := newTestDevice(t)
	trig.SetErr = errors.New("gpio gone")
	if err := d.StartMeasuring(context.Background()); errcode.Of(err) != errcode.IOError {
		t.Fatalf("got %v", err)
	}
}

func TestFullCycle(t *testing.T) {
	d, _, _, _, sink := newTestDevice(t)
	_ = d.StartMeasuring(context.Background())

	d.HandleEdge(rising(1_000_000_000))
	if d.State() != Rising || d.RisingNs() != 1_000_000_000 {
		t.Fatal("rising")
	}
	d.HandleEdge(falling(1_000_058_000))
	if d.State() != Falling || d.FallingNs() != 1_000_058_000 {
		t.Fatal("falling")
	}
	m, ok := d.Last()
	if !ok || m.DistanceDeciCm != 10 || m.TimestampNs != 1_000_058_000 {
		t.Fatalf("last %v", m)
	}
	if len(sink.got) != 1 || sink.got[0] != m {
		t.Fatalf("sink %v", sink.got)
	}

	// a stray falling edge after completion is ignored
	d.HandleEdge(falling(2_000_000_000))
	if len(sink.got) != 1 {
		t.Fatal("stray edge published")
	}
}

func TestOutOfOrderEdgesIgnored(t *testing.T) {
	seqs := [][]line.EdgeEvent{
		{rising(10), falling(20)},
		{falling(10)},
		{falling(10), rising(20)},
	}
	for i, seq := range seqs {
		d, _, _, _, sink := newTestDevice(t)
		for _, ev := range seq {
			d.HandleEdge(ev)
		}
		if d.State() != Neutral || len(sink.got) != 0 {
			t.Fatalf("seq %d: state %v published %d", i, d.State(), len(sink.got))
		}
		if _, ok := d.Last(); ok {
			t.Fatalf("seq %d: result set", i)
		}
	}
}

func TestRestartKeepsPreviousResult(t *testing.T) {
	d, _, _, _, sink := newTestDevice(t)
	ctx := context.Background()
	_ = d.StartMeasuring(ctx)
	d.HandleEdge(rising(100))
	d.HandleEdge(falling(100 + 1_000_000))
	first, _ := d.Last()

	// a started measurement that never echoes leaves the old result
	_ = d.StartMeasuring(ctx)
	d.HandleEdge(falling(5_000_000))
	if d.State() != Started || d.RisingNs() != 0 {
		t.Fatalf("state %v", d.State())
	}
	if got, _ := d.Last(); got != first || len(sink.got) != 1 {
		t.Fatal("previous result replaced")
	}
}

func TestEdgesThroughWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	trig, echo := platform.NewFakePin(23), platform.NewFakePin(24)
	clk := timex.NewFake(0)
	got := make(chan Measurement, 1)
	d := New(trig, echo, Config{
		Sleeper: clk,
		Sink:    SinkFunc(func(m Measurement) { got <- m }),
	})

	w := line.NewEdgeWorker(clk, 8)
	w.Start(ctx)
	detach, err := d.Attach(w)
	if err != nil {
		t.Fatal(err)
	}
	defer detach()

	if err := d.StartMeasuring(ctx); err != nil {
		t.Fatal(err)
	}
	clk.Set(1_000_000_000)
	_ = echo.Set(true)
	clk.Set(1_000_580_000)
	_ = echo.Set(false)

	select {
	case m := <-got:
		if m.DistanceDeciCm != 99 || m.ElapsedDeciMs != 6 {
			t.Fatalf("got %v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no measurement delivered")
	}
}

func TestDebouncedEchoThroughWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	trig, echo := platform.NewFakePin(23), platform.NewFakePin(24)
	clk := timex.NewFake(0)
	got := make(chan Measurement, 4)
	d := New(trig, echo, Config{
		Sleeper:  clk,
		Sink:     SinkFunc(func(m Measurement) { got <- m }),
		Debounce: 50 * time.Microsecond,
	})

	w := line.NewEdgeWorker(clk, 8)
	w.Start(ctx)
	detach, err := d.Attach(w)
	if err != nil {
		t.Fatal(err)
	}
	defer detach()

	if err := d.StartMeasuring(ctx); err != nil {
		t.Fatal(err)
	}
	// Rising edge, a 10 µs bounce, then the real falling edge.
	clk.Set(1_000_000_000)
	_ = echo.Set(true)
	clk.Set(1_000_010_000)
	_ = echo.Set(false)
	clk.Set(1_000_020_000)
	_ = echo.Set(true)
	clk.Set(1_000_580_000)
	_ = echo.Set(false)

	select {
	case m := <-got:
		if m.DistanceDeciCm != 99 || m.ElapsedDeciMs != 6 {
			t.Fatalf("bounce leaked into %v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no measurement delivered")
	}
}

func TestFallingEdgeDoesNotOverwriteRestart(t *testing.T) {
	d, _, _, _, sink := newTestDevice(t)
	d.state.Store(int32(Started))
	d.HandleEdge(falling(500))
	if d.State() != Started || len(sink.got) != 0 {
		t.Fatalf("state %v, %d results", d.State(), len(sink.got))
	}
	d.HandleEdge(rising(1000))
	if d.State() != Rising {
		t.Fatalf("rising edge dropped: %v", d.State())
	}
}

package pca9685

import (
	"context"
	"math"
	"reflect"
	"testing"
	"time"

	"rovercode-go/errcode"
	"rovercode-go/platform"
	"rovercode-go/x/timex"
)

func newTestDevice(t *testing.T) (*Device, *platform.FakeI2C, *timex.Fake) {
	t.Helper()
	bus := platform.NewFakeI2C()
	bus.Attach(AddressDefault)
	clk := timex.NewFake(0)
	return New(bus, Config{Sleeper: clk}), bus, clk
}

func TestInitializeThenFrequencyBusSequence(t *testing.T) {
	d, bus, clk := newTestDevice(t)
	ctx := context.Background()
	if err := d.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	if err := d.SetFrequency(ctx, 50); err != nil {
		t.Fatal(err)
	}

	w := func(reg, val byte) platform.RegWrite {
		return platform.RegWrite{Addr: AddressDefault, Reg: reg, Val: val}
	}
	want := []platform.RegWrite{
		w(RegMode1, SoftReset),
		w(RegAllOnL, 0), w(RegAllOnH, 0), w(RegAllOffL, 0), w(RegAllOffH, 0),
		w(RegMode1, SoftReset&^Mode1Sleep), // SLEEP cleared after 100 ms
		w(RegMode1, 0x06|Mode1Sleep),
		w(RegPrescale, 121),
		w(RegMode1, 0x06),
		w(RegMode1, 0x06|Mode1Restart),
	}
	if got := bus.Writes(); !reflect.DeepEqual(got, want) {
		t.Fatalf("bus writes:\n got %v\nwant %v", got, want)
	}
	wantSleeps := []time.Duration{100 * time.Millisecond, 100 * time.Millisecond, 5 * time.Millisecond, 5 * time.Millisecond}
	if got := clk.Sleeps(); !reflect.DeepEqual(got, wantSleeps) {
		t.Fatalf("sleeps = %v", got)
	}
	if d.Frequency() != 50 || !d.Initialised() {
		t.Fatal("state not recorded")
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	d, bus, _ := newTestDevice(t)
	ctx := context.Background()
	_ = d.Initialize(ctx)
	first := bus.Writes()
	bus.Reset()
	if err := d.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, bus.Writes()) {
		t.Fatal("second Initialize wrote a different sequence")
	}
}

func TestPrescale(t *testing.T) {
	if Prescale(50) != 121 {
		t.Fatalf("Prescale(50) = %d", Prescale(50))
	}
	if Prescale(1) != PrescaleMax || Prescale(100000) != PrescaleMin {
		t.Fatal("prescale not clamped")
	}
	for f := 24; f <= 1526; f++ {
		p := Prescale(f)
		if p < PrescaleMin || p > PrescaleMax {
			t.Fatalf("f=%d prescale %d out of range", f, p)
		}
		// p+1 is the nearest integer divider.
		ideal := float64(OscillatorHz) / float64(Resolution*f)
		if math.Abs(ideal-float64(p)-1) > 0.5+1e-9 {
			t.Fatalf("f=%d: divider %d not nearest to %.3f", f, int(p)+1, ideal)
		}
		// Where the divider is coarse-grained enough, the error stays under 2 %.
		if ideal >= 26 {
			if rel := math.Abs(OutputFrequency(p)-float64(f)) / float64(f); rel >= 0.02 {
				t.Fatalf("f=%d: relative error %.4f", f, rel)
			}
		}
	}
}

func TestSetChannelLittleEndian(t *testing.T) {
	d, bus, _ := newTestDevice(t)
	_ = d.Initialize(context.Background())
	fd := bus.Attach(AddressDefault)

	for _, ch := range []int{0, 7, 15} {
		for _, pair := range [][2]uint16{{0, 0}, {1, 4095}, {0x123, 0xABC}, {4095, 256}} {
			a, b := pair[0], pair[1]
			bus.Reset()
			if err := d.SetChannel(ch, a, b); err != nil {
				t.Fatal(err)
			}
			base := 4*ch + 6
			got := fd.Regs[base : base+4]
			want := []byte{byte(a & 0xFF), byte(a >> 8), byte(b & 0xFF), byte(b >> 8)}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("ch %d (%d,%d): regs %v want %v", ch, a, b, got, want)
			}
			ws := bus.Writes()
			for i, w := range ws {
				if int(w.Reg) != base+i {
					t.Fatalf("write order: %v", ws)
				}
			}
		}
	}
}

func TestSetChannelGuards(t *testing.T) {
	d, _, _ := newTestDevice(t)
	if err := d.SetChannel(0, 0, 1); errcode.Of(err) != errcode.NotInitialised {
		t.Fatalf("before init: %v", err)
	}
	_ = d.Initialize(context.Background())
	if err := d.SetChannel(16, 0, 1); errcode.Of(err) != errcode.OutOfRange {
		t.Fatalf("channel 16: %v", err)
	}
	if err := d.SetChannel(0, 0, 4096); errcode.Of(err) != errcode.OutOfRange {
		t.Fatalf("tick 4096: %v", err)
	}
	if _, err := d.Motor(-1); errcode.Of(err) != errcode.OutOfRange {
		t.Fatalf("motor(-1): %v", err)
	}
	if err := d.SetFrequency(context.Background(), 0); errcode.Of(err) != errcode.OutOfRange {
		t.Fatalf("0 Hz: %v", err)
	}
}

func TestSetAllChannels(t *testing.T) {
	d, bus, _ := newTestDevice(t)
	_ = d.Initialize(context.Background())
	bus.Reset()
	if err := d.SetAllChannels(0x010, 0x800); err != nil {
		t.Fatal(err)
	}
	fd := bus.Attach(AddressDefault)
	if got := fd.Regs[RegAllOnL : RegAllOffH+1]; !reflect.DeepEqual(got, []byte{0x10, 0x00, 0x00, 0x08}) {
		t.Fatalf("all regs %v", got)
	}
}

func TestInitializeInterrupted(t *testing.T) {
	d, bus, _ := newTestDevice(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := d.Initialize(ctx)
	if errcode.Of(err) != errcode.Interrupted {
		t.Fatalf("want interrupted, got %v", err)
	}
	if d.Initialised() {
		t.Fatal("interrupted init must not mark the chip ready")
	}
	// Bytes already on the wire stay; nothing after the sleep is sent.
	if n := len(bus.Writes()); n != 5 {
		t.Fatalf("writes before interruption = %d", n)
	}
}

package mcp9808

import (
	"errors"
	"testing"

	"rovercode-go/errcode"
	"rovercode-go/platform"
)

func newTestDevice(t *testing.T) (*Device, *platform.FakeI2C, *platform.FakeDevice) {
	t.Helper()
	bus := platform.NewFakeI2C()
	fd := bus.Attach(AddressDefault)
	fd.Wide = true
	return New(bus, Config{}), bus, fd
}

func TestEncodeDecodeLiterals(t *testing.T) {
	if got := Encode(25.0625); got != [2]byte{0x01, 0x91} {
		t.Fatalf("encode 25.0625 = % X", got)
	}
	if got := Decode([2]byte{0x1F, 0x41}); got != -244.0625 {
		t.Fatalf("decode 1F41 = %v", got)
	}
	if got := Decode([2]byte{0xE1, 0x91}); got != 25.0625 {
		t.Fatalf("status bits must be ignored, got %v", got)
	}
}

func TestEncodeClamps(t *testing.T) {
	if got := Decode(Encode(200)); got != MaxTemp {
		t.Fatalf("hot clamp %v", got)
	}
	if got := Decode(Encode(-90)); got != MinTemp {
		t.Fatalf("cold clamp %v", got)
	}
}

func TestRoundTripSixteenths(t *testing.T) {
	for i := -40 * 16; i <= 125*16; i++ {
		want := float64(i) / 16
		if got := Decode(Encode(want)); got != want {
			t.Fatalf("%v -> % X -> %v", want, Encode(want), got)
		}
	}
}

func TestSmallNegativeKeepsFraction(t *testing.T) {
	if got := Encode(-0.5); got != [2]byte{0x10, 0x08} {
		t.Fatalf("encode -0.5 = % X", got)
	}
}

func TestLimitsRoundTrip(t *testing.T) {
	d, _, fd := newTestDevice(t)
	if err := d.SetCritical(80); err != nil {
		t.Fatal(err)
	}
	if err := d.SetUpper(45.25); err != nil {
		t.Fatal(err)
	}
	if err := d.SetLower(-10.5); err != nil {
		t.Fatal(err)
	}
	if fd.Words[RegTCrit] != Encode(80) {
		t.Fatalf("TCRIT % X", fd.Words[RegTCrit])
	}
	for _, c := range []struct {
		get  func() (float64, error)
		want float64
	}{
		{d.Critical, 80}, {d.Upper, 45.25}, {d.Lower, -10.5},
	} {
		got, err := c.get()
		if err != nil || got != c.want {
			t.Fatalf("got %v, %v want %v", got, err, c.want)
		}
	}
}

func TestReadAndStatus(t *testing.T) {
	d, _, fd := newTestDevice(t)
	fd.Words[RegTAmbient] = [2]byte{0xC1, 0x91}

	r, err := d.Read()
	if err != nil {
		t.Fatal(err)
	}
	want := Reading{Celsius: 25.0625, Critical: true, AboveUpper: true}
	if r != want {
		t.Fatalf("got %+v", r)
	}
	if v, _ := d.AmbientAtOrAboveCritical(); !v {
		t.Fatal("crit")
	}
	if v, _ := d.AmbientAboveUpper(); !v {
		t.Fatal("upper")
	}
	if v, _ := d.AmbientBelowLower(); v {
		t.Fatal("lower")
	}
	if a, _ := d.Ambient(); a != 25.0625 {
		t.Fatalf("ambient %v", a)
	}
}

func TestAlertConfiguration(t *testing.T) {
	d, _, fd := newTestDevice(t)

	if err := d.ConfigureComparator(true, true); err != nil {
		t.Fatal(err)
	}
	if got := fd.Words[RegConfig][1]; got != cfgAlertCtl|cfgAlertPol|cfgAlertSel {
		t.Fatalf("comparator lsb 0x%02X", got)
	}

	if err := d.ConfigureInterrupt(false, false); err != nil {
		t.Fatal(err)
	}
	if got := fd.Words[RegConfig][1]; got != cfgAlertCtl|cfgAlertMode {
		t.Fatalf("interrupt lsb 0x%02X", got)
	}
	s := d.Settings()
	if !s.AlertEnabled || s.AlertMode != AlertInterrupt || s.ActiveHigh || s.CriticalOnly {
		t.Fatalf("settings %+v", s)
	}

	if err := d.ClearInterrupt(); err != nil {
		t.Fatal(err)
	}
	if got := fd.Words[RegConfig][1]; got != cfgAlertCtl|cfgAlertMode|cfgIntClear {
		t.Fatalf("clear lsb 0x%02X", got)
	}
	// the clear bit is not sticky across later updates
	if err := d.DisableAlert(); err != nil {
		t.Fatal(err)
	}
	if got := fd.Words[RegConfig][1]; got != cfgAlertMode {
		t.Fatalf("disable lsb 0x%02X", got)
	}
	if d.Settings().AlertEnabled {
		t.Fatal("alert still enabled")
	}
}

func TestAlertAsserted(t *testing.T) {
	d, _, fd := newTestDevice(t)
	if v, _ := d.AlertAsserted(); v {
		t.Fatal("idle")
	}
	fd.Words[RegConfig][1] = cfgAlertStat
	if v, _ := d.AlertAsserted(); !v {
		t.Fatal("asserted")
	}
}

func TestHysteresisBits(t *testing.T) {
	cases := []struct {
		h   Hysteresis
		msb byte
		c   float64
	}{
		{Hyst0C, 0x00, 0}, {Hyst1_5C, 0x02, 1.5}, {Hyst3C, 0x04, 3}, {Hyst6C, 0x06, 6},
	}
	d, _, fd := newTestDevice(t)
	fd.Words[RegConfig][0] = cfgShutdown
	for _, c := range cases {
		if err := d.SetHysteresis(c.h); err != nil {
			t.Fatal(err)
		}
		if got := fd.Words[RegConfig][0]; got != c.msb|cfgShutdown {
			t.Fatalf("%v: msb 0x%02X", c.h, got)
		}
		if c.h.Celsius() != c.c || d.Settings().Hysteresis != c.h {
			t.Fatalf("%v: celsius %v", c.h, c.h.Celsius())
		}
	}
}

func TestResolution(t *testing.T) {
	d, _, fd := newTestDevice(t)
	if d.Settings().Resolution != Res0_0625C {
		t.Fatal("default resolution")
	}
	if err := d.SetResolution(Res0_25C); err != nil {
		t.Fatal(err)
	}
	if fd.Words[RegResolution][0] != 0x01 || d.Settings().Resolution.Step() != 0.25 {
		t.Fatalf("resol 0x%02X", fd.Words[RegResolution][0])
	}
}

func TestShutdownWakeReset(t *testing.T) {
	d, _, fd := newTestDevice(t)
	if err := d.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if fd.Words[RegConfig][0]&cfgShutdown == 0 || !d.Settings().Shutdown {
		t.Fatal("shutdown")
	}
	if err := d.Wake(); err != nil {
		t.Fatal(err)
	}
	if fd.Words[RegConfig][0]&cfgShutdown != 0 {
		t.Fatal("wake")
	}

	_ = d.SetHysteresis(Hyst6C)
	_ = d.ConfigureComparator(true, false)
	_ = d.SetResolution(Res0_5C)
	if err := d.Reset(); err != nil {
		t.Fatal(err)
	}
	if fd.Words[RegConfig] != [2]byte{} {
		t.Fatalf("config % X", fd.Words[RegConfig])
	}
	want := Defaults()
	want.Resolution = Res0_5C
	if d.Settings() != want {
		t.Fatalf("settings %+v", d.Settings())
	}
}

func TestBusFailure(t *testing.T) {
	d, _, fd := newTestDevice(t)
	fd.Err = errors.New("nack")
	if _, err := d.Ambient(); errcode.Of(err) != errcode.IOError {
		t.Fatalf("got %v", err)
	}
	if err := d.Shutdown(); errcode.Of(err) != errcode.IOError || d.Settings().Shutdown {
		t.Fatalf("got %v", err)
	}
}

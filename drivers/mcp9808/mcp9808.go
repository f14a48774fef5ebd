// Package mcp9808 drives the Microchip MCP9808 digital temperature sensor:
// ambient readout, the three alert limits, alert output configuration,
// hysteresis, resolution and shutdown.
package mcp9808

import (
	"fmt"
	"log/slog"

	"tinygo.org/x/drivers"

	"rovercode-go/drivers/i2cdev"
)

// Hysteresis applied to the alert limits.
type Hysteresis byte

const (
	Hyst0C   Hysteresis = 0b00
	Hyst1_5C Hysteresis = 0b01
	Hyst3C   Hysteresis = 0b10
	Hyst6C   Hysteresis = 0b11
)

func (h Hysteresis) Celsius() float64 {
	return [...]float64{0, 1.5, 3, 6}[h&0x03]
}

// Resolution of the ambient register.
type Resolution byte

const (
	Res0_5C    Resolution = 0b00
	Res0_25C   Resolution = 0b01
	Res0_125C  Resolution = 0b10
	Res0_0625C Resolution = 0b11
)

func (r Resolution) Step() float64 {
	return [...]float64{0.5, 0.25, 0.125, 0.0625}[r&0x03]
}

// AlertMode selects how the alert output follows the limits.
type AlertMode uint8

const (
	AlertComparator AlertMode = iota
	AlertInterrupt
)

// Settings is the configuration last written through this Device.
type Settings struct {
	Hysteresis   Hysteresis
	Resolution   Resolution
	AlertEnabled bool
	AlertMode    AlertMode
	ActiveHigh   bool
	CriticalOnly bool
	Shutdown     bool
}

// Defaults matches the chip after power-on or Reset.
func Defaults() Settings { return Settings{Resolution: Res0_0625C} }

// Reading is one ambient sample with its limit flags.
type Reading struct {
	Celsius    float64
	Critical   bool // at or above TCRIT
	AboveUpper bool
	BelowLower bool
}

func (r Reading) String() string {
	return fmt.Sprintf("%.4f°C crit=%t upper=%t lower=%t",
		r.Celsius, r.Critical, r.AboveUpper, r.BelowLower)
}

type Config struct {
	// Address defaults to 0x18.
	Address uint16
	Logger  *slog.Logger
}

type Device struct {
	dev *i2cdev.Device
	log *slog.Logger
	cfg Settings
	buf [2]byte
}

func New(bus drivers.I2C, cfg Config) *Device {
	addr := cfg.Address
	if addr == 0 {
		addr = AddressDefault
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Device{
		dev: i2cdev.New(bus, addr, log),
		log: log.With("chip", "mcp9808", "addr", addr),
		cfg: Defaults(),
	}
}

func (d *Device) Address() uint16 { return d.dev.Address() }

// Settings returns the latched configuration.
func (d *Device) Settings() Settings { return d.cfg }

func (d *Device) readWord(reg byte) ([2]byte, error) {
	if err := d.dev.ReadBlock(reg, d.buf[:]); err != nil {
		return [2]byte{}, err
	}
	return d.buf, nil
}

func (d *Device) writeWord(reg byte, b [2]byte) error {
	d.buf = b
	return d.dev.WriteBlock(reg, d.buf[:])
}

func (d *Device) readTemp(reg byte) (float64, error) {
	b, err := d.readWord(reg)
	if err != nil {
		return 0, err
	}
	return Decode(b), nil
}

// Ambient returns the current temperature in °C.
func (d *Device) Ambient() (float64, error) { return d.readTemp(RegTAmbient) }

// Read returns the ambient temperature with its limit flags from one
// register read.
func (d *Device) Read() (Reading, error) {
	b, err := d.readWord(RegTAmbient)
	if err != nil {
		return Reading{}, err
	}
	r := Reading{
		Celsius:    Decode(b),
		Critical:   b[0]&statusCrit != 0,
		AboveUpper: b[0]&statusUpper != 0,
		BelowLower: b[0]&statusLower != 0,
	}
	d.log.Debug("ambient", "celsius", r.Celsius)
	return r, nil
}

func (d *Device) status(mask byte) (bool, error) {
	b, err := d.readWord(RegTAmbient)
	if err != nil {
		return false, err
	}
	return b[0]&mask != 0, nil
}

func (d *Device) AmbientAtOrAboveCritical() (bool, error) { return d.status(statusCrit) }
func (d *Device) AmbientAboveUpper() (bool, error)        { return d.status(statusUpper) }
func (d *Device) AmbientBelowLower() (bool, error)        { return d.status(statusLower) }

func (d *Device) Critical() (float64, error) { return d.readTemp(RegTCrit) }
func (d *Device) Upper() (float64, error)    { return d.readTemp(RegTUpper) }
func (d *Device) Lower() (float64, error)    { return d.readTemp(RegTLower) }

func (d *Device) SetCritical(t float64) error { return d.writeWord(RegTCrit, Encode(t)) }
func (d *Device) SetUpper(t float64) error    { return d.writeWord(RegTUpper, Encode(t)) }
func (d *Device) SetLower(t float64) error    { return d.writeWord(RegTLower, Encode(t)) }

// updateConfig read-modify-writes CONFIG. The interrupt-clear bit is never
// carried over from the read value.
func (d *Device) updateConfig(msbSet, msbClear, lsbSet, lsbClear byte) error {
	b, err := d.readWord(RegConfig)
	if err != nil {
		return err
	}
	b[0] = b[0]&^msbClear | msbSet
	b[1] = b[1]&^(lsbClear|cfgIntClear) | lsbSet
	return d.writeWord(RegConfig, b)
}

func alertBits(mode AlertMode, activeHigh, critOnly bool) (set, clear byte) {
	set = cfgAlertCtl
	clear = cfgAlertMode | cfgAlertPol | cfgAlertSel
	if mode == AlertInterrupt {
		set |= cfgAlertMode
	}
	if activeHigh {
		set |= cfgAlertPol
	}
	if critOnly {
		set |= cfgAlertSel
	}
	return set, clear &^ set
}

func (d *Device) configureAlert(mode AlertMode, activeHigh, critOnly bool) error {
	set, clear := alertBits(mode, activeHigh, critOnly)
	if err := d.updateConfig(0, 0, set, clear); err != nil {
		return err
	}
	d.cfg.AlertEnabled = true
	d.cfg.AlertMode = mode
	d.cfg.ActiveHigh = activeHigh
	d.cfg.CriticalOnly = critOnly
	return nil
}

// ConfigureComparator enables the alert output in comparator mode.
func (d *Device) ConfigureComparator(activeHigh, critOnly bool) error {
	return d.configureAlert(AlertComparator, activeHigh, critOnly)
}

// ConfigureInterrupt enables the alert output in interrupt mode; each event
// must be acknowledged with ClearInterrupt.
func (d *Device) ConfigureInterrupt(activeHigh, critOnly bool) error {
	return d.configureAlert(AlertInterrupt, activeHigh, critOnly)
}

func (d *Device) DisableAlert() error {
	if err := d.updateConfig(0, 0, 0, cfgAlertCtl); err != nil {
		return err
	}
	d.cfg.AlertEnabled = false
	return nil
}

// AlertAsserted reports the alert output status bit.
func (d *Device) AlertAsserted() (bool, error) {
	b, err := d.readWord(RegConfig)
	if err != nil {
		return false, err
	}
	return b[1]&cfgAlertStat != 0, nil
}

func (d *Device) ClearInterrupt() error {
	return d.updateConfig(0, 0, cfgIntClear, 0)
}

func (d *Device) SetHysteresis(h Hysteresis) error {
	if err := d.updateConfig(byte(h&0x03)<<1, cfgHystMask, 0, 0); err != nil {
		return err
	}
	d.cfg.Hysteresis = h & 0x03
	return nil
}

func (d *Device) SetResolution(r Resolution) error {
	if err := d.dev.Write(RegResolution, byte(r&0x03)); err != nil {
		return err
	}
	d.cfg.Resolution = r & 0x03
	return nil
}

// Shutdown enters low-power mode; conversions stop.
func (d *Device) Shutdown() error {
	if err := d.updateConfig(cfgShutdown, 0, 0, 0); err != nil {
		return err
	}
	d.cfg.Shutdown = true
	return nil
}

func (d *Device) Wake() error {
	if err := d.updateConfig(0, cfgShutdown, 0, 0); err != nil {
		return err
	}
	d.cfg.Shutdown = false
	return nil
}

// Reset writes zero to CONFIG, restoring the power-on alert, hysteresis and
// shutdown defaults. Resolution is a separate register and is kept.
func (d *Device) Reset() error {
	if err := d.writeWord(RegConfig, [2]byte{}); err != nil {
		return err
	}
	res := d.cfg.Resolution
	d.cfg = Defaults()
	d.cfg.Resolution = res
	d.log.Debug("reset")
	return nil
}

// Package config loads the rover topology: which I²C bus, which chip
// addresses, which PWM channels and which GPIO lines each driver uses.
//
// The topology comes from a YAML file (or the embedded board default) and a
// few environment overrides.
package config

import (
	"fmt"
	"os"
	"slices"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"

	"rovercode-go/bus"
	"rovercode-go/drivers/drv8830"
	"rovercode-go/drivers/motorhat"
	"rovercode-go/drivers/pca9685"
	"rovercode-go/errcode"
	"rovercode-go/x/mathx"
)

const configPrefix = "config"

// Env holds the process environment overrides.
type Env struct {
	ConfigPath string `env:"ROVER_CONFIG"`
	I2CBus     string `env:"ROVER_I2C_BUS"`
	Debug      bool   `env:"ROVER_DEBUG" envDefault:"false"`
	Board      string `env:"ROVER_BOARD" envDefault:"rover"`
}

// LoadEnv reads Env from the process environment.
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, errcode.Wrap(errcode.InvalidConfig, "config.env", "", err)
	}
	return e, nil
}

// LoadEnvFrom reads Env from vars instead of the process environment.
func LoadEnvFrom(vars map[string]string) (Env, error) {
	var e Env
	if err := env.Parse(&e, env.Options{Environment: vars}); err != nil {
		return Env{}, errcode.Wrap(errcode.InvalidConfig, "config.env", "", err)
	}
	return e, nil
}

type Config struct {
	Bus         string          `yaml:"bus"`
	PWM         PWMConfig       `yaml:"pwm"`
	Bridge      BridgeConfig    `yaml:"bridge"`
	Servo       ServoConfig     `yaml:"servo"`
	DAC         []DACConfig     `yaml:"dac"`
	Thermometer ChipConfig      `yaml:"thermometer"`
	Ranger      RangerConfig    `yaml:"ranger"`
	Coproc      CoprocConfig    `yaml:"coproc"`
	Heartbeat   HeartbeatConfig `yaml:"heartbeat"`
}

type PWMConfig struct {
	Address   uint16 `yaml:"address"`
	Frequency int    `yaml:"frequency"`
}

// Motor driver kinds.
const (
	BridgeTB6612   = "tb6612"
	BridgeMotorHAT = "motorhat"
)

// BridgeConfig wires the drive motors. For a TB6612 that is two PWM
// channels and two direction lines; the motor HAT uses its fixed channels
// and ignores the rest.
type BridgeConfig struct {
	Kind          string `yaml:"kind"`
	MotorA        int    `yaml:"motor_a"`
	MotorB        int    `yaml:"motor_b"`
	PinMA         string `yaml:"pin_ma"`
	PinMB         string `yaml:"pin_mb"`
	SwitchDelayMs int    `yaml:"switch_delay_ms"`
}

type ServoConfig struct {
	Channel  int `yaml:"channel"`
	MinLimit int `yaml:"min_limit"`
	MaxLimit int `yaml:"max_limit"`
	Delta    int `yaml:"delta"`
	Trim     int `yaml:"trim"`
}

// Calibration converts to the driver's servo calibration.
func (s ServoConfig) Calibration() pca9685.ServoConfig {
	return pca9685.ServoConfig{MinLimit: s.MinLimit, MaxLimit: s.MaxLimit, Delta: s.Delta, Trim: s.Trim}
}

type DACConfig struct {
	Name    string `yaml:"name"`
	Address uint16 `yaml:"address"`
}

type ChipConfig struct {
	Address uint16 `yaml:"address"`
}

type RangerConfig struct {
	Trigger    string `yaml:"trigger"`
	Echo       string `yaml:"echo"`
	DebounceUs int    `yaml:"debounce_us"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

type CoprocConfig struct {
	Address      uint16 `yaml:"address"`
	ReplyDelayMs int    `yaml:"reply_delay_ms"`
}

// HeartbeatConfig paces the heartbeat service. Poll names rover/get/<what>
// requests fired on every beat.
type HeartbeatConfig struct {
	IntervalMs int      `yaml:"interval_ms"`
	Poll       []string `yaml:"poll"`
}

// Pollable lists the request names the rover service answers.
var Pollable = []string{"temperature", "range", "faults", "pwm"}

// Parse decodes YAML and fills unset fields from the defaults.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errcode.Wrap(errcode.InvalidConfig, "config.parse", "", err)
	}
	applyDefaults(&c)
	return &c, nil
}

// Load reads and parses a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errcode.Wrap(errcode.InvalidConfig, "config.load", path, err)
	}
	return Parse(data)
}

// Resolve picks the file named by e (or the embedded board config), applies
// the environment overrides and validates the result.
func Resolve(e Env) (*Config, error) {
	var (
		c   *Config
		err error
	)
	if e.ConfigPath != "" {
		c, err = Load(e.ConfigPath)
	} else {
		raw, ok := EmbeddedConfigLookup(e.Board)
		if !ok {
			return nil, errcode.New(errcode.InvalidConfig, "config.resolve", "no embedded config for board "+e.Board)
		}
		c, err = Parse(raw)
	}
	if err != nil {
		return nil, err
	}
	if e.I2CBus != "" {
		c.Bus = e.I2CBus
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func applyDefaults(c *Config) {
	if c.PWM.Address == 0 {
		c.PWM.Address = pca9685.AddressDefault
	}
	if c.PWM.Frequency == 0 {
		c.PWM.Frequency = 50
	}
	if c.Bridge.Kind == "" {
		c.Bridge.Kind = BridgeTB6612
	}
	if c.Bridge.SwitchDelayMs == 0 {
		c.Bridge.SwitchDelayMs = 50
	}
	if c.Servo.MinLimit == 0 && c.Servo.MaxLimit == 0 {
		d := pca9685.DefaultServoConfig()
		c.Servo.MinLimit, c.Servo.MaxLimit = d.MinLimit, d.MaxLimit
		c.Servo.Delta, c.Servo.Trim = d.Delta, d.Trim
	}
	if c.Ranger.TimeoutMs == 0 {
		c.Ranger.TimeoutMs = 100
	}
	if c.Heartbeat.IntervalMs == 0 {
		c.Heartbeat.IntervalMs = 1000
	}
}

func invalid(format string, args ...any) error {
	return errcode.New(errcode.InvalidConfig, "config.validate", fmt.Sprintf(format, args...))
}

func validAddr(a uint16) bool { return a >= 0x03 && a <= 0x77 }

// Validate rejects out-of-range channels, addresses and frequencies.
func (c *Config) Validate() error {
	if !validAddr(c.PWM.Address) {
		return invalid("pwm address 0x%02X", c.PWM.Address)
	}
	if !mathx.Between(c.PWM.Frequency, 24, 1526) {
		return invalid("pwm frequency %d Hz outside [24,1526]", c.PWM.Frequency)
	}
	type use struct {
		name string
		n    int
	}
	uses := []use{{"servo.channel", c.Servo.Channel}}
	switch c.Bridge.Kind {
	case BridgeTB6612:
		uses = append(uses, use{"bridge.motor_a", c.Bridge.MotorA}, use{"bridge.motor_b", c.Bridge.MotorB})
		if c.Bridge.PinMA == "" || c.Bridge.PinMB == "" {
			return invalid("tb6612 needs pin_ma and pin_mb")
		}
	case BridgeMotorHAT:
		for _, m := range motorhat.DefaultChannels {
			uses = append(uses, use{"motorhat", m.PWM}, use{"motorhat", m.IN1}, use{"motorhat", m.IN2})
		}
	default:
		return invalid("bridge kind %q", c.Bridge.Kind)
	}
	used := map[int]string{}
	for _, ch := range uses {
		if ch.n < 0 || ch.n >= pca9685.NumChannels {
			return invalid("%s %d outside [0,15]", ch.name, ch.n)
		}
		if prev, ok := used[ch.n]; ok {
			return invalid("%s and %s share channel %d", prev, ch.name, ch.n)
		}
		used[ch.n] = ch.name
	}
	if err := c.Servo.Calibration().Validate(); err != nil {
		return invalid("servo: %v", err)
	}
	dacAddrs := []uint16{drv8830.AddressA0, drv8830.AddressA1, drv8830.AddressA2, drv8830.AddressA3}
	names := map[string]bool{}
	for _, d := range c.DAC {
		if !slices.Contains(dacAddrs, d.Address) {
			return invalid("dac %q address 0x%02X", d.Name, d.Address)
		}
		if d.Name == "" || names[d.Name] {
			return invalid("dac name %q empty or repeated", d.Name)
		}
		names[d.Name] = true
	}
	for _, a := range []uint16{c.Thermometer.Address, c.Coproc.Address} {
		if a != 0 && !validAddr(a) {
			return invalid("address 0x%02X", a)
		}
	}
	if (c.Ranger.Trigger == "") != (c.Ranger.Echo == "") {
		return invalid("ranger needs both trigger and echo")
	}
	if c.Heartbeat.IntervalMs < 10 {
		return invalid("heartbeat interval %d ms below 10", c.Heartbeat.IntervalMs)
	}
	for _, p := range c.Heartbeat.Poll {
		if !slices.Contains(Pollable, p) {
			return invalid("heartbeat poll %q", p)
		}
	}
	return nil
}

// DACByName finds a configured DRV8830.
func (c *Config) DACByName(name string) (DACConfig, bool) {
	for _, d := range c.DAC {
		if d.Name == name {
			return d, true
		}
	}
	return DACConfig{}, false
}

// Publish puts each section on the bus as a retained config/<section>
// message.
func (c *Config) Publish(conn *bus.Connection) {
	sections := map[string]any{
		"bus":         c.Bus,
		"pwm":         c.PWM,
		"bridge":      c.Bridge,
		"servo":       c.Servo,
		"dac":         c.DAC,
		"thermometer": c.Thermometer,
		"ranger":      c.Ranger,
		"coproc":      c.Coproc,
		"heartbeat":   c.Heartbeat,
	}
	for k, v := range sections {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), v, true))
	}
}

package config

// Embedded board topologies, keyed by ROVER_BOARD.

const cfgRover = `
bus: ""
pwm:
  address: 0x40
  frequency: 50
bridge:
  kind: tb6612
  motor_a: 1
  motor_b: 2
  pin_ma: GPIO17
  pin_mb: GPIO27
servo:
  channel: 0
  min_limit: 400
  max_limit: 2000
  delta: 500
  trim: -20
dac:
  - name: left
    address: 0x60
  - name: right
    address: 0x61
thermometer:
  address: 0x18
ranger:
  trigger: GPIO23
  echo: GPIO24
coproc:
  address: 0x04
heartbeat:
  interval_ms: 1000
  poll: [temperature, faults]
`

// cfgHAT is the motor-HAT variant: no TB6612 lines, no ranger.
const cfgHAT = `
pwm:
  address: 0x40
  frequency: 50
bridge:
  kind: motorhat
servo:
  channel: 15
thermometer:
  address: 0x18
`

var embeddedConfigs = map[string][]byte{
	"rover": []byte(cfgRover),
	"hat":   []byte(cfgHAT),
}

// EmbeddedConfigLookup allows overriding how board configs are resolved.
var EmbeddedConfigLookup = func(board string) ([]byte, bool) {
	b, ok := embeddedConfigs[board]
	return b, ok
}

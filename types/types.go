// Package types holds the payloads the rover service publishes on the bus
// and the CLI prints. Field tags are shared by the JSON and CBOR encoders.
package types

// ---- Service state (retained: rover/state) ----

type Level string

const (
	LevelIdle    Level = "idle"
	LevelReady   Level = "ready"
	LevelStopped Level = "stopped"
)

type ServiceState struct {
	Level  Level  `json:"level"`
	Status string `json:"status,omitempty"` // short error code, if any
	TS     int64  `json:"ts_ms"`
}

// ---- Drive ----

// Retained: rover/drive
type DriveValue struct {
	Speed     float64 `json:"speed"`
	Direction string  `json:"direction"` // "stop" | "forward" | "backward"
	Duty      int     `json:"duty"`
}

// Retained: rover/steer
type SteerValue struct {
	Rel      int `json:"rel"`
	OffTicks int `json:"off_ticks"`
}

// ---- Voltage DAC motor drivers ----

// Retained: rover/dac/<name>
type DacValue struct {
	Name    string `json:"name"`
	Addr    uint16 `json:"addr"`
	Control uint8  `json:"control"` // raw CONTROL byte written
}

// Event: rover/dac/<name>/fault
type DacFault struct {
	Name  string `json:"name"`
	Addr  uint16 `json:"addr"`
	Fault string `json:"fault"`
	Raw   uint8  `json:"raw"`
}

// ---- Sensors ----

// Retained: rover/temperature
type TemperatureValue struct {
	Celsius    float64 `json:"celsius"`
	Critical   bool    `json:"critical"`
	AboveUpper bool    `json:"above_upper"`
	BelowLower bool    `json:"below_lower"`
	TS         int64   `json:"ts_ms"`
}

// Retained: rover/range
type RangeValue struct {
	DistanceCm  float64 `json:"distance_cm"`
	ElapsedMs   float64 `json:"elapsed_ms"`
	TimestampNs int64   `json:"ts_ns"`
}

// ---- Co-processor ----

// Retained: rover/coproc
type CoprocValue struct {
	Token    uint64 `json:"token"`
	Status   string `json:"status"`
	Value    int32  `json:"value"`
	NumberMA uint16 `json:"number_ma"`
	NumberMB uint16 `json:"number_mb"`
}

// ---- PWM ----

type PWMValue struct {
	Addr        uint16  `json:"addr"`
	Frequency   int     `json:"frequency_hz"`
	Prescale    uint8   `json:"prescale"`
	ActualHz    float64 `json:"actual_hz"`
	Initialised bool    `json:"initialised"`
}

// ---- Heartbeat ----

// Event: rover/heartbeat
type Heartbeat struct {
	Seq      uint64   `json:"seq"`
	UptimeMs int64    `json:"uptime_ms"`
	Polled   []string `json:"polled,omitempty"`
}

package mcp9808

const AddressDefault uint16 = 0x18

// Register pointers. All temperature registers and CONFIG are 16-bit, MSB
// first; RESOL is 8-bit.
const (
	RegConfig     byte = 0x01
	RegTUpper     byte = 0x02
	RegTLower     byte = 0x03
	RegTCrit      byte = 0x04
	RegTAmbient   byte = 0x05
	RegResolution byte = 0x08
)

// CONFIG MSB bits.
const (
	cfgShutdown byte = 0x01
	cfgHystMask byte = 0x06
)

// CONFIG LSB bits.
const (
	cfgAlertMode  byte = 0x01 // 1 = interrupt, 0 = comparator
	cfgAlertPol   byte = 0x02 // 1 = active high
	cfgAlertSel   byte = 0x04 // 1 = critical only
	cfgAlertCtl   byte = 0x08 // 1 = output enabled
	cfgAlertStat  byte = 0x10 // read-only: output asserted
	cfgIntClear   byte = 0x20
	cfgWindowLock byte = 0x40
	cfgCritLock   byte = 0x80
)

// Ambient status bits in TEMPER MSB.
const (
	statusCrit  byte = 0x80
	statusUpper byte = 0x40
	statusLower byte = 0x20
)

// Temperature encoding.
const (
	signBit byte = 0x10
	MinTemp      = -40.0
	MaxTemp      = 125.0
)

package pca9685

const (
	// 7-bit I2C address with A5..A0 strapped low.
	AddressDefault = 0x40

	// Chip geometry.
	Resolution  = 4096
	MaxTick     = Resolution - 1
	NumChannels = 16

	// Internal oscillator, Hz.
	OscillatorHz = 25_000_000

	// Prescale limits (datasheet: minimum 0x03).
	PrescaleMin = 0x03
	PrescaleMax = 0xFF

	// --- Register addresses ---
	RegMode1    = 0x00
	RegMode2    = 0x01
	RegSubAddr1 = 0x02
	RegSubAddr2 = 0x03
	RegSubAddr3 = 0x04
	RegAllCall  = 0x05
	RegLED0OnL  = 0x06 // LEDn_ON_L = 4n+6 .. LEDn_OFF_H = 4n+9
	RegAllOnL   = 0xFA
	RegAllOnH   = 0xFB
	RegAllOffL  = 0xFC
	RegAllOffH  = 0xFD
	RegPrescale = 0xFE

	// --- MODE1 / MODE2 bits ---
	Mode1Restart = 0x80
	Mode1Sleep   = 0x10
	Mode1AllCall = 0x01
	Mode2OutDrv  = 0x04

	// Value written to MODE1 to request a software reset.
	SoftReset = 0x06
)

// channelBase returns LEDn_ON_L for channel n; the other three registers
// follow at +1, +2, +3.
func channelBase(n int) byte { return byte(n<<2) + RegLED0OnL }

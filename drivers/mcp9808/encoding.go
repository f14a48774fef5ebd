package mcp9808

import (
	"math"

	"rovercode-go/x/mathx"
)

// Decode converts a temperature register (MSB, LSB) to °C. Status bits in the
// MSB are ignored and no clamping is applied.
func Decode(b [2]byte) float64 {
	integer := int(b[0]&0x0F)<<4 | int(b[1]&0xF0)>>4
	t := float64(integer) + float64(b[1]&0x0F)/16
	if b[0]&signBit != 0 {
		return -t
	}
	return t
}

// Encode converts °C to register form, clamped to [MinTemp, MaxTemp] and
// rounded to the nearest 1/16 °C.
func Encode(t float64) [2]byte {
	t = mathx.Clamp(t, MinTemp, MaxTemp)
	ticks := int(math.Round(math.Abs(t) * 16))
	integer, frac := ticks>>4, ticks&0x0F
	b := [2]byte{
		byte(integer>>4) & 0x0F,
		byte(integer&0x0F)<<4 | byte(frac),
	}
	if t < 0 {
		b[0] |= signBit
	}
	return b
}

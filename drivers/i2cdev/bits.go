package i2cdev

// Pure bit algebra over register values. A mask may cover several bits; a
// "pin" is high only when every bit of its mask is set.

// SetBit returns reg with mask cleared (level false) or set (level true).
func SetBit(reg, mask byte, level bool) byte {
	if level {
		return reg | mask
	}
	return reg &^ mask
}

// GetBit returns 1 when every bit of mask is set in reg, else 0.
func GetBit(reg, mask byte) byte {
	if reg|mask == reg {
		return 1
	}
	return 0
}

// IsBit reports GetBit(reg, mask) == 1.
func IsBit(reg, mask byte) bool { return GetBit(reg, mask) == 1 }

// ToggleBit flips mask as a unit: set when currently high, cleared otherwise.
func ToggleBit(reg, mask byte) byte { return SetBit(reg, mask, !IsBit(reg, mask)) }

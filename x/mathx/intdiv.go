package mathx

// RoundHalfUpDiv returns a/b rounded half away from zero, b > 0.
// Used for the deci-unit conversions.
func RoundHalfUpDiv(a, b int64) int64 {
	if b <= 0 {
		return 0
	}
	if a < 0 {
		return -((-a + b/2) / b)
	}
	return (a + b/2) / b
}

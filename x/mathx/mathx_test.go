package mathx

import "testing"

func TestClamp(t *testing.T) {
	if Clamp(5000, 0, 4095) != 4095 || Clamp(-3, 0, 4095) != 0 || Clamp(7, 10, 0) != 7 {
		t.Fatal("clamp")
	}
	if Clamp(1.5, -1.0, 1.0) != 1.0 {
		t.Fatal("float clamp")
	}
}

func TestAbs(t *testing.T) {
	if Abs(-200) != 200 || Abs(float32(-0.5)) != 0.5 {
		t.Fatal("abs")
	}
}

func TestRoundHalfUpDiv(t *testing.T) {
	cases := []struct{ a, b, want int64 }{
		{9860, 1000, 10}, // 9.86 -> 10
		{9850, 1000, 10}, // 9.85 -> 10
		{9849, 1000, 10},
		{9449, 1000, 9},
		{-9850, 1000, -10},
		{0, 7, 0},
		{5, 0, 0},
	}
	for _, c := range cases {
		if got := RoundHalfUpDiv(c.a, c.b); got != c.want {
			t.Fatalf("RoundHalfUpDiv(%d,%d)=%d want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestBetween(t *testing.T) {
	if !Between(24, 24, 1526) || !Between(1526, 1526, 24) || Between(23, 24, 1526) {
		t.Fatal("between")
	}
}

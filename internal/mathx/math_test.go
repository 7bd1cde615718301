package mathx

import "testing"

func TestFloorDivNegative(t *testing.T) {
	cases := []struct {
		a, b, want int
	}{
		{0, 16, 0},
		{15, 16, 0},
		{16, 16, 1},
		{-1, 16, -1},
		{-16, 16, -1},
		{-17, 16, -2},
		{31, 16, 1},
	}
	for _, c := range cases {
		if got := FloorDiv(c.a, c.b); got != c.want {
			t.Fatalf("FloorDiv(%d,%d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestModAlwaysNonNegative(t *testing.T) {
	for a := -100; a <= 100; a++ {
		m := Mod(a, 16)
		if m < 0 || m >= 16 {
			t.Fatalf("Mod(%d,16) = %d out of [0,16)", a, m)
		}
		if FloorDiv(a, 16)*16+m != a {
			t.Fatalf("decompose(%d): q*16+m != a", a)
		}
	}
}

func TestHash2Deterministic(t *testing.T) {
	if Hash2(1, 3, 4) != Hash2(1, 3, 4) {
		t.Fatalf("Hash2 not deterministic")
	}
	if Hash2(1, 3, 4) == Hash2(2, 3, 4) {
		t.Fatalf("Hash2 ignores seed")
	}
	if Hash2(1, 3, 4) == Hash2(1, 4, 3) {
		t.Fatalf("Hash2 symmetric in x/y")
	}
}

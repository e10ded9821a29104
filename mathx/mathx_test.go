package mathx_test

import (
	"fmt"
	"testing"

	"github.jpl.nasa.gov/bdube/bladerf/mathx"
)

func ExampleGcd() {
	fmt.Println(mathx.Gcd(12672000000, 12672))
	// Output: 12672
}

func ExampleLog2() {
	fmt.Println(mathx.Log2(1), mathx.Log2(4), mathx.Log2(32), mathx.Log2(33))
	// Output: 0 2 5 5
}

func TestDivRound(t *testing.T) {
	cases := []struct{ num, den, expected uint64 }{
		{10, 4, 3},
		{9, 4, 2},
		{38400000, 38400000, 1},
	}
	for _, c := range cases {
		if got := mathx.DivRound(c.num, c.den); got != c.expected {
			t.Errorf("DivRound(%d, %d): expected %d got %d", c.num, c.den, c.expected, got)
		}
	}
}

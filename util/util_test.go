package util_test

import (
	"fmt"
	"testing"
	"time"

	"github.jpl.nasa.gov/bdube/bladerf/util"
)

func ExampleSetBit_msb() {
	out := util.SetBit(0, 7, true)
	fmt.Printf("%08b\n", out)
	// Output: 10000000
}

func ExampleSetBit_lsb() {
	out := util.SetBit(255, 0, false)
	fmt.Printf("%08b\n", out)
	// Output: 11111110
}

func ExampleReplaceBits() {
	out := util.ReplaceBits(0xAB, 0x3F, 0x1F)
	fmt.Printf("%#02x\n", out)
	// Output: 0x9f
}

func ExampleArangeUint64() {
	fmt.Println(util.ArangeUint64(10, 20, 5))
	// Output: [10 15 20]
}

func TestGetBit(t *testing.T) {
	var b byte = 0x40
	for i := uint(0); i < 8; i++ {
		expected := i == 6
		if got := util.GetBit(b, i); got != expected {
			t.Errorf("bit %d: expected %v got %v", i, expected, got)
		}
	}
}

func TestMaskedUpdate32(t *testing.T) {
	out := util.MaskedUpdate32(0xFFFF0000, 0x00FF00FF, 0x12345678)
	expected := uint32(0xFF340078)
	if out != expected {
		t.Errorf("expected %#x got %#x", expected, out)
	}
}

func TestClampUint64Low(t *testing.T) {
	clamped := util.ClampUint64(5, 10, 20)
	if clamped != 10 {
		t.Errorf("expected 10 got %d", clamped)
	}
}

func TestArangeEmptyWhenReversed(t *testing.T) {
	if out := util.ArangeUint64(20, 10, 1); len(out) != 0 {
		t.Errorf("expected empty range, got %v", out)
	}
}

func TestMillisToDuration(t *testing.T) {
	if out := util.MillisToDuration(250); out != 250*time.Millisecond {
		t.Errorf("expected 250ms got %v", out)
	}
}

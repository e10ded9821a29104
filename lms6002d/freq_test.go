package lms6002d

import (
	"errors"
	"fmt"
	"testing"
)

func ExampleCompute() {
	f, err := Compute(2447000000)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("freqsel=%#02x nint=%d nfrac=%#x vcocap=%d low=%v\n", f.Freqsel, f.Nint, f.Nfrac, f.Vcocap, f.LowBand())
	// Output: freqsel=0x2c nint=127 nfrac=0x395555 vcocap=31 low=false
}

func TestComputeRX2484(t *testing.T) {
	f, err := Compute(2484000000)
	if err != nil {
		t.Fatal(err)
	}
	if f.Nint != 129 || f.Nfrac != 0x300000 || f.Vcocap != 35 || f.Freqsel != 0x2C {
		t.Errorf("expected nint=129 nfrac=0x300000 vcocap=35 freqsel=0x2c got %s", f)
	}
}

func TestComputeLowBand(t *testing.T) {
	f, err := Compute(1000000000)
	if err != nil {
		t.Fatal(err)
	}
	if !f.LowBand() {
		t.Error("expected 1 GHz to be in the low band")
	}
	if f.Freqsel != VCO4|DIV4 || f.X != 4 {
		t.Errorf("expected freqsel %#02x x=4 got %#02x x=%d", VCO4|DIV4, f.Freqsel, f.X)
	}
	f, _ = Compute(BandHighThreshold)
	if f.LowBand() {
		t.Error("expected the threshold itself to be in the high band")
	}
}

func TestComputeRejectsOutOfRange(t *testing.T) {
	for _, hz := range []uint64{0, FrequencyMin - 1, FrequencyMax + 1} {
		if _, err := Compute(hz); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("expected ErrOutOfRange for %d Hz got %v", hz, err)
		}
	}
}

func TestClampFrequency(t *testing.T) {
	if ClampFrequency(1) != FrequencyMin || ClampFrequency(FrequencyMax+5) != FrequencyMax {
		t.Error("expected clamping to the tuning range edges")
	}
	if ClampFrequency(915000000) != 915000000 {
		t.Error("expected in-range frequency to be unchanged")
	}
}

func TestBandsCoverRange(t *testing.T) {
	if Bands[0].Low != FrequencyMin || Bands[len(Bands)-1].High != FrequencyMax {
		t.Errorf("expected bands to span [%d, %d]", FrequencyMin, FrequencyMax)
	}
	for i := 1; i < len(Bands); i++ {
		if Bands[i].Low > Bands[i-1].High {
			t.Errorf("gap between band %d and %d", i-1, i)
		}
	}
}

func TestComputeUsesFirstMatchingBand(t *testing.T) {
	var samples []uint64
	for _, b := range Bands {
		samples = append(samples, b.Low, b.High, b.Low+1, b.High-1)
	}
	for hz := FrequencyMin; hz <= FrequencyMax; hz += 7654321 {
		samples = append(samples, hz)
	}
	for _, hz := range samples {
		band, ok := FindBand(hz)
		if !ok {
			t.Errorf("%d Hz: expected a band", hz)
			continue
		}
		f, err := Compute(hz)
		if err != nil {
			t.Errorf("%d Hz: %v", hz, err)
			continue
		}
		if f.Freqsel != band.Freqsel {
			t.Errorf("%d Hz: expected freqsel %#02x got %#02x", hz, band.Freqsel, f.Freqsel)
		}
	}
}

func TestComputeRoundTrip(t *testing.T) {
	for hz := FrequencyMin; hz <= FrequencyMax; hz += 12345677 {
		f, err := Compute(hz)
		if err != nil {
			t.Fatal(err)
		}
		if err = f.Validate(); err != nil {
			t.Fatalf("%d Hz: %v", hz, err)
		}
		if f.Vcocap > VcocapMax {
			t.Errorf("%d Hz: vcocap estimate %d too large", hz, f.Vcocap)
		}
		got := f.Hz()
		var diff uint64
		if got > hz {
			diff = got - hz
		} else {
			diff = hz - got
		}
		if diff > 3 {
			t.Errorf("expected %d Hz got %d Hz", hz, got)
		}
	}
}

func TestComputeEdges(t *testing.T) {
	cases := []struct {
		hz      uint64
		freqsel uint8
	}{
		{FrequencyMin, VCO4 | DIV16},
		{FrequencyMax, VCO1 | DIV2},
	}
	for _, c := range cases {
		f, err := Compute(c.hz)
		if err != nil {
			t.Fatal(err)
		}
		if f.Freqsel != c.freqsel {
			t.Errorf("%d Hz: expected freqsel %#02x got %#02x", c.hz, c.freqsel, f.Freqsel)
		}
	}
}

func TestDividerRatio(t *testing.T) {
	cases := map[uint8]uint8{VCO1 | DIV2: 1, VCO1 | DIV4: 2, VCO1 | DIV8: 4, VCO1 | DIV16: 8, 0x02: 0}
	for sel, x := range cases {
		if got := DividerRatio(sel); got != x {
			t.Errorf("freqsel %#02x: expected %d got %d", sel, x, got)
		}
	}
}

func TestValidateRejectsWideWords(t *testing.T) {
	bad := []LmsFreq{{Nint: 0x200}, {Nfrac: 0x800000}, {Freqsel: 0x40}, {Vcocap: 64}}
	for _, f := range bad {
		if err := f.Validate(); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("expected ErrOutOfRange for %s got %v", f, err)
		}
	}
}

func BenchmarkCompute(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Compute(2447000000)
	}
}

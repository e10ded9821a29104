/*
Package lms6002d computes tuning parameters for the LMS6002D RF transceiver
and programs its PLLs through a register interface.

Compute is pure: it maps a frequency to the integer and fractional PLL words,
the VCO/divider selector and an initial VCOCAP estimate.  The LMS type applies
those parameters to hardware and runs the VCOCAP search, which walks the
capacitor trim while watching the 3-state VTUNE comparator.
*/
package lms6002d

import (
	"errors"
	"fmt"

	"github.jpl.nasa.gov/bdube/bladerf/mathx"
	"github.jpl.nasa.gov/bdube/bladerf/util"
)

// ReferenceHz is the PLL reference clock
const ReferenceHz uint64 = 38400000

// tuning range of the board without an XB-200
const (
	FrequencyMin uint64 = 237500000
	FrequencyMax uint64 = 3800000000
)

// BandHighThreshold is the frequency at and above which the high band
// (LNA2/PA2) is used
const BandHighThreshold uint64 = 1500000000

// VCO operating ranges
const (
	vco4Low  uint64 = 3800000000
	vco4High uint64 = 4535000000
	vco3Low         = vco4High
	vco3High uint64 = 5408000000
	vco2Low         = vco3High
	vco2High uint64 = 6480000000
	vco1Low         = vco2High
	vco1High uint64 = 7600000000
)

// SELVCO and FRANGE codes, combined to form freqsel
const (
	VCO4 uint8 = 4 << 3
	VCO3 uint8 = 5 << 3
	VCO2 uint8 = 6 << 3
	VCO1 uint8 = 7 << 3

	DIV2  uint8 = 0x4
	DIV4  uint8 = 0x5
	DIV8  uint8 = 0x6
	DIV16 uint8 = 0x7
)

// VCOCAP limits and the linear estimate's end points
const (
	VcocapMax       uint8 = 0x3F
	VcocapEstMin    uint8 = 15
	VcocapEstMax    uint8 = 55
	VcocapEstRange        = VcocapEstMax - VcocapEstMin
	VcocapEstThresh uint8 = 7
)

// LmsFreq flags
const (
	FlagLowBand     uint8 = 1 << 0
	FlagForceVcocap uint8 = 1 << 1
)

// XB-200 quick tune GPIO fields
const (
	XB200Enable        uint8 = 1 << 7
	XB200ModuleRX      uint8 = 1 << 6
	XB200FilterSw      uint8 = 3 << 4
	XB200FilterSwShift       = 4
	XB200Path          uint8 = 3 << 2
	XB200PathShift           = 2
)

var (
	// ErrOutOfRange is generated when a frequency or tuning word is outside
	// what the hardware supports
	ErrOutOfRange = errors.New("lms6002d: out of range")

	// ErrNotConverged is generated when the VCOCAP search cannot place
	// VTUNE in its normal region
	ErrNotConverged = errors.New("lms6002d: VCOCAP search did not converge")

	// ErrBadVtune is generated when the comparator reads a state that does not exist
	ErrBadVtune = errors.New("lms6002d: invalid VTUNE comparator state")

	// ErrNoDivider is generated when a readback carries an invalid freqsel,
	// usually a sign that register access is not working
	ErrNoDivider = errors.New("lms6002d: freqsel selects no divider")
)

// FrequencyBand is one VCO × divider combination
type FrequencyBand struct {
	Low     uint64
	High    uint64
	Freqsel uint8
}

// Bands covers [FrequencyMin, FrequencyMax] in ascending order.  Adjacent
// entries share their end points; the first match wins.
var Bands = [16]FrequencyBand{
	{FrequencyMin, vco4High / 16, VCO4 | DIV16},
	{vco3Low / 16, vco3High / 16, VCO3 | DIV16},
	{vco2Low / 16, vco2High / 16, VCO2 | DIV16},
	{vco1Low / 16, vco1High / 16, VCO1 | DIV16},
	{vco4Low / 8, vco4High / 8, VCO4 | DIV8},
	{vco3Low / 8, vco3High / 8, VCO3 | DIV8},
	{vco2Low / 8, vco2High / 8, VCO2 | DIV8},
	{vco1Low / 8, vco1High / 8, VCO1 | DIV8},
	{vco4Low / 4, vco4High / 4, VCO4 | DIV4},
	{vco3Low / 4, vco3High / 4, VCO3 | DIV4},
	{vco2Low / 4, vco2High / 4, VCO2 | DIV4},
	{vco1Low / 4, vco1High / 4, VCO1 | DIV4},
	{vco4Low / 2, vco4High / 2, VCO4 | DIV2},
	{vco3Low / 2, vco3High / 2, VCO3 | DIV2},
	{vco2Low / 2, vco2High / 2, VCO2 | DIV2},
	{vco1Low / 2, FrequencyMax, VCO1 | DIV2},
}

// FindBand returns the band containing hz
func FindBand(hz uint64) (FrequencyBand, bool) {
	for _, b := range Bands {
		if hz >= b.Low && hz <= b.High {
			return b, true
		}
	}
	return FrequencyBand{}, false
}

// LmsFreq holds the PLL parameters for one frequency
type LmsFreq struct {
	// Freqsel selects the VCO and division ratio
	Freqsel uint8

	// Vcocap is the VCOCAP hint
	Vcocap uint8

	// Nint is the integer portion of f_LO given f_REF
	Nint uint16

	// Nfrac is the fractional portion of f_LO given nint and f_REF
	Nfrac uint32

	// Flags, see Flag*
	Flags uint8

	// XBGPIO holds XB-200 switch settings
	XBGPIO uint8

	// X is the VCO division ratio
	X uint8

	// VcocapResult is filled in by the tuning operation
	VcocapResult uint8
}

// DividerRatio returns 2^((freqsel & 7) - 3), or 0 if freqsel selects no divider
func DividerRatio(freqsel uint8) uint8 {
	sel := freqsel & 7
	if sel < 3 {
		return 0
	}
	return 1 << (sel - 3)
}

// LowBand reports whether the low band flag is set
func (f LmsFreq) LowBand() bool {
	return f.Flags&FlagLowBand != 0
}

// Validate checks each tuning word fits its register field
func (f LmsFreq) Validate() error {
	switch {
	case f.Nint > 0x1FF:
		return fmt.Errorf("%w: nint %#x", ErrOutOfRange, f.Nint)
	case f.Nfrac > 0x7FFFFF:
		return fmt.Errorf("%w: nfrac %#x", ErrOutOfRange, f.Nfrac)
	case f.Freqsel > 0x3F:
		return fmt.Errorf("%w: freqsel %#x", ErrOutOfRange, f.Freqsel)
	case f.Vcocap > VcocapMax:
		return fmt.Errorf("%w: vcocap %#x", ErrOutOfRange, f.Vcocap)
	}
	return nil
}

// Hz converts the PLL words back to a frequency, rounding to the nearest Hz.
// It returns 0 if X is 0.
func (f LmsFreq) Hz() uint64 {
	if f.X == 0 {
		return 0
	}
	pll := uint64(f.Nint)<<23 + uint64(f.Nfrac)
	div := uint64(f.X) << 23
	return (ReferenceHz*pll + div>>1) / div
}

func (f LmsFreq) String() string {
	return fmt.Sprintf("freqsel=%#02x vcocap=%d nint=%d nfrac=%d flags=%#02x x=%d",
		f.Freqsel, f.Vcocap, f.Nint, f.Nfrac, f.Flags, f.X)
}

// ClampFrequency limits hz to the supported tuning range
func ClampFrequency(hz uint64) uint64 {
	return util.ClampUint64(hz, FrequencyMin, FrequencyMax)
}

// estimateVcocap linearly interpolates between the experimentally found
// mean VCOCAP extremes across a band
func estimateVcocap(hz, low, high uint64) uint8 {
	est := float64(VcocapEstRange)/float64(high-low)*float64(hz-low) + 0.5 + float64(VcocapEstMin)
	if est > float64(VcocapMax) {
		return VcocapMax
	}
	return uint8(est)
}

// Compute calculates the tuning parameters for hz.  Frequencies outside
// [FrequencyMin, FrequencyMax] are rejected; use ClampFrequency first to
// tune to the nearest edge instead.
func Compute(hz uint64) (LmsFreq, error) {
	var f LmsFreq
	if hz < FrequencyMin || hz > FrequencyMax {
		return f, fmt.Errorf("%w: %d Hz outside [%d, %d]", ErrOutOfRange, hz, FrequencyMin, FrequencyMax)
	}
	band, ok := FindBand(hz)
	if !ok {
		// the table is total over the valid range
		panic(fmt.Sprintf("lms6002d: no band for %d Hz", hz))
	}
	f.Freqsel = band.Freqsel
	f.Vcocap = estimateVcocap(hz, band.Low, band.High)
	f.X = DividerRatio(f.Freqsel)

	vco := uint64(f.X) * hz
	nint := vco / ReferenceHz
	nfrac := mathx.DivRound((1<<23)*(vco-nint*ReferenceHz), ReferenceHz)
	if nfrac == 1<<23 {
		// rounded up into the next integer step
		nint++
		nfrac = 0
	}
	f.Nint = uint16(nint)
	f.Nfrac = uint32(nfrac)

	if hz < BandHighThreshold {
		f.Flags |= FlagLowBand
	}
	return f, nil
}

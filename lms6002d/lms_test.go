package lms6002d

import (
	"errors"
	"testing"
	"time"

	"github.jpl.nasa.gov/bdube/bladerf/nios"
)

// chip is a register file with a VTUNE comparator driven by VCOCAP
type chip struct {
	regs [128]uint8

	// NORM window, VCOCAP below lo reads HIGH and above hi reads LOW
	lo, hi uint8

	// stuck forces every comparator reading when not nil
	stuck *Vtune

	reads  map[uint8]int
	failAt uint8
}

func newChip(lo, hi uint8) *chip {
	return &chip{lo: lo, hi: hi, reads: map[uint8]int{}}
}

var errBus = errors.New("bus error")

func (c *chip) Read(addr uint8) (uint8, error) {
	addr &= 0x7F
	c.reads[addr]++
	if c.failAt != 0 && addr == c.failAt {
		return 0, errBus
	}
	if addr == 0x1A || addr == 0x2A {
		vc := c.regs[addr-1] & VcocapMax
		vt := VtuneNorm
		switch {
		case c.stuck != nil:
			vt = *c.stuck
		case vc < c.lo:
			vt = VtuneHigh
		case vc > c.hi:
			vt = VtuneLow
		}
		return uint8(vt) << 6, nil
	}
	return c.regs[addr], nil
}

func (c *chip) Write(addr, data uint8) error {
	c.regs[addr&0x7F] = data
	return nil
}

func newTestLMS(c *chip) *LMS {
	l := New(c, nil)
	l.Sleep = func(time.Duration) {}
	return l
}

func TestTuneVcocapConvergesToWindowCenter(t *testing.T) {
	for _, est := range []uint8{31, 20, 45} {
		c := newChip(25, 35)
		l := newTestLMS(c)
		c.regs[0x19] = est
		got, err := l.tuneVcocap(0x10, est, 0)
		if err != nil {
			t.Fatalf("estimate %d: %v", est, err)
		}
		if got != 30 {
			t.Errorf("estimate %d: expected 30 got %d", est, got)
		}
	}
}

func TestTuneVcocapNeverNormalIsBounded(t *testing.T) {
	c := newChip(25, 35)
	high := VtuneHigh
	c.stuck = &high
	l := newTestLMS(c)
	_, err := l.tuneVcocap(0x10, 20, 0)
	if !errors.Is(err, ErrNotConverged) {
		t.Fatalf("expected ErrNotConverged got %v", err)
	}
	if n := c.reads[0x1A]; n != 1+VtuneMaxIterations {
		t.Errorf("expected %d comparator reads got %d", 1+VtuneMaxIterations, n)
	}
}

func TestTuneVcocapBadComparator(t *testing.T) {
	c := newChip(25, 35)
	bad := Vtune(3)
	c.stuck = &bad
	l := newTestLMS(c)
	if _, err := l.tuneVcocap(0x20, 30, 0); !errors.Is(err, ErrBadVtune) {
		t.Errorf("expected ErrBadVtune got %v", err)
	}
}

func TestWriteVcocapPanicsAboveMax(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected a panic for vcocap 64")
		}
	}()
	newTestLMS(newChip(0, 63)).writeVcocap(0x10, 64, 0)
}

func TestSetFrequencyProgramsPLL(t *testing.T) {
	c := newChip(25, 35)
	c.regs[0x19] = 0x80 // VOVCOREG bit must survive
	l := newTestLMS(c)
	f, err := l.SetFrequency(nios.ModuleTX, 2447000000)
	if err != nil {
		t.Fatal(err)
	}
	if f.VcocapResult != 30 {
		t.Errorf("expected vcocap result 30 got %d", f.VcocapResult)
	}
	if c.regs[0x19] != 0x80|30 {
		t.Errorf("expected VCOCAP register %#02x got %#02x", 0x80|30, c.regs[0x19])
	}
	if c.regs[0x09]&dsmEnable != dsmEnable {
		t.Error("expected DSMs on")
	}
	if c.regs[0x15] != 0x2C<<2|2 {
		t.Errorf("expected PLL config %#02x got %#02x", 0x2C<<2|2, c.regs[0x15])
	}
	words := c.regs[0x10:0x14]
	exp := []uint8{0x3F, 0xB9, 0x55, 0x55}
	for i := range exp {
		if words[i] != exp[i] {
			t.Errorf("PLL word %d: expected %#02x got %#02x", i, exp[i], words[i])
		}
	}

	rb, err := l.GetFrequency(nios.ModuleTX)
	if err != nil {
		t.Fatal(err)
	}
	if rb.Nint != f.Nint || rb.Nfrac != f.Nfrac || rb.Freqsel != f.Freqsel || rb.Vcocap != 30 {
		t.Errorf("expected readback to match %s got %s", f, rb)
	}
}

func TestSetFrequencyForceVcocapSkipsSearch(t *testing.T) {
	c := newChip(25, 35)
	l := newTestLMS(c)
	f, _ := Compute(2484000000)
	f.Flags |= FlagForceVcocap
	if err := l.SetPrecalculatedFrequency(nios.ModuleRX, &f); err != nil {
		t.Fatal(err)
	}
	if c.reads[0x2A] != 0 {
		t.Errorf("expected no comparator reads got %d", c.reads[0x2A])
	}
	if f.VcocapResult != f.Vcocap || c.regs[0x29] != f.Vcocap {
		t.Errorf("expected vcocap %d to be applied as-is got result %d", f.Vcocap, f.VcocapResult)
	}
}

func TestSetFrequencyFailureTurnsOffDSMs(t *testing.T) {
	c := newChip(25, 35)
	high := VtuneHigh
	c.stuck = &high
	l := newTestLMS(c)
	_, err := l.SetFrequency(nios.ModuleTX, 2447000000)
	if !errors.Is(err, ErrNotConverged) {
		t.Fatalf("expected ErrNotConverged got %v", err)
	}
	if c.regs[0x09]&dsmEnable != 0 {
		t.Error("expected DSMs off after failed tune")
	}
}

func TestGetFrequencyNoDivider(t *testing.T) {
	c := newChip(25, 35)
	c.regs[0x25] = 0x01 << 2
	l := newTestLMS(c)
	if _, err := l.GetFrequency(nios.ModuleRX); !errors.Is(err, ErrNoDivider) {
		t.Errorf("expected ErrNoDivider got %v", err)
	}
}

func TestGetFrequencyPropagatesBusError(t *testing.T) {
	c := newChip(25, 35)
	c.failAt = 0x22
	l := newTestLMS(c)
	if _, err := l.GetFrequency(nios.ModuleRX); !errors.Is(err, errBus) {
		t.Errorf("expected bus error got %v", err)
	}
}

func TestLoopbackEnabled(t *testing.T) {
	cases := []struct {
		r08, r46 uint8
		exp      bool
	}{
		{0x00, 0x00, false},
		{0x02, 0x00, true},
		{lbenLPFIN, loopbTXLPF, true},
		{lbenVGA2IN, loopbTXVGA, true},
		{lbenVGA2IN, 0x00, false},
		{lbenOPIN, loopbTXLPF, false},
	}
	for _, tc := range cases {
		c := newChip(0, 63)
		c.regs[0x08], c.regs[0x46] = tc.r08, tc.r46
		got, err := newTestLMS(c).LoopbackEnabled()
		if err != nil {
			t.Fatal(err)
		}
		if got != tc.exp {
			t.Errorf("0x08=%#02x 0x46=%#02x: expected %v got %v", tc.r08, tc.r46, tc.exp, got)
		}
	}
}

func TestWritePLLConfigLoopbackKeepsSelout(t *testing.T) {
	c := newChip(0, 63)
	c.regs[0x08] = 0x01
	c.regs[0x15] = 0x03
	if err := newTestLMS(c).WritePLLConfig(nios.ModuleTX, 0x2C, false); err != nil {
		t.Fatal(err)
	}
	if c.regs[0x15] != 0xB3 {
		t.Errorf("expected 0xb3 got %#02x", c.regs[0x15])
	}
}

func TestSelectBand(t *testing.T) {
	c := newChip(0, 63)
	c.regs[0x44] = 0x1C
	c.regs[0x75] = 0x3F
	l := newTestLMS(c)
	if err := l.SelectBand(nios.ModuleTX, nios.BandLow); err != nil {
		t.Fatal(err)
	}
	if c.regs[0x44] != 0x0A {
		t.Errorf("TX low band: expected 0x0a got %#02x", c.regs[0x44])
	}
	if err := l.SelectBand(nios.ModuleRX, nios.BandHigh); err != nil {
		t.Fatal(err)
	}
	if c.regs[0x75] != 0x2F {
		t.Errorf("RX high band: expected 0x2f got %#02x", c.regs[0x75])
	}

	c.regs[0x08] = 0x03
	if err := l.SelectBand(nios.ModuleRX, nios.BandLow); err != nil {
		t.Fatal(err)
	}
	if c.regs[0x75] != 0x2F {
		t.Error("expected band selection to be skipped in loopback")
	}
}

func TestEnableRFFEAndChargePumps(t *testing.T) {
	c := newChip(0, 63)
	c.regs[0x26] = 0xE0
	l := newTestLMS(c)
	if err := l.EnableRFFE(nios.ModuleTX, true); err != nil {
		t.Fatal(err)
	}
	if err := l.EnableRFFE(nios.ModuleRX, true); err != nil {
		t.Fatal(err)
	}
	if c.regs[0x40] != 0x02 || c.regs[0x70] != 0x01 {
		t.Errorf("expected enable bits set got 0x40=%#02x 0x70=%#02x", c.regs[0x40], c.regs[0x70])
	}
	if on, err := l.RFFEEnabled(nios.ModuleTX); err != nil || !on {
		t.Errorf("expected TX enabled got %v, %v", on, err)
	}
	if err := l.ConfigChargePumps(nios.ModuleRX); err != nil {
		t.Fatal(err)
	}
	if c.regs[0x26] != 0xEC || c.regs[0x27] != 0x03 || c.regs[0x28] != 0x03 {
		t.Errorf("unexpected charge pump registers % x", c.regs[0x26:0x29])
	}
}

func TestSoftReset(t *testing.T) {
	c := newChip(0, 63)
	if err := newTestLMS(c).SoftReset(); err != nil {
		t.Fatal(err)
	}
	if c.regs[0x05] != 0x32 {
		t.Errorf("expected 0x32 got %#02x", c.regs[0x05])
	}
}

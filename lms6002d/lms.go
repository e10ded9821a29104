package lms6002d

import (
	"fmt"
	"log"
	"time"

	"github.jpl.nasa.gov/bdube/bladerf/nios"
	"github.jpl.nasa.gov/bdube/bladerf/util"
)

// Registers is 8-bit register access to the LMS6002D
type Registers interface {
	Read(addr uint8) (uint8, error)
	Write(addr, data uint8) error
}

// Retuner schedules retunes on the FPGA
type Retuner interface {
	Retune(req nios.RetuneRequest) (nios.RetuneResponse, error)
}

// loopback register fields
const (
	lbenOPIN    uint8 = 1 << 4
	lbenVGA2IN  uint8 = 1 << 5
	lbenLPFIN   uint8 = 1 << 6
	lbenMask          = lbenOPIN | lbenVGA2IN | lbenLPFIN
	lbrfenLNA1  uint8 = 1
	lbrfenLNA2  uint8 = 2
	lbrfenLNA3  uint8 = 3
	loopbTXLPF  uint8 = 1 << 2
	loopbTXVGA  uint8 = 2 << 2
	regDSM      uint8 = 0x09
	dsmEnable   uint8 = 0x05
	regTXPLLOut uint8 = 0x15
	regRXPLLOut uint8 = 0x25
)

// LMS drives one LMS6002D.  Callers must not interleave other register
// traffic with a tuning sequence; the VCOCAP search assumes every VTUNE
// reading was caused by its own writes.
type LMS struct {
	Regs Registers

	// FPGA is used by ScheduleRetune, it may be nil if only host tuning is used
	FPGA Retuner

	// Sleep waits for VTUNE to settle.  nil uses time.Sleep.
	Sleep func(time.Duration)

	// Logger, when not nil, receives tuning diagnostics
	Logger *log.Logger
}

// New returns an LMS using regs for register access and fpga for retunes
func New(regs Registers, fpga Retuner) *LMS {
	return &LMS{Regs: regs, FPGA: fpga}
}

func (l *LMS) logf(format string, args ...interface{}) {
	if l.Logger != nil {
		l.Logger.Printf(format, args...)
	}
}

func (l *LMS) sleep(d time.Duration) {
	if l.Sleep != nil {
		l.Sleep(d)
		return
	}
	time.Sleep(d)
}

// pllBase is the first PLL register of a module
func pllBase(m nios.Module) uint8 {
	if m.IsTX() {
		return 0x10
	}
	return 0x20
}

// Read a register
func (l *LMS) Read(addr uint8) (uint8, error) {
	return l.Regs.Read(addr)
}

// Write a register
func (l *LMS) Write(addr, data uint8) error {
	return l.Regs.Write(addr, data)
}

// Set ORs mask into a register
func (l *LMS) Set(addr, mask uint8) error {
	v, err := l.Regs.Read(addr)
	if err != nil {
		return err
	}
	return l.Regs.Write(addr, v|mask)
}

// Clear clears the bits of mask in a register
func (l *LMS) Clear(addr, mask uint8) error {
	v, err := l.Regs.Read(addr)
	if err != nil {
		return err
	}
	return l.Regs.Write(addr, v&^mask)
}

// SoftReset pulses the soft reset bit
func (l *LMS) SoftReset() error {
	if err := l.Write(0x05, 0x12); err != nil {
		return err
	}
	return l.Write(0x05, 0x32)
}

func rffeBit(m nios.Module) (uint8, uint) {
	if m.IsTX() {
		return 0x40, 1
	}
	return 0x70, 0
}

// RFFEEnabled reports whether the RF front end of a module is powered
func (l *LMS) RFFEEnabled(m nios.Module) (bool, error) {
	addr, bit := rffeBit(m)
	v, err := l.Read(addr)
	if err != nil {
		return false, err
	}
	return util.GetBit(v, bit), nil
}

// EnableRFFE enables or disables the RF front end of a module
func (l *LMS) EnableRFFE(m nios.Module, enable bool) error {
	addr, bit := rffeBit(m)
	v, err := l.Read(addr)
	if err != nil {
		return err
	}
	return l.Write(addr, util.SetBit(v, bit, enable))
}

// ConfigChargePumps sets the PLL charge pump currents of a module
func (l *LMS) ConfigChargePumps(m nios.Module) error {
	base := pllBase(m)
	settings := []struct{ off, val uint8 }{
		{6, 0x0C}, // Ichp
		{7, 0x03}, // Iup offset
		{8, 0x03}, // Idn offset
	}
	for _, s := range settings {
		v, err := l.Read(base + s.off)
		if err != nil {
			return err
		}
		if err = l.Write(base+s.off, util.ReplaceBits(v, 0x1F, s.val)); err != nil {
			return err
		}
	}
	return nil
}

// LoopbackEnabled reports whether any RF or baseband loopback path is active
func (l *LMS) LoopbackEnabled() (bool, error) {
	lben, err := l.Read(0x08)
	if err != nil {
		return false, err
	}
	loopbben, err := l.Read(0x46)
	if err != nil {
		return false, err
	}
	switch lben & 0x7 {
	case lbrfenLNA1, lbrfenLNA2, lbrfenLNA3:
		return true, nil
	}
	switch lben & lbenMask {
	case lbenVGA2IN, lbenLPFIN:
		if loopbben&(loopbTXLPF|loopbTXVGA) != 0 {
			return true, nil
		}
	}
	return false, nil
}

// WritePLLConfig writes freqsel and, outside loopback, the PLL output buffer selection
func (l *LMS) WritePLLConfig(m nios.Module, freqsel uint8, lowBand bool) error {
	addr := regRXPLLOut
	if m.IsTX() {
		addr = regTXPLLOut
	}
	v, err := l.Read(addr)
	if err != nil {
		return err
	}
	lb, err := l.LoopbackEnabled()
	if err != nil {
		return err
	}
	if lb {
		// leave the output buffer alone
		v = (v &^ 0xFC) | freqsel<<2
	} else {
		selout := uint8(2)
		if lowBand {
			selout = 1
		}
		v = freqsel<<2 | selout
	}
	return l.Write(addr, v)
}

// SelectBand picks PA1/PA2 (TX) or LNA1/LNA2 (RX).  It does nothing while a
// loopback is active, since those paths must stay powered down.
func (l *LMS) SelectBand(m nios.Module, band nios.Band) error {
	lb, err := l.LoopbackEnabled()
	if err != nil {
		return err
	}
	if lb {
		l.logf("loopback enabled, not changing %s band", m)
		return nil
	}
	if m.IsTX() {
		v, err := l.Read(0x44)
		if err != nil {
			return err
		}
		v &^= 0x1C
		v |= 1 << 1 // AUX PA off
		if band == nios.BandLow {
			v |= 2 << 2 // PA1
		} else {
			v |= 4 << 2 // PA2
		}
		return l.Write(0x44, v)
	}
	lna := uint8(2)
	if band == nios.BandLow {
		lna = 1
	}
	v, err := l.Read(0x75)
	if err != nil {
		return err
	}
	return l.Write(0x75, util.ReplaceBits(v, 3<<4, lna<<4))
}

func (l *LMS) turnOffDSMs() error {
	return l.Clear(regDSM, dsmEnable)
}

// SetPrecalculatedFrequency programs a module's PLL with f and runs the VCOCAP
// search unless FlagForceVcocap is set.  f.VcocapResult holds the capacitor
// value in use on success.
func (l *LMS) SetPrecalculatedFrequency(m nios.Module, f *LmsFreq) (err error) {
	if err = f.Validate(); err != nil {
		return err
	}
	base := pllBase(m)
	f.VcocapResult = 0xFF

	if err = l.Set(regDSM, dsmEnable); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if offErr := l.turnOffDSMs(); offErr != nil {
				l.logf("failed to turn off DSMs after error: %v", offErr)
			}
		}
	}()

	// bit 7 of the VCOCAP register is VOVCOREG[0], keep it
	regState, err := l.Read(base + 9)
	if err != nil {
		return fmt.Errorf("reading VCOCAP register state: %w", err)
	}
	regState &^= VcocapMax
	if err = l.writeVcocap(base, f.Vcocap, regState); err != nil {
		return fmt.Errorf("writing VCOCAP estimate: %w", err)
	}
	if err = l.WritePLLConfig(m, f.Freqsel, f.LowBand()); err != nil {
		return fmt.Errorf("writing PLL config: %w", err)
	}

	// the MSB selects the multi-write path for the PLL words
	words := [4]uint8{
		uint8(f.Nint >> 1),
		uint8(f.Nint&1)<<7 | uint8((f.Nfrac>>16)&0x7F),
		uint8(f.Nfrac >> 8),
		uint8(f.Nfrac),
	}
	for i, w := range words {
		addr := (base | 0x80) + uint8(i)
		if err = l.Write(addr, w); err != nil {
			return fmt.Errorf("writing PLL word %#02x: %w", addr, err)
		}
	}

	if f.Flags&FlagForceVcocap != 0 {
		f.VcocapResult = f.Vcocap
		return nil
	}
	result, err := l.tuneVcocap(base, f.Vcocap, regState)
	if err != nil {
		return err
	}
	f.VcocapResult = result
	if d := int(result) - int(f.Vcocap); d > int(VcocapEstThresh) || -d > int(VcocapEstThresh) {
		l.logf("VCOCAP estimate %d was off by %d (converged to %d) at %d Hz", f.Vcocap, d, result, f.Hz())
	}
	return nil
}

// SetFrequency computes parameters for hz and programs them
func (l *LMS) SetFrequency(m nios.Module, hz uint64) (LmsFreq, error) {
	f, err := Compute(hz)
	if err != nil {
		return f, err
	}
	err = l.SetPrecalculatedFrequency(m, &f)
	return f, err
}

// GetFrequency reads back the PLL parameters of a module
func (l *LMS) GetFrequency(m nios.Module) (LmsFreq, error) {
	var f LmsFreq
	base := pllBase(m)
	regs := make([]uint8, 4)
	for i := range regs {
		v, err := l.Read(base + uint8(i))
		if err != nil {
			return f, err
		}
		regs[i] = v
	}
	f.Nint = uint16(regs[0])<<1 | uint16(regs[1]>>7)
	f.Nfrac = uint32(regs[1]&0x7F)<<16 | uint32(regs[2])<<8 | uint32(regs[3])

	v, err := l.Read(base + 5)
	if err != nil {
		return f, err
	}
	f.Freqsel = v >> 2
	f.X = DividerRatio(f.Freqsel)
	if f.X == 0 {
		return f, fmt.Errorf("%w: freqsel %#02x read from %s PLL", ErrNoDivider, f.Freqsel, m)
	}

	v, err = l.Read(base + 9)
	if err != nil {
		return f, err
	}
	f.Vcocap = v & VcocapMax
	return f, nil
}

// FrequencyHz reads back the frequency a module is tuned to
func (l *LMS) FrequencyHz(m nios.Module) (uint64, error) {
	f, err := l.GetFrequency(m)
	if err != nil {
		return 0, err
	}
	return f.Hz(), nil
}

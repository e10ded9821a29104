/*
Package si5338 computes and programs the Si5338 clock generator multisynths
that derive the sample clocks and the SMB reference output.

The calculator works in exact rational arithmetic.  Channel 1 feeds the RX
sample clock, channel 2 the TX sample clock (both run at twice the sample
rate), and channel 3 drives the SMB connector.
*/
package si5338

import (
	"fmt"

	"github.jpl.nasa.gov/bdube/bladerf/nios"
)

// sample rate and SMB bounds
const (
	SampleRateMin            uint64 = 80000
	SampleRateRecommendedMax uint64 = 40000000

	SMBFreqMax uint64 = 200000000
)

// SMBFreqMin is the lowest SMB output, FVCO / (32 × 567)
var SMBFreqMin = func() RationalRate {
	r := RationalRate{Num: FVCO, Den: maxR * aMax}
	r.Reduce()
	return r
}()

// channel assignments
const (
	IndexRX  uint8 = 1
	IndexTX  uint8 = 2
	IndexSMB uint8 = 3
)

// Registers is 8-bit register access to the Si5338
type Registers interface {
	Read(addr uint8) (uint8, error)
	Write(addr, data uint8) error
}

// Si5338 drives the clock generator over a register interface
type Si5338 struct {
	Regs Registers
}

// New returns an Si5338 using regs
func New(regs Registers) *Si5338 {
	return &Si5338{Regs: regs}
}

func sampleMultisynth(m nios.Module) Multisynth {
	if m.IsTX() {
		return NewMultisynth(IndexTX, EnableA|EnableB)
	}
	return NewMultisynth(IndexRX, EnableA)
}

// WriteMultisynth enables the channel outputs, writes the ten parameter
// registers and then the R divider
func (s *Si5338) WriteMultisynth(ms Multisynth) error {
	en := regEnable + ms.Index
	v, err := s.Regs.Read(en)
	if err != nil {
		return err
	}
	if err = s.Regs.Write(en, v|ms.Enable); err != nil {
		return err
	}
	for i, b := range ms.Regs {
		if err = s.Regs.Write(ms.Base+uint8(i), b); err != nil {
			return fmt.Errorf("writing MS%d register %d: %w", ms.Index, i, err)
		}
	}
	return s.Regs.Write(regR+ms.Index, ms.RRegister())
}

// ReadMultisynth reads back the configuration of channel index
func (s *Si5338) ReadMultisynth(index uint8) (Multisynth, error) {
	ms := NewMultisynth(index, 0)
	v, err := s.Regs.Read(regEnable + index)
	if err != nil {
		return ms, err
	}
	ms.Enable = v & (EnableA | EnableB)
	for i := range ms.Regs {
		if ms.Regs[i], err = s.Regs.Read(ms.Base + uint8(i)); err != nil {
			return ms, fmt.Errorf("reading MS%d register %d: %w", index, i, err)
		}
	}
	r, err := s.Regs.Read(regR + index)
	if err != nil {
		return ms, err
	}
	ms.Unpack(r)
	return ms, nil
}

func (s *Si5338) setRate(ms Multisynth, rate RationalRate) (RationalRate, error) {
	ms, err := CalculateMultisynth(ms, rate)
	if err != nil {
		return RationalRate{}, err
	}
	if err = s.WriteMultisynth(ms); err != nil {
		return RationalRate{}, err
	}
	return ms.Rate(), nil
}

// SetRationalSampleRate programs the sample clock of a module and returns
// the rate actually produced
func (s *Si5338) SetRationalSampleRate(m nios.Module, rate RationalRate) (RationalRate, error) {
	req := rate
	req.Reduce()
	if req.Integer < SampleRateMin {
		return RationalRate{}, fmt.Errorf("%w: %s sample rate %s below %d", ErrUnreachable, m, req, SampleRateMin)
	}
	if req.Integer > SampleRateRecommendedMax {
		Logf("si5338: %s sample rate %s exceeds the recommended maximum of %d", m, req, SampleRateRecommendedMax)
	}
	return s.setRate(sampleMultisynth(m), req)
}

// SetSampleRate programs an integer sample rate and returns the integer part
// of the rate produced
func (s *Si5338) SetSampleRate(m nios.Module, rate uint32) (uint32, error) {
	actual, err := s.SetRationalSampleRate(m, Whole(uint64(rate)))
	if err != nil {
		return 0, err
	}
	if actual.Num != 0 {
		Logf("si5338: non-integer %s sample rate %s", m, actual)
	}
	return uint32(actual.Integer), nil
}

// RationalSampleRate reads back the sample clock of a module
func (s *Si5338) RationalSampleRate(m nios.Module) (RationalRate, error) {
	ms, err := s.ReadMultisynth(sampleMultisynth(m).Index)
	if err != nil {
		return RationalRate{}, err
	}
	return ms.Rate(), nil
}

// SampleRate reads back the integer part of a module's sample rate
func (s *Si5338) SampleRate(m nios.Module) (uint32, error) {
	r, err := s.RationalSampleRate(m)
	return uint32(r.Integer), err
}

// SetRationalSMBFreq programs the SMB output and returns the frequency produced
func (s *Si5338) SetRationalSMBFreq(rate RationalRate) (RationalRate, error) {
	req := rate
	req.Reduce()
	if req.Float() < SMBFreqMin.Float() || req.Integer > SMBFreqMax || (req.Integer == SMBFreqMax && req.Num > 0) {
		return RationalRate{}, fmt.Errorf("%w: SMB frequency %s outside [%s, %d]", ErrUnreachable, req, SMBFreqMin, SMBFreqMax)
	}
	return s.setRate(NewMultisynth(IndexSMB, EnableA), req)
}

// SetSMBFreq programs an integer SMB frequency
func (s *Si5338) SetSMBFreq(hz uint32) (uint32, error) {
	actual, err := s.SetRationalSMBFreq(Whole(uint64(hz)))
	if err != nil {
		return 0, err
	}
	return uint32(actual.Integer), nil
}

// RationalSMBFreq reads back the SMB output
func (s *Si5338) RationalSMBFreq() (RationalRate, error) {
	ms, err := s.ReadMultisynth(IndexSMB)
	if err != nil {
		return RationalRate{}, err
	}
	return ms.Rate(), nil
}

// SMBFreq reads back the integer part of the SMB output
func (s *Si5338) SMBFreq() (uint32, error) {
	r, err := s.RationalSMBFreq()
	return uint32(r.Integer), err
}

package si5338

import (
	"errors"
	"fmt"
	"log"

	"github.jpl.nasa.gov/bdube/bladerf/mathx"
)

// FVCO is the synthesizer VCO frequency, 66 × the 38.4 MHz reference
const FVCO uint64 = 38400000 * 66

// multisynth output enables
const (
	EnableA uint8 = 1 << 0
	EnableB uint8 = 1 << 1
)

const (
	msBaseAddr   = 53
	msStride     = 11
	regEnable    = 36
	regR         = 31
	rFieldHigh   = 0xC0
	minInteger   = 5000000
	maxR         = 32
	aMin         = 8
	aMax         = 567
	fracLimit    = 1 << 30
	p1Offset     = 512
	fixedPtScale = 128
)

// ErrUnreachable is generated when a rate needs a multisynth divider that
// the hardware cannot represent
var ErrUnreachable = errors.New("si5338: rate unreachable")

// Logf receives the one intentional loss of precision in CalculateMultisynth
var Logf = log.Printf

// Multisynth is the divider configuration of one output channel:
// FVCO / (r * (a + b/c)), halved again on channels 1 and 2
type Multisynth struct {
	Index  uint8
	Base   uint8
	Enable uint8

	A, B, C, R uint32

	P1, P2, P3 uint32

	Regs [10]uint8
}

// NewMultisynth returns a zero multisynth for channel index
func NewMultisynth(index, enable uint8) Multisynth {
	return Multisynth{Index: index, Base: msBaseAddr + msStride*index, Enable: enable}
}

// doubled reports whether the channel runs at half the multisynth output
func (ms Multisynth) doubled() bool {
	return ms.Index == 1 || ms.Index == 2
}

// CalculateMultisynth finds a, b, c and r for rate on channel ms.Index and
// packs the register image
func CalculateMultisynth(ms Multisynth, rate RationalRate) (Multisynth, error) {
	req := rate
	req.Reduce()
	if req.Integer == 0 && req.Num == 0 {
		return ms, fmt.Errorf("%w: zero rate", ErrUnreachable)
	}
	if ms.doubled() {
		req.Double()
	}

	r := uint32(1)
	for req.Integer < minInteger && r < maxR {
		req.Double()
		r <<= 1
	}
	if req.Integer < minInteger {
		return ms, fmt.Errorf("%w: %s needs an output divider above %d", ErrUnreachable, rate, maxR)
	}

	abc := RationalRate{
		Num: FVCO * req.Den,
		Den: req.Integer*req.Den + req.Num,
	}
	abc.Reduce()
	if abc.Integer < aMin || abc.Integer > aMax {
		return ms, fmt.Errorf("%w: %s gives a=%d outside [%d, %d]", ErrUnreachable, rate, abc.Integer, aMin, aMax)
	}
	for abc.Num > fracLimit || abc.Den > fracLimit {
		Logf("si5338: loss of precision reducing %d/%d to %d/%d", abc.Num, abc.Den, abc.Num>>1, abc.Den>>1)
		abc.Num >>= 1
		abc.Den >>= 1
	}

	ms.A = uint32(abc.Integer)
	ms.B = uint32(abc.Num)
	ms.C = uint32(abc.Den)
	ms.R = r
	ms.Pack()
	return ms, nil
}

// Pack computes p1, p2, p3 from a, b, c and serializes them into Regs
func (ms *Multisynth) Pack() {
	a, b, c := uint64(ms.A), uint64(ms.B), uint64(ms.C)
	if c == 0 {
		c = 1
	}
	ms.P1 = uint32((a*c+b)*fixedPtScale/c - p1Offset)
	ms.P2 = uint32((b * fixedPtScale) % c)
	ms.P3 = uint32(c)

	ms.Regs[0] = uint8(ms.P1)
	ms.Regs[1] = uint8(ms.P1 >> 8)
	ms.Regs[2] = uint8((ms.P2&0x3F)<<2) | uint8((ms.P1>>16)&0x3)
	ms.Regs[3] = uint8(ms.P2 >> 6)
	ms.Regs[4] = uint8(ms.P2 >> 14)
	ms.Regs[5] = uint8(ms.P2 >> 22)
	ms.Regs[6] = uint8(ms.P3)
	ms.Regs[7] = uint8(ms.P3 >> 8)
	ms.Regs[8] = uint8(ms.P3 >> 16)
	ms.Regs[9] = uint8(ms.P3 >> 24)
}

// Unpack recovers p1..p3 and a, b, c from the register image in ms.Regs.
// rReg is the raw R divider register.
func (ms *Multisynth) Unpack(rReg uint8) {
	r := ms.Regs
	ms.P1 = uint32(r[2]&0x3)<<16 | uint32(r[1])<<8 | uint32(r[0])
	ms.P2 = uint32(r[5])<<22 | uint32(r[4])<<14 | uint32(r[3])<<6 | uint32(r[2]>>2)&0x3F
	ms.P3 = uint32(r[9]&0x3F)<<24 | uint32(r[8])<<16 | uint32(r[7])<<8 | uint32(r[6])

	p1, p2 := uint64(ms.P1), uint64(ms.P2)
	c := uint64(ms.P3)
	a := (p1 + p1Offset) / fixedPtScale
	b := (((p1+p1Offset)-fixedPtScale*a)*c + p2 + fixedPtScale/2) / fixedPtScale
	ms.A, ms.B, ms.C = uint32(a), uint32(b), uint32(c)
	ms.R = 1 << ((rReg >> 2) & 0x7)
}

// RRegister is the value of the R divider register
func (ms Multisynth) RRegister() uint8 {
	return rFieldHigh | uint8(mathx.Log2(uint64(ms.R)))<<2
}

// Rate is the output rate the configuration actually produces
func (ms Multisynth) Rate() RationalRate {
	rate := RationalRate{
		Num: FVCO * uint64(ms.C),
		Den: uint64(ms.R) * (uint64(ms.A)*uint64(ms.C) + uint64(ms.B)),
	}
	if ms.doubled() {
		rate.Den *= 2
	}
	rate.Reduce()
	return rate
}

func (ms Multisynth) String() string {
	return fmt.Sprintf("MS%d a=%d b=%d c=%d r=%d p1=%#x p2=%#x p3=%#x",
		ms.Index, ms.A, ms.B, ms.C, ms.R, ms.P1, ms.P2, ms.P3)
}

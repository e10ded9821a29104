package bladerf

import (
	"sync"
	"time"

	"github.jpl.nasa.gov/bdube/bladerf/lms6002d"
	"github.jpl.nasa.gov/bdube/bladerf/nios"
	"github.jpl.nasa.gov/bdube/bladerf/util"
)

// MockQueueLen is the depth of each module's retune queue in Mock
const MockQueueLen = 16

// mockVersion reads as v0.11.0
const mockVersion uint32 = 0x000B0000

type regKey struct {
	magic, target byte
	addr          uint64
}

// AppliedRetune records a retune carried out by Mock
type AppliedRetune struct {
	Request nios.RetuneRequest
	Ticks   uint64
	Vcocap  uint8

	// Err is set when the LMS6002D could not be tuned
	Err error
}

// Failed reports whether the retune left the PLL untuned
func (a AppliedRetune) Failed() bool {
	return a.Err != nil
}

// Mock is a nios.Transport that behaves like bladeRF firmware with an
// LMS6002D and Si5338 attached.  The LMS6002D's VTUNE comparator reads NORM
// when VCOCAP lies in the window returned by Window for the frequency the
// PLL is programmed to, HIGH below it and LOW above it.
type Mock struct {
	mu sync.Mutex

	regs map[regKey]uint64
	lms  [128]uint8

	ticks [2]uint64
	queue [2][]nios.RetuneRequest

	// TicksPerExchange advances both timestamp counters on every exchange
	TicksPerExchange uint64

	// Window gives the NORM range of VCOCAP at hz
	Window func(hz uint64) (lo, hi uint8)

	// Applied lists every retune carried out, in order, failed ones included
	Applied []AppliedRetune
}

// NewMock returns a mock board
func NewMock() *Mock {
	m := &Mock{
		regs:             map[regKey]uint64{},
		TicksPerExchange: 1000,
		Window:           DefaultWindow,
	}
	m.regs[regKey{nios.Magic8x32, nios.Target8x32Version, 0}] = uint64(mockVersion)
	return m
}

// DefaultWindow centers an 11 wide NORM window on the VCOCAP estimate
func DefaultWindow(hz uint64) (lo, hi uint8) {
	f, err := lms6002d.Compute(lms6002d.ClampFrequency(hz))
	if err != nil {
		return 0, lms6002d.VcocapMax
	}
	l, h := int(f.Vcocap)-5, int(f.Vcocap)+5
	if l < 0 {
		l = 0
	}
	if h > int(lms6002d.VcocapMax) {
		h = int(lms6002d.VcocapMax)
	}
	return uint8(l), uint8(h)
}

// Ticks returns the timestamp counter of module m
func (m *Mock) Ticks(mod nios.Module) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ticks[mod&1]
}

// Queued returns the number of retunes waiting for module mod
func (m *Mock) Queued(mod nios.Module) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue[mod&1])
}

// LMSRegister returns the raw value of an LMS6002D register
func (m *Mock) LMSRegister(addr uint8) uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lms[addr&0x7F]
}

// Exchange answers one request frame
func (m *Mock) Exchange(req nios.Frame) (nios.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks[0] += m.TicksPerExchange
	m.ticks[1] += m.TicksPerExchange
	m.drainQueues()

	switch req.Magic() {
	case nios.MagicRetune:
		return m.retune(req), nil
	case nios.MagicRetune2:
		return nios.Retune2Response{Duration: 100, Valid: true, Success: true}.Encode(), nil
	}

	c, ok := nios.CodecForMagic(req.Magic())
	if !ok {
		// unknown requests come back without the success bit
		return req, nil
	}
	target, flags, addr, data := c.Decode(req)
	write := flags&nios.FlagWrite != 0
	v, ok := m.access(c, target, write, addr, data)
	if !ok {
		return c.Encode(target, flags, addr, 0), nil
	}
	return c.Encode(target, flags|nios.FlagSuccess, addr, v), nil
}

func (m *Mock) access(c nios.Codec, target byte, write bool, addr, data uint64) (uint64, bool) {
	switch {
	case c.Magic() == nios.Magic8x8 && target == nios.Target8x8LMS6:
		r := mockLMS{m}
		if write {
			r.Write(uint8(addr), uint8(data))
			return data, true
		}
		v, _ := r.Read(uint8(addr))
		return uint64(v), true
	case c.Magic() == nios.Magic8x32 && target == nios.Target8x32Version:
		if write {
			return 0, false
		}
	case c.Magic() == nios.Magic8x64 && target == nios.Target8x64Timestamp:
		if write || addr > 1 {
			return 0, false
		}
		return m.ticks[addr], true
	case c.Magic() == nios.Magic32x32:
		// the address is a bit mask
		k := regKey{c.Magic(), target, 0}
		if write {
			m.regs[k] = uint64(util.MaskedUpdate32(uint32(m.regs[k]), uint32(addr), uint32(data)))
		}
		return m.regs[k] & addr, true
	}
	k := regKey{c.Magic(), target, addr}
	if write {
		m.regs[k] = data
	}
	return m.regs[k], true
}

func (m *Mock) retune(f nios.Frame) nios.Frame {
	req, err := nios.DecodeRetuneRequest(f)
	if err != nil {
		return nios.RetuneResponse{}.Encode()
	}
	q := &m.queue[req.Module&1]
	switch {
	case req.Timestamp == nios.RetuneClearQueue:
		*q = nil
		return nios.RetuneResponse{Success: true}.Encode()
	case req.Timestamp <= m.ticks[req.Module&1]:
		vcocap, err := m.apply(req)
		if err != nil {
			return nios.RetuneResponse{}.Encode()
		}
		return nios.RetuneResponse{Duration: 2 * m.TicksPerExchange, Vcocap: vcocap, Valid: true, Success: true}.Encode()
	case len(*q) >= MockQueueLen:
		return nios.RetuneResponse{}.Encode()
	}
	*q = append(*q, req)
	return nios.RetuneResponse{Success: true}.Encode()
}

// drainQueues applies queued retunes whose time has come
func (m *Mock) drainQueues() {
	for i := range m.queue {
		var keep []nios.RetuneRequest
		for _, req := range m.queue[i] {
			if req.Timestamp <= m.ticks[i] {
				// the FPGA has no one to report to; Applied keeps the error
				m.apply(req)
				continue
			}
			keep = append(keep, req)
		}
		m.queue[i] = keep
	}
}

// apply carries out req and records the outcome in Applied
func (m *Mock) apply(req nios.RetuneRequest) (uint8, error) {
	vcocap, err := m.tune(req)
	m.Applied = append(m.Applied, AppliedRetune{Request: req, Ticks: m.ticks[req.Module&1], Vcocap: vcocap, Err: err})
	return vcocap, err
}

// tune programs the LMS6002D the way the FPGA's retune handler does
func (m *Mock) tune(req nios.RetuneRequest) (uint8, error) {
	lms := lms6002d.New(mockLMS{m}, nil)
	lms.Sleep = func(time.Duration) {}
	f := lms6002d.LmsFreq{
		Freqsel: req.Freqsel,
		Vcocap:  req.Vcocap,
		Nint:    req.Nint,
		Nfrac:   req.Nfrac,
		XBGPIO:  req.XBGPIO,
		X:       lms6002d.DividerRatio(req.Freqsel),
	}
	if req.Band == nios.BandLow {
		f.Flags |= lms6002d.FlagLowBand
	}
	if req.Tune == nios.TuneQuick {
		f.Flags |= lms6002d.FlagForceVcocap
	}
	if err := lms.SetPrecalculatedFrequency(req.Module, &f); err != nil {
		return 0, err
	}
	if err := lms.SelectBand(req.Module, req.Band); err != nil {
		return 0, err
	}
	k := regKey{nios.Magic8x32, nios.Target8x32Control, 0}
	m.regs[k] = uint64(BandGPIO(uint32(m.regs[k]), req.Module, req.Band))
	return f.VcocapResult, nil
}

// mockLMS is the LMS6002D register file.  Callers hold m.mu.
type mockLMS struct{ m *Mock }

func (r mockLMS) Read(addr uint8) (uint8, error) {
	addr &= 0x7F
	if addr == 0x1A || addr == 0x2A {
		return uint8(r.vtune(addr-0x0A)) << 6, nil
	}
	return r.m.lms[addr], nil
}

func (r mockLMS) Write(addr, data uint8) error {
	r.m.lms[addr&0x7F] = data
	return nil
}

// vtune models the comparator of the PLL at base
func (r mockLMS) vtune(base uint8) lms6002d.Vtune {
	regs := r.m.lms[base : base+10]
	f := lms6002d.LmsFreq{
		Nint:    uint16(regs[0])<<1 | uint16(regs[1]>>7),
		Nfrac:   uint32(regs[1]&0x7F)<<16 | uint32(regs[2])<<8 | uint32(regs[3]),
		Freqsel: regs[5] >> 2,
	}
	f.X = lms6002d.DividerRatio(f.Freqsel)
	lo, hi := r.m.Window(f.Hz())
	vcocap := regs[9] & lms6002d.VcocapMax
	switch {
	case vcocap < lo:
		return lms6002d.VtuneHigh
	case vcocap > hi:
		return lms6002d.VtuneLow
	}
	return lms6002d.VtuneNorm
}

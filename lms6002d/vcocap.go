package lms6002d

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
)

// Vtune is a reading of the 3-state VTUNE comparator
type Vtune uint8

// comparator states, as read from bits 7:6 of base+10
const (
	VtuneNorm Vtune = 0
	VtuneLow  Vtune = 1
	VtuneHigh Vtune = 2
)

func (v Vtune) String() string {
	switch v {
	case VtuneNorm:
		return "NORM"
	case VtuneLow:
		return "LOW"
	case VtuneHigh:
		return "HIGH"
	}
	return fmt.Sprintf("Vtune(%d)", uint8(v))
}

const (
	vtuneDelayLarge = 50 * time.Microsecond
	vtuneDelaySmall = 25 * time.Microsecond
	vtunePollPeriod = 10 * time.Microsecond
	vtunePollTries  = 15

	// VtuneMaxIterations bounds each walk of the search
	VtuneMaxIterations = 20

	// vcocapLowHighSpan is the typical distance between the HIGH and LOW
	// edges of the NORM window, used to jump straight to the far edge
	vcocapLowHighSpan = 12
)

var errVtuneNotYet = errors.New("vtune has not reached target")

func (l *LMS) vtune(base uint8, delay time.Duration) (Vtune, error) {
	if delay > 0 {
		l.sleep(delay)
	}
	v, err := l.Read(base + 10)
	if err != nil {
		return 0, err
	}
	vt := Vtune(v >> 6)
	if vt > VtuneHigh {
		return vt, fmt.Errorf("%w: %#02x", ErrBadVtune, v)
	}
	return vt, nil
}

func (l *LMS) writeVcocap(base, vcocap, regState uint8) error {
	if vcocap > VcocapMax {
		panic(fmt.Sprintf("lms6002d: vcocap %d exceeds %d", vcocap, VcocapMax))
	}
	return l.Write(base+9, vcocap|regState)
}

// step writes vcocap and reports the comparator state after the short delay
func (l *LMS) step(base, vcocap, regState uint8) (Vtune, error) {
	if err := l.writeVcocap(base, vcocap, regState); err != nil {
		return 0, err
	}
	return l.vtune(base, vtuneDelaySmall)
}

// highToNorm increments VCOCAP until VTUNE leaves HIGH and returns the last
// value that still read HIGH
func (l *LMS) highToNorm(base, vcocap, regState uint8) (uint8, error) {
	for i := 0; i < VtuneMaxIterations; i++ {
		if vcocap >= VcocapMax {
			return VcocapMax, nil
		}
		vcocap++
		vt, err := l.step(base, vcocap, regState)
		if err != nil {
			return 0, err
		}
		if vt == VtuneNorm {
			return vcocap - 1, nil
		}
	}
	return 0, fmt.Errorf("%w: HIGH to NORM walk", ErrNotConverged)
}

// normToHigh decrements VCOCAP until VTUNE reads HIGH and returns that value
func (l *LMS) normToHigh(base, vcocap, regState uint8) (uint8, error) {
	for i := 0; i < VtuneMaxIterations; i++ {
		if vcocap == 0 {
			return 0, nil
		}
		vcocap--
		vt, err := l.step(base, vcocap, regState)
		if err != nil {
			return 0, err
		}
		if vt == VtuneHigh {
			return vcocap, nil
		}
	}
	return 0, fmt.Errorf("%w: NORM to HIGH walk", ErrNotConverged)
}

// lowToNorm decrements VCOCAP until VTUNE leaves LOW and returns the last
// value that still read LOW
func (l *LMS) lowToNorm(base, vcocap, regState uint8) (uint8, error) {
	for i := 0; i < VtuneMaxIterations; i++ {
		if vcocap == 0 {
			return 0, nil
		}
		vcocap--
		vt, err := l.step(base, vcocap, regState)
		if err != nil {
			return 0, err
		}
		if vt == VtuneNorm {
			return vcocap + 1, nil
		}
	}
	return 0, fmt.Errorf("%w: LOW to NORM walk", ErrNotConverged)
}

// waitForVtune polls briefly for target after a large VCOCAP jump, then walks
// VCOCAP toward the limit matching target.  Not reaching target is not an
// error; the walk that follows will fail instead if the VCO is truly stuck.
func (l *LMS) waitForVtune(base uint8, target Vtune, vcocap *uint8, regState uint8) error {
	poll := func() error {
		vt, err := l.vtune(base, 0)
		if err != nil {
			return backoff.Permanent(err)
		}
		if vt != target {
			return errVtuneNotYet
		}
		return nil
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(vtunePollPeriod), vtunePollTries-1)
	err := backoff.Retry(poll, b)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errVtuneNotYet) {
		return err
	}

	limit, inc := VcocapMax, 1
	if target == VtuneHigh {
		limit, inc = 0, -1
	}
	for *vcocap != limit {
		*vcocap = uint8(int(*vcocap) + inc)
		vt, err := l.step(base, *vcocap, regState)
		if err != nil {
			return err
		}
		if vt == target {
			return nil
		}
	}
	l.logf("VTUNE did not reach %s, continuing with VCOCAP=%d", target, *vcocap)
	return nil
}

// tuneVcocap finds both edges of the NORM window around estimate and settles
// on its midpoint
func (l *LMS) tuneVcocap(base, estimate, regState uint8) (uint8, error) {
	var (
		highLimit = VcocapMax
		lowLimit  = uint8(0)
		vcocap    = estimate
	)
	vt, err := l.vtune(base, vtuneDelayLarge)
	if err != nil {
		return 0, err
	}

	switch vt {
	case VtuneHigh:
		highLimit, err = l.highToNorm(base, vcocap, regState)
	case VtuneNorm:
		highLimit, err = l.normToHigh(base, vcocap, regState)
	case VtuneLow:
		lowLimit, err = l.lowToNorm(base, vcocap, regState)
	}
	if err != nil {
		return 0, err
	}

	if highLimit != VcocapMax {
		// found the HIGH edge, jump past the LOW edge and walk back
		if vt != VtuneHigh && vt != VtuneNorm {
			return 0, fmt.Errorf("%w: VTUNE was %s with HIGH limit %d", ErrNotConverged, vt, highLimit)
		}
		vcocap = VcocapMax
		if int(highLimit)+vcocapLowHighSpan < int(VcocapMax) {
			vcocap = highLimit + vcocapLowHighSpan
		}
		if err = l.writeVcocap(base, vcocap, regState); err != nil {
			return 0, err
		}
		if err = l.waitForVtune(base, VtuneLow, &vcocap, regState); err != nil {
			return 0, err
		}
		if lowLimit, err = l.lowToNorm(base, vcocap, regState); err != nil {
			return 0, err
		}
	} else {
		// found the LOW edge, jump past the HIGH edge and walk back
		if vt != VtuneLow && vt != VtuneNorm {
			return 0, fmt.Errorf("%w: VTUNE stuck %s at VCOCAP=%d", ErrNotConverged, vt, VcocapMax)
		}
		vcocap = 0
		if int(lowLimit)-vcocapLowHighSpan > 0 {
			vcocap = lowLimit - vcocapLowHighSpan
		}
		if err = l.writeVcocap(base, vcocap, regState); err != nil {
			return 0, err
		}
		if err = l.waitForVtune(base, VtuneHigh, &vcocap, regState); err != nil {
			return 0, err
		}
		if highLimit, err = l.highToNorm(base, vcocap, regState); err != nil {
			return 0, err
		}
	}

	if lowLimit < highLimit {
		return 0, fmt.Errorf("%w: LOW limit %d below HIGH limit %d", ErrNotConverged, lowLimit, highLimit)
	}
	vcocap = highLimit + (lowLimit-highLimit)/2
	if err = l.writeVcocap(base, vcocap, regState); err != nil {
		return 0, err
	}
	vt, err = l.vtune(base, vtuneDelaySmall)
	if err != nil {
		return 0, err
	}
	if vt != VtuneNorm {
		return 0, fmt.Errorf("%w: VTUNE %s at midpoint VCOCAP=%d (window %d..%d)",
			ErrNotConverged, vt, vcocap, highLimit, lowLimit)
	}
	return vcocap, nil
}

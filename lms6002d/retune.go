package lms6002d

import (
	"errors"
	"fmt"

	"github.jpl.nasa.gov/bdube/bladerf/nios"
)

// ErrNoFPGA is generated when a scheduled retune is requested of an LMS
// with no Retuner
var ErrNoFPGA = errors.New("lms6002d: no FPGA retuner configured")

// QuickTune is a snapshot of a converged tuning, reusable to retune without
// the VCOCAP search
type QuickTune struct {
	Freqsel uint8  `json:"freqsel"`
	Vcocap  uint8  `json:"vcocap"`
	Nint    uint16 `json:"nint"`
	Nfrac   uint32 `json:"nfrac"`
	Flags   uint8  `json:"flags"`
	XBGPIO  uint8  `json:"xb_gpio"`
}

// Freq converts the quick tune back into an LmsFreq
func (q QuickTune) Freq() LmsFreq {
	return LmsFreq{
		Freqsel: q.Freqsel,
		Vcocap:  q.Vcocap,
		Nint:    q.Nint,
		Nfrac:   q.Nfrac,
		Flags:   q.Flags,
		XBGPIO:  q.XBGPIO,
		X:       DividerRatio(q.Freqsel),
	}
}

// GetQuickTune reads back the current tuning of a module.  The result has
// FlagForceVcocap set so that it skips the search when reapplied.
func (l *LMS) GetQuickTune(m nios.Module) (QuickTune, error) {
	f, err := l.GetFrequency(m)
	if err != nil {
		return QuickTune{}, err
	}
	q := QuickTune{
		Freqsel: f.Freqsel,
		Vcocap:  f.Vcocap,
		Nint:    f.Nint,
		Nfrac:   f.Nfrac,
		Flags:   FlagForceVcocap,
	}
	if f.Hz() < BandHighThreshold {
		q.Flags |= FlagLowBand
	}
	return q, nil
}

// SetQuickTune applies a quick tune from the host
func (l *LMS) SetQuickTune(m nios.Module, q QuickTune) error {
	f := q.Freq()
	f.Flags |= FlagForceVcocap
	return l.SetPrecalculatedFrequency(m, &f)
}

// NewRetuneRequest builds the FPGA retune request for f
func NewRetuneRequest(m nios.Module, timestamp uint64, f LmsFreq) nios.RetuneRequest {
	req := nios.RetuneRequest{
		Module:    m,
		Timestamp: timestamp,
		Nint:      f.Nint,
		Nfrac:     f.Nfrac,
		Freqsel:   f.Freqsel,
		Vcocap:    f.Vcocap,
		Band:      nios.BandHigh,
		Tune:      nios.TuneNormal,
		XBGPIO:    f.XBGPIO,
	}
	if f.LowBand() {
		req.Band = nios.BandLow
	}
	if f.Flags&FlagForceVcocap != 0 {
		req.Tune = nios.TuneQuick
	}
	return req
}

// ScheduleRetune asks the FPGA to retune a module at timestamp.  When q is
// nil the parameters are computed for hz, otherwise q is used and hz is ignored.
func (l *LMS) ScheduleRetune(m nios.Module, timestamp, hz uint64, q *QuickTune) (nios.RetuneResponse, error) {
	if l.FPGA == nil {
		return nios.RetuneResponse{}, ErrNoFPGA
	}
	var f LmsFreq
	if q != nil {
		f = q.Freq()
	} else {
		var err error
		f, err = Compute(hz)
		if err != nil {
			return nios.RetuneResponse{}, err
		}
	}
	resp, err := l.FPGA.Retune(NewRetuneRequest(m, timestamp, f))
	if err != nil {
		return resp, fmt.Errorf("scheduling %s retune at %d: %w", m, timestamp, err)
	}
	return resp, nil
}

// CancelScheduledRetunes clears the FPGA's retune queue for a module
func (l *LMS) CancelScheduledRetunes(m nios.Module) error {
	if l.FPGA == nil {
		return ErrNoFPGA
	}
	_, err := l.FPGA.Retune(nios.RetuneRequest{Module: m, Timestamp: nios.RetuneClearQueue})
	return err
}

package nios

import "fmt"

const (
	// RetuneNow as a timestamp asks the FPGA to retune immediately
	RetuneNow uint64 = 0

	// RetuneClearQueue as a timestamp discards every queued retune.
	// The firmware ignores all other fields of such a request.
	RetuneClearQueue uint64 = ^uint64(0)
)

// field limits of the retune layout
const (
	MaxNint    = 0x1FF
	MaxNfrac   = 0x7FFFFF
	MaxFreqsel = 0x3F
	MaxVcocap  = 0x3F
)

const (
	retuneIdxNint    = 9
	retuneIdxFreqsel = 13
	retuneIdxBandCap = 14
	retuneIdxXBGPIO  = 15

	retuneFlagTX      = 1 << 7
	retuneFlagRX      = 1 << 6
	retuneFlagLowBand = 1 << 7
	retuneFlagQuick   = 1 << 6
	retuneMask6       = 0x3F

	retuneRespIdxVcocap = 9
	retuneRespIdxFlags  = 10
	retuneRespValid     = 1 << 0
	retuneRespSuccess   = 1 << 1
)

// Band is the LMS6002D RF band, which picks the LNA/PA path
type Band uint8

const (
	BandHigh Band = iota
	BandLow
)

func (b Band) String() string {
	if b == BandLow {
		return "low"
	}
	return "high"
}

// TuneMode tells the FPGA whether to run the VCOCAP search
type TuneMode uint8

const (
	// TuneNormal runs the full VCOCAP search on the FPGA
	TuneNormal TuneMode = iota

	// TuneQuick uses the supplied VCOCAP as-is
	TuneQuick
)

// RetuneRequest schedules an LMS6002D PLL retune on the FPGA
type RetuneRequest struct {
	Module    Module
	Timestamp uint64
	Nint      uint16
	Nfrac     uint32
	Freqsel   uint8
	Vcocap    uint8
	Band      Band
	Tune      TuneMode
	XBGPIO    uint8
}

// Validate returns ErrOutOfRange if a tuning word does not fit its field
func (r RetuneRequest) Validate() error {
	switch {
	case r.Nint > MaxNint:
		return fmt.Errorf("%w: nint %#x exceeds %#x", ErrOutOfRange, r.Nint, MaxNint)
	case r.Nfrac > MaxNfrac:
		return fmt.Errorf("%w: nfrac %#x exceeds %#x", ErrOutOfRange, r.Nfrac, MaxNfrac)
	case r.Freqsel > MaxFreqsel:
		return fmt.Errorf("%w: freqsel %#x exceeds %#x", ErrOutOfRange, r.Freqsel, MaxFreqsel)
	case r.Vcocap > MaxVcocap:
		return fmt.Errorf("%w: vcocap %#x exceeds %#x", ErrOutOfRange, r.Vcocap, MaxVcocap)
	}
	return nil
}

// Encode packs the request.  Out of range tuning words are rejected.
func (r RetuneRequest) Encode() (Frame, error) {
	var f Frame
	if err := r.Validate(); err != nil {
		return f, err
	}
	f[0] = MagicRetune
	dataOrder.PutUint64(f[1:9], r.Timestamp)

	// 9 bits of nint, then 23 bits of nfrac, big end first
	f[retuneIdxNint] = byte(r.Nint >> 1)
	f[retuneIdxNint+1] = byte((r.Nint&1)<<7) | byte((r.Nfrac>>16)&0x7F)
	f[retuneIdxNint+2] = byte(r.Nfrac >> 8)
	f[retuneIdxNint+3] = byte(r.Nfrac)

	sel := r.Freqsel & retuneMask6
	if r.Module.IsTX() {
		sel |= retuneFlagTX
	} else {
		sel |= retuneFlagRX
	}
	f[retuneIdxFreqsel] = sel

	bc := r.Vcocap & retuneMask6
	if r.Band == BandLow {
		bc |= retuneFlagLowBand
	}
	if r.Tune == TuneQuick {
		bc |= retuneFlagQuick
	}
	f[retuneIdxBandCap] = bc
	f[retuneIdxXBGPIO] = r.XBGPIO
	return f, nil
}

// DecodeRetuneRequest unpacks a retune request frame
func DecodeRetuneRequest(f Frame) (RetuneRequest, error) {
	var r RetuneRequest
	if f[0] != MagicRetune {
		return r, fmt.Errorf("%w: magic %#02x is not a retune request", ErrBadFrame, f[0])
	}
	r.Timestamp = dataOrder.Uint64(f[1:9])
	r.Nint = uint16(f[retuneIdxNint])<<1 | uint16(f[retuneIdxNint+1]>>7)
	r.Nfrac = uint32(f[retuneIdxNint+1]&0x7F)<<16 | uint32(f[retuneIdxNint+2])<<8 | uint32(f[retuneIdxNint+3])

	sel := f[retuneIdxFreqsel]
	r.Freqsel = sel & retuneMask6
	if sel&retuneFlagTX != 0 {
		r.Module = ModuleTX
	} else {
		r.Module = ModuleRX
	}

	bc := f[retuneIdxBandCap]
	r.Vcocap = bc & retuneMask6
	if bc&retuneFlagLowBand != 0 {
		r.Band = BandLow
	}
	if bc&retuneFlagQuick != 0 {
		r.Tune = TuneQuick
	}
	r.XBGPIO = f[retuneIdxXBGPIO]
	return r, nil
}

// RetuneResponse is the firmware's answer to a RetuneRequest
type RetuneResponse struct {
	// Duration is the number of ticks the retune took, when Valid
	Duration uint64

	// Vcocap is the capacitor setting the FPGA used, when Valid
	Vcocap uint8

	// Valid is set when Duration and Vcocap hold data
	Valid bool

	Success bool
}

// Encode packs the response, as the firmware would
func (r RetuneResponse) Encode() Frame {
	var f Frame
	f[0] = MagicRetune
	dataOrder.PutUint64(f[1:9], r.Duration)
	f[retuneRespIdxVcocap] = r.Vcocap & retuneMask6
	if r.Valid {
		f[retuneRespIdxFlags] |= retuneRespValid
	}
	if r.Success {
		f[retuneRespIdxFlags] |= retuneRespSuccess
	}
	return f
}

// DecodeRetuneResponse unpacks a retune response frame
func DecodeRetuneResponse(f Frame) (RetuneResponse, error) {
	var r RetuneResponse
	if f[0] != MagicRetune {
		return r, fmt.Errorf("%w: magic %#02x is not a retune response", ErrBadFrame, f[0])
	}
	r.Duration = dataOrder.Uint64(f[1:9])
	r.Vcocap = f[retuneRespIdxVcocap] & retuneMask6
	r.Valid = f[retuneRespIdxFlags]&retuneRespValid != 0
	r.Success = f[retuneRespIdxFlags]&retuneRespSuccess != 0
	return r, nil
}

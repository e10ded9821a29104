package nios

import "fmt"

const (
	retune2IdxNiosProfile = 9
	retune2IdxRFFEProfile = 11
	retune2IdxPort        = 12
	retune2IdxSpdt        = 13

	retune2PortIsRX = 1 << 7

	retune2RespIdxFlags = 9
	retune2RespValid    = 1 << 0
	retune2RespSuccess  = 1 << 1
)

// Retune2Request schedules a retune to a stored fast-lock profile
type Retune2Request struct {
	Module      Module
	Timestamp   uint64
	NiosProfile uint16
	RFFEProfile uint8

	// Port is the 7-bit RFFE port selection
	Port uint8

	// Spdt packs four 2-bit external switch settings
	Spdt uint8
}

// Encode packs the request.  Ports wider than 7 bits are rejected.
func (r Retune2Request) Encode() (Frame, error) {
	var f Frame
	if r.Port&retune2PortIsRX != 0 {
		return f, fmt.Errorf("%w: port %#x exceeds 7 bits", ErrOutOfRange, r.Port)
	}
	f[0] = MagicRetune2
	dataOrder.PutUint64(f[1:9], r.Timestamp)
	dataOrder.PutUint16(f[retune2IdxNiosProfile:retune2IdxNiosProfile+2], r.NiosProfile)
	f[retune2IdxRFFEProfile] = r.RFFEProfile
	port := r.Port
	if !r.Module.IsTX() {
		port |= retune2PortIsRX
	}
	f[retune2IdxPort] = port
	f[retune2IdxSpdt] = r.Spdt
	return f, nil
}

// DecodeRetune2Request unpacks a retune2 request frame
func DecodeRetune2Request(f Frame) (Retune2Request, error) {
	var r Retune2Request
	if f[0] != MagicRetune2 {
		return r, fmt.Errorf("%w: magic %#02x is not a retune2 request", ErrBadFrame, f[0])
	}
	r.Timestamp = dataOrder.Uint64(f[1:9])
	r.NiosProfile = dataOrder.Uint16(f[retune2IdxNiosProfile : retune2IdxNiosProfile+2])
	r.RFFEProfile = f[retune2IdxRFFEProfile]
	port := f[retune2IdxPort]
	r.Port = port &^ retune2PortIsRX
	if port&retune2PortIsRX != 0 {
		r.Module = ModuleRX
	} else {
		r.Module = ModuleTX
	}
	r.Spdt = f[retune2IdxSpdt]
	return r, nil
}

// Retune2Response is the firmware's answer to a Retune2Request
type Retune2Response struct {
	Duration uint64
	Valid    bool
	Success  bool
}

// Encode packs the response, as the firmware would
func (r Retune2Response) Encode() Frame {
	var f Frame
	f[0] = MagicRetune2
	dataOrder.PutUint64(f[1:9], r.Duration)
	if r.Valid {
		f[retune2RespIdxFlags] |= retune2RespValid
	}
	if r.Success {
		f[retune2RespIdxFlags] |= retune2RespSuccess
	}
	return f
}

// DecodeRetune2Response unpacks a retune2 response frame
func DecodeRetune2Response(f Frame) (Retune2Response, error) {
	var r Retune2Response
	if f[0] != MagicRetune2 {
		return r, fmt.Errorf("%w: magic %#02x is not a retune2 response", ErrBadFrame, f[0])
	}
	r.Duration = dataOrder.Uint64(f[1:9])
	r.Valid = f[retune2RespIdxFlags]&retune2RespValid != 0
	r.Success = f[retune2RespIdxFlags]&retune2RespSuccess != 0
	return r, nil
}

package nios

import (
	"fmt"
	"log"
)

// Transport performs one request/response exchange with the firmware.
// Implementations decide the timeout; any error aborts the operation in progress.
type Transport interface {
	Exchange(req Frame) (Frame, error)
}

// TransportFunc adapts a function to the Transport interface
type TransportFunc func(Frame) (Frame, error)

// Exchange calls fn
func (fn TransportFunc) Exchange(req Frame) (Frame, error) {
	return fn(req)
}

// Version is the FPGA's semantic version
type Version struct {
	Major uint16 `json:"major"`
	Minor uint16 `json:"minor"`
	Patch uint16 `json:"patch"`
}

func (v Version) String() string {
	return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// DecodeVersion converts the 8x32 VERSION register to a Version.
// The patch number is stored big endian in the low half word.
func DecodeVersion(word uint32) Version {
	patch := uint16(word & 0xFFFF)
	return Version{
		Major: uint16((word >> 24) & 0xFF),
		Minor: uint16((word >> 16) & 0xFF),
		Patch: patch<<8 | patch>>8,
	}
}

// Device issues typed NIOS transactions over a Transport.
// It does not serialize access; hold a lock around multi-frame sequences
// when sharing it.
type Device struct {
	Transport Transport

	// Logger, when not nil, receives retune diagnostics
	Logger *log.Logger
}

// NewDevice returns a Device using t
func NewDevice(t Transport) *Device {
	return &Device{Transport: t}
}

func (d *Device) logf(format string, args ...interface{}) {
	if d.Logger != nil {
		d.Logger.Printf(format, args...)
	}
}

func (d *Device) exchange(op string, req Frame) (Frame, error) {
	resp, err := d.Transport.Exchange(req)
	if err != nil {
		return resp, fmt.Errorf("nios %s: %w", op, err)
	}
	return resp, nil
}

// Access performs one generic read or write and returns the response data word
func (d *Device) Access(c Codec, target byte, write bool, addr, data uint64) (uint64, error) {
	op := fmt.Sprintf("%s read", c)
	if write {
		op = fmt.Sprintf("%s write", c)
	}
	if err := c.Check(addr, data); err != nil {
		return 0, fmt.Errorf("nios %s: %w", op, err)
	}
	req := c.Request(target, write, addr, data)
	resp, err := d.exchange(op, req)
	if err != nil {
		return 0, err
	}
	if err = c.Validate(resp); err != nil {
		return 0, fmt.Errorf("nios %s: %w", op, err)
	}
	if resp.Target() != target {
		return 0, fmt.Errorf("nios %s: %w: response target %#02x, expected %#02x", op, ErrBadFrame, resp.Target(), target)
	}
	if !resp.IsSuccess() {
		return 0, &FailureError{Op: op, Request: req, Response: resp, Err: ErrHardwareFailure}
	}
	return c.Data(resp), nil
}

// Read performs a generic read
func (d *Device) Read(c Codec, target byte, addr uint64) (uint64, error) {
	return d.Access(c, target, false, addr, 0)
}

// Write performs a generic write
func (d *Device) Write(c Codec, target byte, addr, data uint64) error {
	_, err := d.Access(c, target, true, addr, data)
	return err
}

// Read8x8 reads an 8-bit register
func (d *Device) Read8x8(target, addr uint8) (uint8, error) {
	v, err := d.Read(Codec8x8, target, uint64(addr))
	return uint8(v), err
}

// Write8x8 writes an 8-bit register
func (d *Device) Write8x8(target, addr, data uint8) error {
	return d.Write(Codec8x8, target, uint64(addr), uint64(data))
}

// Read8x16 reads a 16-bit register
func (d *Device) Read8x16(target, addr uint8) (uint16, error) {
	v, err := d.Read(Codec8x16, target, uint64(addr))
	return uint16(v), err
}

// Write8x16 writes a 16-bit register
func (d *Device) Write8x16(target, addr uint8, data uint16) error {
	return d.Write(Codec8x16, target, uint64(addr), uint64(data))
}

// Read8x32 reads a 32-bit register
func (d *Device) Read8x32(target, addr uint8) (uint32, error) {
	v, err := d.Read(Codec8x32, target, uint64(addr))
	return uint32(v), err
}

// Write8x32 writes a 32-bit register
func (d *Device) Write8x32(target, addr uint8, data uint32) error {
	return d.Write(Codec8x32, target, uint64(addr), uint64(data))
}

// Read8x64 reads a 64-bit register
func (d *Device) Read8x64(target, addr uint8) (uint64, error) {
	return d.Read(Codec8x64, target, uint64(addr))
}

// Read32x32 reads a 32-bit register; for GPIO targets the address is a bit mask
func (d *Device) Read32x32(target uint8, addr uint32) (uint32, error) {
	v, err := d.Read(Codec32x32, target, uint64(addr))
	return uint32(v), err
}

// Write32x32 writes a 32-bit register; for GPIO targets the address is a bit mask
func (d *Device) Write32x32(target uint8, addr, data uint32) error {
	return d.Write(Codec32x32, target, uint64(addr), uint64(data))
}

// LMSRegisters exposes the LMS6002D register file through the device
type LMSRegisters struct{ *Device }

// Read an LMS6002D register
func (r LMSRegisters) Read(addr uint8) (uint8, error) {
	return r.Read8x8(Target8x8LMS6, addr)
}

// Write an LMS6002D register
func (r LMSRegisters) Write(addr, data uint8) error {
	return r.Write8x8(Target8x8LMS6, addr, data)
}

// SI5338Registers exposes the Si5338 register file through the device
type SI5338Registers struct{ *Device }

// Read an Si5338 register
func (r SI5338Registers) Read(addr uint8) (uint8, error) {
	return r.Read8x8(Target8x8SI5338, addr)
}

// Write an Si5338 register
func (r SI5338Registers) Write(addr, data uint8) error {
	return r.Write8x8(Target8x8SI5338, addr, data)
}

// ConfigRead reads the FPGA control/config GPIO register
func (d *Device) ConfigRead() (uint32, error) {
	return d.Read8x32(Target8x32Control, 0)
}

// ConfigWrite writes the FPGA control/config GPIO register
func (d *Device) ConfigWrite(v uint32) error {
	return d.Write8x32(Target8x32Control, 0, v)
}

// XB200SynthWrite writes one word to the XB-200's ADF4351
func (d *Device) XB200SynthWrite(v uint32) error {
	return d.Write8x32(Target8x32ADF4351, 0, v)
}

// ExpansionGPIORead reads the expansion header GPIO
func (d *Device) ExpansionGPIORead() (uint32, error) {
	return d.Read32x32(Target32x32Exp, 0xFFFFFFFF)
}

// ExpansionGPIOWrite writes the bits of val selected by mask
func (d *Device) ExpansionGPIOWrite(mask, val uint32) error {
	return d.Write32x32(Target32x32Exp, mask, val)
}

// ExpansionGPIODirRead reads the expansion GPIO direction register
func (d *Device) ExpansionGPIODirRead() (uint32, error) {
	return d.Read32x32(Target32x32ExpDir, 0xFFFFFFFF)
}

// ExpansionGPIODirWrite writes the direction bits selected by mask
func (d *Device) ExpansionGPIODirWrite(mask, val uint32) error {
	return d.Write32x32(Target32x32ExpDir, mask, val)
}

// FPGAVersion reads and decodes the FPGA version word
func (d *Device) FPGAVersion() (Version, error) {
	word, err := d.Read8x32(Target8x32Version, 0)
	if err != nil {
		return Version{}, err
	}
	return DecodeVersion(word), nil
}

// VCTCXOTrimRead reads the VCTCXO trim DAC
func (d *Device) VCTCXOTrimRead() (uint16, error) {
	return d.Read8x16(Target8x16VCTCXODAC, 0)
}

// VCTCXOTrimWrite writes the VCTCXO trim DAC
func (d *Device) VCTCXOTrimWrite(v uint16) error {
	return d.Write8x16(Target8x16VCTCXODAC, 0, v)
}

func iqAddr(m Module, phase bool) uint8 {
	switch {
	case m.IsTX() && phase:
		return Addr8x16IQCorrTXPhase
	case m.IsTX():
		return Addr8x16IQCorrTXGain
	case phase:
		return Addr8x16IQCorrRXPhase
	default:
		return Addr8x16IQCorrRXGain
	}
}

// IQGainCorrection reads the FPGA IQ gain correction of a module
func (d *Device) IQGainCorrection(m Module) (int16, error) {
	v, err := d.Read8x16(Target8x16IQCorr, iqAddr(m, false))
	return int16(v), err
}

// SetIQGainCorrection writes the FPGA IQ gain correction of a module
func (d *Device) SetIQGainCorrection(m Module, v int16) error {
	return d.Write8x16(Target8x16IQCorr, iqAddr(m, false), uint16(v))
}

// IQPhaseCorrection reads the FPGA IQ phase correction of a module
func (d *Device) IQPhaseCorrection(m Module) (int16, error) {
	v, err := d.Read8x16(Target8x16IQCorr, iqAddr(m, true))
	return int16(v), err
}

// SetIQPhaseCorrection writes the FPGA IQ phase correction of a module
func (d *Device) SetIQPhaseCorrection(m Module, v int16) error {
	return d.Write8x16(Target8x16IQCorr, iqAddr(m, true), uint16(v))
}

// Timestamp reads the sample counter of a module
func (d *Device) Timestamp(m Module) (uint64, error) {
	addr := Addr8x64TimestampRX
	if m.IsTX() {
		addr = Addr8x64TimestampTX
	}
	return d.Read8x64(Target8x64Timestamp, addr)
}

// Retune sends a retune request.  A refusal is reported as ErrHardwareFailure
// for immediate retunes and ErrRetuneQueueFull for scheduled ones.
func (d *Device) Retune(req RetuneRequest) (RetuneResponse, error) {
	f, err := req.Encode()
	if err != nil {
		return RetuneResponse{}, err
	}
	if req.Timestamp == RetuneClearQueue {
		d.logf("clearing %s retune queue", req.Module)
	} else {
		d.logf("retune %s @%d nint=%d nfrac=%d freqsel=%#02x vcocap=%d band=%s",
			req.Module, req.Timestamp, req.Nint, req.Nfrac, req.Freqsel, req.Vcocap, req.Band)
	}
	raw, err := d.exchange("retune", f)
	if err != nil {
		return RetuneResponse{}, err
	}
	resp, err := DecodeRetuneResponse(raw)
	if err != nil {
		return resp, fmt.Errorf("nios retune: %w", err)
	}
	if resp.Valid {
		d.logf("retune took %d ticks, vcocap=%d", resp.Duration, resp.Vcocap)
	}
	if !resp.Success {
		sentinel := ErrRetuneQueueFull
		if req.Timestamp == RetuneNow {
			sentinel = ErrHardwareFailure
		}
		return resp, &FailureError{Op: "retune", Request: f, Response: raw, Err: sentinel}
	}
	return resp, nil
}

// ClearRetuneQueue discards every scheduled retune of a module
func (d *Device) ClearRetuneQueue(m Module) error {
	_, err := d.Retune(RetuneRequest{Module: m, Timestamp: RetuneClearQueue})
	return err
}

// Retune2 sends a fast-lock profile retune request
func (d *Device) Retune2(req Retune2Request) (Retune2Response, error) {
	f, err := req.Encode()
	if err != nil {
		return Retune2Response{}, err
	}
	raw, err := d.exchange("retune2", f)
	if err != nil {
		return Retune2Response{}, err
	}
	resp, err := DecodeRetune2Response(raw)
	if err != nil {
		return resp, fmt.Errorf("nios retune2: %w", err)
	}
	if !resp.Success {
		sentinel := ErrRetuneQueueFull
		if req.Timestamp == RetuneNow {
			sentinel = ErrHardwareFailure
		}
		return resp, &FailureError{Op: "retune2", Request: f, Response: raw, Err: sentinel}
	}
	return resp, nil
}

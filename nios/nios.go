/*
Package nios implements the 16-byte command protocol spoken between the host
and the NIOS II soft CPU inside the bladeRF FPGA.

Every transaction is one request frame and one response frame, each exactly
FrameLen bytes.  Generic frames carry a target id, a flags byte, an address
and a data word whose widths are fixed by the frame's magic byte:

	0      magic
	1      target id
	2      flags (bit 0 write, bit 1 success; success is only set by the device)
	3      reserved, 0
	4..    address, little endian, W bytes
	4+W..  data, little endian, D bytes
	rest   zero padding

Two further layouts, Retune and Retune2, schedule PLL retunes on the FPGA.

The package does no I/O of its own; a Device issues frames over a Transport
supplied by the caller, for example package usb or comm.
*/
package nios

import (
	"errors"
	"fmt"
)

// FrameLen is the size of every request and response
const FrameLen = 16

// Magic bytes identifying the frame layout
const (
	Magic8x8     byte = 0x41
	Magic8x16    byte = 0x42
	Magic8x32    byte = 0x43
	Magic8x64    byte = 0x44
	Magic16x64   byte = 0x45
	Magic32x32   byte = 0x4B
	MagicLegacy  byte = 0x4E
	MagicRetune  byte = 0x54
	MagicRetune2 byte = 0x55
)

// Flag bits in byte 2 of generic frames
const (
	FlagRead    byte = 0
	FlagWrite   byte = 1 << 0
	FlagSuccess byte = 1 << 1
)

// 8x8 targets
const (
	Target8x8LMS6        byte = 0x00
	Target8x8SI5338      byte = 0x01
	Target8x8VCTCXOTamer byte = 0x02
	Target8x8TXTrigger   byte = 0x03
	Target8x8RXTrigger   byte = 0x04
)

// 8x16 targets
const (
	Target8x16VCTCXODAC byte = 0x00
	Target8x16IQCorr    byte = 0x01
	Target8x16AGCCorr   byte = 0x02
	Target8x16AD56X1DAC byte = 0x03
	Target8x16INA219    byte = 0x04
)

// 8x16 IQ correction addresses
const (
	Addr8x16IQCorrRXGain  byte = 0x00
	Addr8x16IQCorrRXPhase byte = 0x01
	Addr8x16IQCorrTXGain  byte = 0x02
	Addr8x16IQCorrTXPhase byte = 0x03
)

// 8x32 targets
const (
	Target8x32Version  byte = 0x00
	Target8x32Control  byte = 0x01
	Target8x32ADF4351  byte = 0x02
	Target8x32RFFECSR  byte = 0x03
	Target8x32ADF400X  byte = 0x04
	Target8x32Fastlock byte = 0x05
)

// 8x64 targets and timestamp sub-addresses
const (
	Target8x64Timestamp byte = 0x00
	Addr8x64TimestampRX byte = 0x00
	Addr8x64TimestampTX byte = 0x01
)

// 16x64 targets
const (
	Target16x64AD9361 byte = 0x00
	Target16x64RFIC   byte = 0x01
)

// 32x32 targets
const (
	Target32x32Exp    byte = 0x00
	Target32x32ExpDir byte = 0x01
	Target32x32ADIAXI byte = 0x02
	Target32x32WBMstr byte = 0x03
)

var (
	// ErrBadFrame is generated when a frame violates the layout rules,
	// e.g. wrong magic, nonzero reserved byte or padding
	ErrBadFrame = errors.New("malformed NIOS frame")

	// ErrOutOfRange is generated when a field value does not fit its bit width
	ErrOutOfRange = errors.New("value out of range for field")

	// ErrHardwareFailure is generated when the device clears the success bit
	ErrHardwareFailure = errors.New("device reported failure")

	// ErrRetuneQueueFull is generated when a scheduled retune is refused
	ErrRetuneQueueFull = errors.New("FPGA retune queue is full")
)

// FailureError is a hardware-reported failure with the frames involved
type FailureError struct {
	Op       string
	Request  Frame
	Response Frame
	Err      error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("nios %s: %v (request %s response %s)", e.Op, e.Err, e.Request, e.Response)
}

// Unwrap returns the sentinel the failure classifies as
func (e *FailureError) Unwrap() error {
	return e.Err
}

// Module selects the RX or TX half of the board
type Module uint8

const (
	// ModuleRX is the receive module, channel RX(0)
	ModuleRX Module = 0

	// ModuleTX is the transmit module, channel TX(0)
	ModuleTX Module = 1
)

func (m Module) String() string {
	if m == ModuleTX {
		return "tx"
	}
	return "rx"
}

// IsTX returns true if the module is a transmit module
func (m Module) IsTX() bool {
	return m&1 == 1
}

// ChannelRX returns the module value of receive channel n
func ChannelRX(n uint8) Module {
	return Module(n << 1)
}

// ChannelTX returns the module value of transmit channel n
func ChannelTX(n uint8) Module {
	return Module(n<<1 | 1)
}

// ParseModule converts "rx" or "tx" (any case) to a Module
func ParseModule(s string) (Module, error) {
	switch s {
	case "rx", "RX", "Rx":
		return ModuleRX, nil
	case "tx", "TX", "Tx":
		return ModuleTX, nil
	}
	return 0, fmt.Errorf("unknown module %q, must be rx or tx", s)
}

package nios

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

var dataOrder = binary.LittleEndian

// Frame is one request or response
type Frame [FrameLen]byte

// Magic returns byte 0
func (f Frame) Magic() byte { return f[0] }

// Target returns the target id of a generic frame
func (f Frame) Target() byte { return f[1] }

// Flags returns the flags byte of a generic frame
func (f Frame) Flags() byte { return f[2] }

// IsWrite is true if the write flag is set
func (f Frame) IsWrite() bool { return f[2]&FlagWrite != 0 }

// IsSuccess reads the success flag.  It is only meaningful on responses.
func (f Frame) IsSuccess() bool { return f[2]&FlagSuccess != 0 }

func (f Frame) String() string {
	return hex.EncodeToString(f[:])
}

// FrameFromBytes copies b into a Frame.  b must be exactly FrameLen long;
// short reads are a transport problem and are not padded here.
func FrameFromBytes(b []byte) (Frame, error) {
	var f Frame
	if len(b) != FrameLen {
		return f, fmt.Errorf("%w: got %d bytes, need %d", ErrBadFrame, len(b), FrameLen)
	}
	copy(f[:], b)
	return f, nil
}

// Codec encodes generic frames for one (address width, data width) pair.
// The zero value is not usable; use NewCodec or one of the predeclared codecs.
type Codec struct {
	addrWidth int
	dataWidth int
	magic     byte
}

// the supported width pairs and their magic bytes
var widthMagic = map[[2]int]byte{
	{1, 1}: Magic8x8,
	{1, 2}: Magic8x16,
	{1, 4}: Magic8x32,
	{1, 8}: Magic8x64,
	{2, 8}: Magic16x64,
	{4, 4}: Magic32x32,
}

// NewCodec returns the codec for addresses of addrWidth bytes and data of
// dataWidth bytes.  It panics for width pairs the firmware does not speak.
func NewCodec(addrWidth, dataWidth int) Codec {
	magic, ok := widthMagic[[2]int{addrWidth, dataWidth}]
	if !ok {
		panic(fmt.Sprintf("nios: unsupported frame widths %dx%d bytes", addrWidth, dataWidth))
	}
	return Codec{addrWidth: addrWidth, dataWidth: dataWidth, magic: magic}
}

var (
	Codec8x8   = NewCodec(1, 1)
	Codec8x16  = NewCodec(1, 2)
	Codec8x32  = NewCodec(1, 4)
	Codec8x64  = NewCodec(1, 8)
	Codec16x64 = NewCodec(2, 8)
	Codec32x32 = NewCodec(4, 4)
)

// Magic returns the discriminator for this width pair
func (c Codec) Magic() byte { return c.magic }

// AddrWidth is the address width in bytes
func (c Codec) AddrWidth() int { return c.addrWidth }

// DataWidth is the data width in bytes
func (c Codec) DataWidth() int { return c.dataWidth }

func (c Codec) String() string {
	return fmt.Sprintf("%dx%d", c.addrWidth*8, c.dataWidth*8)
}

// Check returns ErrOutOfRange when addr or data is wider than its field
func (c Codec) Check(addr, data uint64) error {
	if c.addrWidth < 8 && addr>>(8*uint(c.addrWidth)) != 0 {
		return fmt.Errorf("%w: %s address %#x", ErrOutOfRange, c, addr)
	}
	if c.dataWidth < 8 && data>>(8*uint(c.dataWidth)) != 0 {
		return fmt.Errorf("%w: %s data %#x", ErrOutOfRange, c, data)
	}
	return nil
}

// Encode builds a frame.  addr and data are truncated to their widths;
// callers that cannot guarantee the widths use Check first.
func (c Codec) Encode(target, flags byte, addr, data uint64) Frame {
	var f Frame
	f[0] = c.magic
	f[1] = target
	f[2] = flags
	f[3] = 0
	putLE(f[4:4+c.addrWidth], addr)
	putLE(f[4+c.addrWidth:4+c.addrWidth+c.dataWidth], data)
	return f
}

// Request builds a read or write request
func (c Codec) Request(target byte, write bool, addr, data uint64) Frame {
	flags := FlagRead
	if write {
		flags = FlagWrite
	}
	return c.Encode(target, flags, addr, data)
}

// Decode splits a frame into its fields.  The magic byte is not consulted;
// use Validate when the frame came from the wire.
func (c Codec) Decode(f Frame) (target, flags byte, addr, data uint64) {
	return f[1], f[2], c.Addr(f), c.Data(f)
}

// Addr returns the address field
func (c Codec) Addr(f Frame) uint64 {
	return getLE(f[4 : 4+c.addrWidth])
}

// Data returns the data field
func (c Codec) Data(f Frame) uint64 {
	off := 4 + c.addrWidth
	return getLE(f[off : off+c.dataWidth])
}

// Validate checks the magic byte, the reserved byte and the padding
func (c Codec) Validate(f Frame) error {
	if f[0] != c.magic {
		return fmt.Errorf("%w: magic %#02x, expected %#02x for %s", ErrBadFrame, f[0], c.magic, c)
	}
	if f[3] != 0 {
		return fmt.Errorf("%w: reserved byte is %#02x", ErrBadFrame, f[3])
	}
	for i := 4 + c.addrWidth + c.dataWidth; i < FrameLen; i++ {
		if f[i] != 0 {
			return fmt.Errorf("%w: nonzero padding at byte %d", ErrBadFrame, i)
		}
	}
	return nil
}

// CodecForMagic returns the generic codec using magic, if any
func CodecForMagic(magic byte) (Codec, bool) {
	for widths, m := range widthMagic {
		if m == magic {
			return NewCodec(widths[0], widths[1]), true
		}
	}
	return Codec{}, false
}

func putLE(b []byte, v uint64) {
	for i := range b {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

func getLE(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

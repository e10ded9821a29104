package comm

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/snksoft/crc"

	"github.jpl.nasa.gov/bdube/bladerf/nios"
)

// TelegramLen is the length of a frame plus its CRC
const TelegramLen = nios.FrameLen + 2

var crcTable = crc.NewTable(crc.XMODEM)

// crcHelper computes the CRC of buf
func crcHelper(buf []byte) uint16 {
	crcUint := crcTable.InitCrc()
	crcUint = crcTable.UpdateCrc(crcUint, buf)
	return crcTable.CRC16(crcUint)
}

// EncodeTelegram appends the CRC to a frame
func EncodeTelegram(f nios.Frame) [TelegramLen]byte {
	var out [TelegramLen]byte
	copy(out[:], f[:])
	binary.BigEndian.PutUint16(out[nios.FrameLen:], crcHelper(f[:]))
	return out
}

// DecodeTelegram checks the CRC of a telegram and returns its frame
func DecodeTelegram(b []byte) (nios.Frame, error) {
	if len(b) != TelegramLen {
		return nios.Frame{}, fmt.Errorf("%w: telegram of %d bytes, need %d", nios.ErrBadFrame, len(b), TelegramLen)
	}
	want := binary.BigEndian.Uint16(b[nios.FrameLen:])
	if got := crcHelper(b[:nios.FrameLen]); got != want {
		return nios.Frame{}, fmt.Errorf("%w: got %04X, telegram carries %04X", ErrCRC, got, want)
	}
	return nios.FrameFromBytes(b[:nios.FrameLen])
}

// WriteTelegram writes f to w as a telegram
func WriteTelegram(w io.Writer, f nios.Frame) error {
	t := EncodeTelegram(f)
	_, err := w.Write(t[:])
	return err
}

// ReadTelegram reads one telegram from r
func ReadTelegram(r io.Reader) (nios.Frame, error) {
	buf := make([]byte, TelegramLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nios.Frame{}, err
	}
	return DecodeTelegram(buf)
}

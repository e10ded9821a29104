package nios

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

func ExampleCodec_Encode() {
	f := Codec8x8.Encode(Target8x8LMS6, FlagWrite, 0x01, 0x64)
	fmt.Println(f)
	// Output: 41000100016400000000000000000000
}

func TestCodecMagicByWidth(t *testing.T) {
	cases := []struct {
		w, d  int
		magic byte
	}{
		{1, 1, 0x41},
		{1, 2, 0x42},
		{1, 4, 0x43},
		{1, 8, 0x44},
		{2, 8, 0x45},
		{4, 4, 0x4B},
	}
	for _, c := range cases {
		if m := NewCodec(c.w, c.d).Magic(); m != c.magic {
			t.Errorf("%dx%d: expected magic %#02x got %#02x", c.w, c.d, c.magic, m)
		}
	}
}

func TestNewCodecPanicsOnUnsupportedWidths(t *testing.T) {
	for _, wd := range [][2]int{{2, 2}, {1, 3}, {8, 8}, {0, 1}} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("expected NewCodec(%d, %d) to panic", wd[0], wd[1])
				}
			}()
			NewCodec(wd[0], wd[1])
		}()
	}
}

func TestCodecRoundTrip(t *testing.T) {
	codecs := []Codec{Codec8x8, Codec8x16, Codec8x32, Codec8x64, Codec16x64, Codec32x32}
	for _, c := range codecs {
		addrMax := uint64(1)<<(8*uint(c.AddrWidth())) - 1
		dataMax := ^uint64(0) >> (64 - 8*uint(c.DataWidth()))
		for _, v := range []struct{ addr, data uint64 }{{0, 0}, {addrMax, dataMax}, {addrMax / 3, dataMax / 7}} {
			f := c.Encode(0x04, FlagWrite|FlagSuccess, v.addr, v.data)
			target, flags, addr, data := c.Decode(f)
			if target != 0x04 || flags != FlagWrite|FlagSuccess || addr != v.addr || data != v.data {
				t.Errorf("%s: expected (4, 3, %#x, %#x) got (%d, %d, %#x, %#x)", c, v.addr, v.data, target, flags, addr, data)
			}
			if err := c.Validate(f); err != nil {
				t.Errorf("%s: encoded frame failed validation: %v", c, err)
			}
			for i := 4 + c.AddrWidth() + c.DataWidth(); i < FrameLen; i++ {
				if f[i] != 0 {
					t.Errorf("%s: expected zero padding at %d, got %#02x", c, i, f[i])
				}
			}
		}
	}
}

func TestCodecLittleEndian(t *testing.T) {
	f := Codec32x32.Encode(Target32x32Exp, FlagRead, 0x11223344, 0xAABBCCDD)
	expected := []byte{0x4B, 0x00, 0x00, 0x00, 0x44, 0x33, 0x22, 0x11, 0xDD, 0xCC, 0xBB, 0xAA, 0, 0, 0, 0}
	if !bytes.Equal(f[:], expected) {
		t.Errorf("expected % x got % x", expected, f[:])
	}
}

func TestFrameFlags(t *testing.T) {
	f := Codec8x8.Request(Target8x8SI5338, true, 1, 2)
	if !f.IsWrite() {
		t.Error("expected write flag to be set")
	}
	if f.IsSuccess() {
		t.Error("request must not carry the success flag")
	}
	f = Codec8x8.Request(Target8x8SI5338, false, 1, 2)
	if f.IsWrite() {
		t.Error("expected read request to clear the write flag")
	}
}

func TestValidateRejects(t *testing.T) {
	good := Codec8x16.Encode(1, 0, 2, 3)

	wrongMagic := good
	wrongMagic[0] = Magic8x8
	reserved := good
	reserved[3] = 1
	padding := good
	padding[15] = 0xFF

	for name, f := range map[string]Frame{"magic": wrongMagic, "reserved": reserved, "padding": padding} {
		if err := Codec8x16.Validate(f); !errors.Is(err, ErrBadFrame) {
			t.Errorf("%s: expected ErrBadFrame got %v", name, err)
		}
	}
}

func TestCodecCheck(t *testing.T) {
	cases := []struct {
		c          Codec
		addr, data uint64
		ok         bool
	}{
		{Codec8x8, 0xFF, 0xFF, true},
		{Codec8x8, 0x100, 0, false},
		{Codec8x8, 0, 0x100, false},
		{Codec8x16, 0, 0x1FFFF, false},
		{Codec8x64, 0xFF, ^uint64(0), true},
		{Codec32x32, 0xFFFFFFFF, 0x100000000, false},
	}
	for _, tc := range cases {
		err := tc.c.Check(tc.addr, tc.data)
		if tc.ok && err != nil {
			t.Errorf("%s (%#x, %#x): expected no error got %v", tc.c, tc.addr, tc.data, err)
		}
		if !tc.ok && !errors.Is(err, ErrOutOfRange) {
			t.Errorf("%s (%#x, %#x): expected ErrOutOfRange got %v", tc.c, tc.addr, tc.data, err)
		}
	}
}

func TestFrameFromBytesRejectsShort(t *testing.T) {
	if _, err := FrameFromBytes(make([]byte, 15)); !errors.Is(err, ErrBadFrame) {
		t.Errorf("expected ErrBadFrame for a short read, got %v", err)
	}
}

func TestCodecForMagic(t *testing.T) {
	c, ok := CodecForMagic(Magic16x64)
	if !ok || c.AddrWidth() != 2 || c.DataWidth() != 8 {
		t.Errorf("expected 16x64 codec, got %s (%v)", c, ok)
	}
	if _, ok = CodecForMagic(MagicRetune); ok {
		t.Error("retune magic must not map to a generic codec")
	}
}

func BenchmarkEncode8x32(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = Codec8x32.Encode(Target8x32Control, FlagWrite, 0, uint64(i))
	}
}

func BenchmarkDecode8x32(b *testing.B) {
	f := Codec8x32.Encode(Target8x32Control, FlagWrite, 0, 0xDEADBEEF)
	for i := 0; i < b.N; i++ {
		_, _, _, _ = Codec8x32.Decode(f)
	}
}

package nios

import (
	"errors"
	"testing"
)

// regFile answers generic frames from a map keyed by (magic, target, addr)
type regFile struct {
	regs    map[[3]uint64]uint64
	fail    bool
	retunes []RetuneRequest
	queue   int
}

func newRegFile() *regFile {
	return &regFile{regs: map[[3]uint64]uint64{}}
}

func (r *regFile) Exchange(req Frame) (Frame, error) {
	if req.Magic() == MagicRetune {
		rr, err := DecodeRetuneRequest(req)
		if err != nil {
			return Frame{}, err
		}
		r.retunes = append(r.retunes, rr)
		ok := rr.Timestamp == RetuneNow || rr.Timestamp == RetuneClearQueue || len(r.retunes) <= r.queue
		return RetuneResponse{Vcocap: rr.Vcocap, Valid: ok, Success: ok && !r.fail}.Encode(), nil
	}
	c, ok := CodecForMagic(req.Magic())
	if !ok {
		return Frame{}, ErrBadFrame
	}
	target, flags, addr, data := c.Decode(req)
	key := [3]uint64{uint64(req.Magic()), uint64(target), addr}
	if flags&FlagWrite != 0 {
		r.regs[key] = data
	} else {
		data = r.regs[key]
	}
	if !r.fail {
		flags |= FlagSuccess
	}
	return c.Encode(target, flags, addr, data), nil
}

func TestDeviceReadWrite(t *testing.T) {
	rf := newRegFile()
	d := NewDevice(rf)
	if err := d.Write8x8(Target8x8LMS6, 0x09, 0x05); err != nil {
		t.Fatal(err)
	}
	v, err := d.Read8x8(Target8x8LMS6, 0x09)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x05 {
		t.Errorf("expected 0x05 got %#02x", v)
	}
}

func TestDeviceFailureBit(t *testing.T) {
	rf := newRegFile()
	rf.fail = true
	d := NewDevice(rf)
	err := d.ConfigWrite(0x57)
	if !errors.Is(err, ErrHardwareFailure) {
		t.Fatalf("expected ErrHardwareFailure got %v", err)
	}
	var fe *FailureError
	if !errors.As(err, &fe) || fe.Request.Magic() != Magic8x32 {
		t.Errorf("expected a FailureError carrying the 8x32 request, got %v", err)
	}
}

func TestDeviceTransportError(t *testing.T) {
	boom := errors.New("usb stall")
	d := NewDevice(TransportFunc(func(Frame) (Frame, error) { return Frame{}, boom }))
	if _, err := d.FPGAVersion(); !errors.Is(err, boom) {
		t.Errorf("expected transport error to propagate, got %v", err)
	}
}

func TestDeviceRejectsWideValues(t *testing.T) {
	sent := 0
	d := NewDevice(TransportFunc(func(req Frame) (Frame, error) {
		sent++
		return req, nil
	}))
	if err := d.Write(Codec8x16, Target8x16IQCorr, 0, 0x10000); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange got %v", err)
	}
	if _, err := d.Read(Codec8x8, Target8x8LMS6, 0x100); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange got %v", err)
	}
	if sent != 0 {
		t.Errorf("expected nothing sent got %d frames", sent)
	}
}

func TestDeviceRejectsWrongTarget(t *testing.T) {
	d := NewDevice(TransportFunc(func(req Frame) (Frame, error) {
		resp := req
		resp[1]++
		resp[2] |= FlagSuccess
		return resp, nil
	}))
	if _, err := d.Read8x8(Target8x8LMS6, 0); !errors.Is(err, ErrBadFrame) {
		t.Errorf("expected ErrBadFrame got %v", err)
	}
}

func TestDecodeVersion(t *testing.T) {
	v := DecodeVersion(0x00070100)
	if v != (Version{Major: 0, Minor: 7, Patch: 1}) {
		t.Errorf("expected v0.7.1 got %s", v)
	}
}

func TestExpansionGPIOUsesMaskAsAddress(t *testing.T) {
	var seen Frame
	d := NewDevice(TransportFunc(func(req Frame) (Frame, error) {
		seen = req
		req[2] |= FlagSuccess
		return req, nil
	}))
	if err := d.ExpansionGPIOWrite(0x0000FF00, 0x00001200); err != nil {
		t.Fatal(err)
	}
	_, _, addr, data := Codec32x32.Decode(seen)
	if seen.Magic() != Magic32x32 || addr != 0xFF00 || data != 0x1200 {
		t.Errorf("unexpected frame %s", seen)
	}
}

func TestIQCorrectionAddresses(t *testing.T) {
	rf := newRegFile()
	d := NewDevice(rf)
	if err := d.SetIQPhaseCorrection(ModuleTX, -42); err != nil {
		t.Fatal(err)
	}
	key := [3]uint64{uint64(Magic8x16), uint64(Target8x16IQCorr), uint64(Addr8x16IQCorrTXPhase)}
	if int16(uint16(rf.regs[key])) != -42 {
		t.Errorf("expected -42 stored at TX phase, got %d", int16(uint16(rf.regs[key])))
	}
	v, err := d.IQPhaseCorrection(ModuleTX)
	if err != nil || v != -42 {
		t.Errorf("expected -42 got %d (%v)", v, err)
	}
}

func TestRetuneFailureClassification(t *testing.T) {
	rf := newRegFile()
	d := NewDevice(rf)
	rf.queue = 0

	_, err := d.Retune(RetuneRequest{Module: ModuleRX, Timestamp: 1000})
	if !errors.Is(err, ErrRetuneQueueFull) {
		t.Errorf("expected ErrRetuneQueueFull for a scheduled retune, got %v", err)
	}

	rf.fail = true
	_, err = d.Retune(RetuneRequest{Module: ModuleRX, Timestamp: RetuneNow})
	if !errors.Is(err, ErrHardwareFailure) {
		t.Errorf("expected ErrHardwareFailure for an immediate retune, got %v", err)
	}
}

func TestClearRetuneQueueZeroesFields(t *testing.T) {
	rf := newRegFile()
	d := NewDevice(rf)
	if err := d.ClearRetuneQueue(ModuleTX); err != nil {
		t.Fatal(err)
	}
	got := rf.retunes[len(rf.retunes)-1]
	expected := RetuneRequest{Module: ModuleTX, Timestamp: RetuneClearQueue}
	if got != expected {
		t.Errorf("expected %+v got %+v", expected, got)
	}
}

func TestParseModule(t *testing.T) {
	if m, err := ParseModule("tx"); err != nil || m != ModuleTX {
		t.Errorf("expected tx, got %v %v", m, err)
	}
	if _, err := ParseModule("both"); err == nil {
		t.Error("expected an error for an unknown module")
	}
	if ChannelTX(1) != 3 || ChannelRX(1) != 2 {
		t.Error("channel numbering must interleave rx and tx")
	}
}

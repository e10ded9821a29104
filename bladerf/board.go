/*
Package bladerf ties the NIOS command channel, the LMS6002D transceiver
and the Si5338 clock generator together into one board.

A Board serializes every operation, so a tuning sequence is never
interleaved with other register traffic.
*/
package bladerf

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.jpl.nasa.gov/bdube/bladerf/comm"
	"github.jpl.nasa.gov/bdube/bladerf/lms6002d"
	"github.jpl.nasa.gov/bdube/bladerf/nios"
	"github.jpl.nasa.gov/bdube/bladerf/si5338"
	"github.jpl.nasa.gov/bdube/bladerf/usb"
	"github.jpl.nasa.gov/bdube/bladerf/util"
)

// TuningMode selects who runs the tuning algorithm
type TuningMode int

const (
	// TuningModeHost programs the LMS6002D from the host, register by register
	TuningModeHost TuningMode = iota

	// TuningModeFPGA hands the tuning words to the FPGA as an immediate retune
	TuningModeFPGA
)

func (t TuningMode) String() string {
	if t == TuningModeFPGA {
		return "fpga"
	}
	return "host"
}

// ParseTuningMode converts "host" or "fpga" to a TuningMode
func ParseTuningMode(s string) (TuningMode, error) {
	switch strings.ToLower(s) {
	case "", "host":
		return TuningModeHost, nil
	case "fpga":
		return TuningModeFPGA, nil
	}
	return TuningModeHost, fmt.Errorf("unknown tuning mode %q, must be host or fpga", s)
}

// backends accepted by Open
const (
	BackendUSB    = "usb"
	BackendRemote = "remote"
	BackendSerial = "serial"
	BackendMock   = "mock"
)

// band select GPIO fields in the config register
const (
	bandShiftTX     = 3
	bandShiftRX     = 5
	bandGPIOLow     = 2
	bandGPIOHigh    = 1
	bandGPIOMaskRaw = 3
)

// ErrUnknownBackend is generated when Config.Backend names no transport
var ErrUnknownBackend = errors.New("bladerf: unknown backend")

// Config selects and configures the transport of a Board
type Config struct {
	// Backend is one of usb, remote, serial or mock
	Backend string

	// DeviceAddr is the bridge host:port for remote, the device path for serial
	DeviceAddr string

	// Baud is the serial line rate
	Baud int

	// Timeout bounds each exchange, zero uses the transport default
	Timeout time.Duration

	TuningMode TuningMode
}

// Board is one bladeRF
type Board struct {
	mu sync.Mutex

	Nios  *nios.Device
	LMS   *lms6002d.LMS
	Clock *si5338.Si5338

	Mode TuningMode

	// Logger, when not nil, receives board level events
	Logger *log.Logger

	closer io.Closer
}

// New builds a Board over t.  closer may be nil.
// Exchanges on t are serialized.
func New(t nios.Transport, closer io.Closer, mode TuningMode, logger *log.Logger) *Board {
	dev := &nios.Device{Transport: comm.NewSerial(t), Logger: logger}
	lms := lms6002d.New(nios.LMSRegisters{Device: dev}, dev)
	lms.Logger = logger
	return &Board{
		Nios:   dev,
		LMS:    lms,
		Clock:  si5338.New(nios.SI5338Registers{Device: dev}),
		Mode:   mode,
		Logger: logger,
		closer: closer,
	}
}

// Open connects to a board as described by cfg
func Open(cfg Config, logger *log.Logger) (*Board, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendUSB, "":
		d, err := usb.Open(5*time.Second, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Timeout > 0 {
			d.Timeout = cfg.Timeout
		}
		return New(d, d, cfg.TuningMode, logger), nil
	case BackendRemote, BackendSerial:
		rt := comm.NewRemoteTransport(cfg.DeviceAddr, strings.EqualFold(cfg.Backend, BackendSerial))
		if cfg.Baud > 0 {
			rt.Baud = cfg.Baud
		}
		if cfg.Timeout > 0 {
			rt.Timeout = cfg.Timeout
		}
		return New(rt, rt, cfg.TuningMode, logger), nil
	case BackendMock:
		return New(NewMock(), nil, cfg.TuningMode, logger), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
}

func (b *Board) logf(format string, args ...interface{}) {
	if b.Logger != nil {
		b.Logger.Printf(format, args...)
	}
}

// Close releases the transport
func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// Initialize resets the transceiver, configures its charge pumps and sets
// both modules to a 1 MHz sample rate at 2.447 GHz
func (b *Board) Initialize() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.LMS.SoftReset(); err != nil {
		return fmt.Errorf("resetting LMS6002D: %w", err)
	}
	for _, m := range []nios.Module{nios.ModuleRX, nios.ModuleTX} {
		if err := b.LMS.ConfigChargePumps(m); err != nil {
			return err
		}
		if _, err := b.Clock.SetSampleRate(m, 1000000); err != nil {
			return err
		}
		if err := b.setFrequency(m, 2447000000); err != nil {
			return err
		}
	}
	return nil
}

// BandGPIO returns gpio with the band select field of module m set
func BandGPIO(gpio uint32, m nios.Module, band nios.Band) uint32 {
	shift := uint(bandShiftRX)
	if m.IsTX() {
		shift = bandShiftTX
	}
	val := uint32(bandGPIOHigh)
	if band == nios.BandLow {
		val = bandGPIOLow
	}
	return util.MaskedUpdate32(gpio, bandGPIOMaskRaw<<shift, val<<shift)
}

// selectBand switches the LNA or PA path and the board's RF switches
func (b *Board) selectBand(m nios.Module, band nios.Band) error {
	if err := b.LMS.SelectBand(m, band); err != nil {
		return err
	}
	gpio, err := b.Nios.ConfigRead()
	if err != nil {
		return err
	}
	return b.Nios.ConfigWrite(BandGPIO(gpio, m, band))
}

func (b *Board) setFrequency(m nios.Module, hz uint64) error {
	if b.Mode == TuningModeFPGA {
		_, err := b.LMS.ScheduleRetune(m, nios.RetuneNow, hz, nil)
		return err
	}
	f, err := b.LMS.SetFrequency(m, hz)
	if err != nil {
		return err
	}
	band := nios.BandHigh
	if f.LowBand() {
		band = nios.BandLow
	}
	if err = b.selectBand(m, band); err != nil {
		return err
	}
	b.logf("%s tuned to %d Hz (%s, vcocap %d)", m, hz, f, f.VcocapResult)
	return nil
}

// SetFrequency tunes module m to hz
func (b *Board) SetFrequency(m nios.Module, hz uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.setFrequency(m, hz)
}

// TuneHost tunes module m from the host regardless of Mode and returns the
// parameters used
func (b *Board) TuneHost(m nios.Module, hz uint64) (lms6002d.LmsFreq, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, err := b.LMS.SetFrequency(m, hz)
	if err != nil {
		return f, err
	}
	band := nios.BandHigh
	if f.LowBand() {
		band = nios.BandLow
	}
	return f, b.selectBand(m, band)
}

// Frequency reads back the frequency module m is tuned to
func (b *Board) Frequency(m nios.Module) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.LMS.FrequencyHz(m)
}

// FrequencyRange is the tunable range in Hz
func (b *Board) FrequencyRange() (lo, hi uint64) {
	return lms6002d.FrequencyMin, lms6002d.FrequencyMax
}

// SetSampleRate sets the sample rate of module m and returns the rate produced
func (b *Board) SetSampleRate(m nios.Module, rate uint32) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Clock.SetSampleRate(m, rate)
}

// SampleRate reads back the sample rate of module m
func (b *Board) SampleRate(m nios.Module) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Clock.SampleRate(m)
}

// SetSMBFrequency sets the SMB clock output and returns the frequency produced
func (b *Board) SetSMBFrequency(hz uint32) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Clock.SetSMBFreq(hz)
}

// SMBFrequency reads back the SMB clock output
func (b *Board) SMBFrequency() (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Clock.SMBFreq()
}

// FPGAVersion reads the FPGA version
func (b *Board) FPGAVersion() (nios.Version, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Nios.FPGAVersion()
}

// Timestamp reads the sample counter of module m
func (b *Board) Timestamp(m nios.Module) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Nios.Timestamp(m)
}

// ScheduleRetune queues a retune of module m at timestamp
func (b *Board) ScheduleRetune(m nios.Module, timestamp, hz uint64, q *lms6002d.QuickTune) (nios.RetuneResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.LMS.ScheduleRetune(m, timestamp, hz, q)
}

// CancelScheduledRetunes clears the retune queue of module m
func (b *Board) CancelScheduledRetunes(m nios.Module) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.LMS.CancelScheduledRetunes(m)
}

// QuickTune snapshots the current tuning of module m
func (b *Board) QuickTune(m nios.Module) (lms6002d.QuickTune, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.LMS.GetQuickTune(m)
}

// EnableModule powers the RF front end of module m on or off
func (b *Board) EnableModule(m nios.Module, enable bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.LMS.EnableRFFE(m, enable)
}

// ModuleEnabled reports whether the RF front end of module m is powered
func (b *Board) ModuleEnabled(m nios.Module) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.LMS.RFFEEnabled(m)
}

// SetTuningMode selects host or FPGA tuning by name
func (b *Board) SetTuningMode(s string) error {
	mode, err := ParseTuningMode(s)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Mode = mode
	b.logf("tuning mode set to %s", mode)
	return nil
}

// TuningModeName returns the name of the active tuning mode
func (b *Board) TuningModeName() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Mode.String(), nil
}

// Transport returns a transport onto the board's own.  Each exchange holds
// the board lock, so frames sent through it never land inside a tuning
// sequence.  Hand it to a comm.Bridge to share the board.
func (b *Board) Transport() nios.Transport {
	return boardTransport{b}
}

type boardTransport struct{ b *Board }

func (t boardTransport) Exchange(req nios.Frame) (nios.Frame, error) {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	return t.b.Nios.Transport.Exchange(req)
}

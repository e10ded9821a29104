// Package sdr exposes software defined radios over HTTP.
//
// Routes that act on one half of the radio are bound once per module,
// e.g. /frequency/rx and /frequency/tx.
package sdr

import (
	"encoding/json"
	"errors"
	"fmt"
	"go/types"
	"math"
	"net/http"

	"github.jpl.nasa.gov/bdube/bladerf/generichttp"
	"github.jpl.nasa.gov/bdube/bladerf/lms6002d"
	"github.jpl.nasa.gov/bdube/bladerf/nios"
	"github.jpl.nasa.gov/bdube/bladerf/server"
)

// Modules are the modules bound by the per-module routes
var Modules = []nios.Module{nios.ModuleRX, nios.ModuleTX}

// Tuner is a radio with a tunable LO per module
type Tuner interface {
	// SetFrequency tunes module m to hz
	SetFrequency(m nios.Module, hz uint64) error

	// Frequency returns the frequency module m is tuned to
	Frequency(m nios.Module) (uint64, error)

	// FrequencyRange returns the lowest and highest tunable frequency
	FrequencyRange() (lo, hi uint64)
}

// Clocked is a radio with a programmable sample clock and SMB output
type Clocked interface {
	SetSampleRate(m nios.Module, rate uint32) (uint32, error)
	SampleRate(m nios.Module) (uint32, error)
	SetSMBFrequency(hz uint32) (uint32, error)
	SMBFrequency() (uint32, error)
}

// Scheduler is a radio whose FPGA can retune at a sample timestamp
type Scheduler interface {
	Timestamp(m nios.Module) (uint64, error)
	ScheduleRetune(m nios.Module, timestamp, hz uint64, q *lms6002d.QuickTune) (nios.RetuneResponse, error)
	CancelScheduledRetunes(m nios.Module) error
	QuickTune(m nios.Module) (lms6002d.QuickTune, error)
}

// Enabler can power the front end of each module
type Enabler interface {
	EnableModule(m nios.Module, enable bool) error
	ModuleEnabled(m nios.Module) (bool, error)
}

// Versioned reports the version of its FPGA image
type Versioned interface {
	FPGAVersion() (nios.Version, error)
}

// ModeSwitcher can change who runs the tuning algorithm
type ModeSwitcher interface {
	SetTuningMode(string) error
	TuningModeName() (string, error)
}

// Range is the tunable span of a radio, in Hz
type Range struct {
	Min uint64 `json:"min"`
	Max uint64 `json:"max"`
}

// RetuneRequest is the body of a POST to /retune/{module}.
// QuickTune, when present, replaces the frequency calculation.
type RetuneRequest struct {
	Timestamp uint64              `json:"timestamp"`
	Hz        uint64              `json:"hz"`
	QuickTune *lms6002d.QuickTune `json:"quick_tune,omitempty"`
}

// RetuneReply is the response to a POST to /retune/{module}
type RetuneReply struct {
	Success  bool   `json:"success"`
	Valid    bool   `json:"valid"`
	Duration uint64 `json:"duration"`
	Vcocap   uint8  `json:"vcocap"`
}

func path(stem string, m nios.Module) string {
	return fmt.Sprintf("%s/%s", stem, m)
}

// toUint32 rejects values a uint32 register field cannot hold
func toUint32(i int, what string) (uint32, error) {
	if i < 0 || uint64(i) > math.MaxUint32 {
		return 0, fmt.Errorf("%s %d outside [0, %d]", what, i, uint64(math.MaxUint32))
	}
	return uint32(i), nil
}

// toHz rejects negative, non-finite and overlarge frequencies
func toHz(f float64) (uint64, error) {
	if !(f >= 0 && f < 1<<64) {
		return 0, fmt.Errorf("frequency %v is not a representable number of Hz", f)
	}
	return uint64(f), nil
}

// HTTPTuner binds the frequency routes of t to table
func HTTPTuner(t Tuner, table server.RouteTable) {
	for _, m := range Modules {
		m := m
		table[server.Get(path("frequency", m))] = generichttp.GetFloat(func() (float64, error) {
			hz, err := t.Frequency(m)
			return float64(hz), err
		})
		table[server.Post(path("frequency", m))] = generichttp.SetFloat(func(f float64) error {
			hz, err := toHz(f)
			if err != nil {
				return err
			}
			return t.SetFrequency(m, hz)
		})
	}
	table[server.Get("frequency-range")] = generichttp.GetJSON(func() (interface{}, error) {
		lo, hi := t.FrequencyRange()
		return Range{Min: lo, Max: hi}, nil
	})
}

// HTTPClocked binds the sample rate and SMB clock routes of c to table
func HTTPClocked(c Clocked, table server.RouteTable) {
	for _, m := range Modules {
		m := m
		table[server.Get(path("sample-rate", m))] = generichttp.GetInt(func() (int, error) {
			r, err := c.SampleRate(m)
			return int(r), err
		})
		table[server.Post(path("sample-rate", m))] = generichttp.SetInt(func(i int) error {
			rate, err := toUint32(i, "sample rate")
			if err != nil {
				return err
			}
			_, err = c.SetSampleRate(m, rate)
			return err
		})
	}
	table[server.Get("smb-frequency")] = generichttp.GetInt(func() (int, error) {
		hz, err := c.SMBFrequency()
		return int(hz), err
	})
	table[server.Post("smb-frequency")] = generichttp.SetInt(func(i int) error {
		hz, err := toUint32(i, "SMB frequency")
		if err != nil {
			return err
		}
		_, err = c.SetSMBFrequency(hz)
		return err
	})
}

// HTTPScheduler binds the timed retune routes of s to table
func HTTPScheduler(s Scheduler, table server.RouteTable) {
	for _, m := range Modules {
		m := m
		table[server.Get(path("timestamp", m))] = func(w http.ResponseWriter, r *http.Request) {
			ts, err := s.Timestamp(m)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			hp := server.HumanPayload{T: types.Uint64, Uint: ts}
			hp.EncodeAndRespond(w, r)
		}
		table[server.Post(path("retune", m))] = scheduleRetune(s, m)
		table[server.Post(path("retune", m)+"/cancel")] = func(w http.ResponseWriter, r *http.Request) {
			if err := s.CancelScheduledRetunes(m); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		}
		table[server.Get(path("quick-tune", m))] = generichttp.GetJSON(func() (interface{}, error) {
			q, err := s.QuickTune(m)
			return q, err
		})
	}
}

func scheduleRetune(s Scheduler, m nios.Module) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := RetuneRequest{}
		err := json.NewDecoder(r.Body).Decode(&req)
		defer r.Body.Close()
		if err != nil {
			fstr := fmt.Sprintf("error decoding json, should have fields \"timestamp\" and \"hz\", %q", err)
			http.Error(w, fstr, http.StatusBadRequest)
			return
		}
		resp, err := s.ScheduleRetune(m, req.Timestamp, req.Hz, req.QuickTune)
		switch {
		case errors.Is(err, nios.ErrRetuneQueueFull):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		case errors.Is(err, lms6002d.ErrOutOfRange):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		server.RespondJSON(w, RetuneReply{
			Success:  resp.Success,
			Valid:    resp.Valid,
			Duration: resp.Duration,
			Vcocap:   resp.Vcocap,
		})
	}
}

// HTTPEnabler binds the front end power routes of e to table
func HTTPEnabler(e Enabler, table server.RouteTable) {
	for _, m := range Modules {
		m := m
		table[server.Get(path("enable", m))] = generichttp.GetBool(func() (bool, error) {
			return e.ModuleEnabled(m)
		})
		table[server.Post(path("enable", m))] = generichttp.SetBool(func(b bool) error {
			return e.EnableModule(m, b)
		})
	}
}

// HTTPSDR is a type that allows setting up a radio satisfying any combination
// of the interfaces in this package to an HTTP interface
type HTTPSDR struct {
	t Tuner

	RouteTable server.RouteTable
}

// NewHTTPSDR sets up an HTTP interface to a radio
func NewHTTPSDR(t Tuner) HTTPSDR {
	w := HTTPSDR{t: t}
	rt := server.RouteTable{}
	HTTPTuner(t, rt)
	if c, ok := (t).(Clocked); ok {
		HTTPClocked(c, rt)
	}
	if s, ok := (t).(Scheduler); ok {
		HTTPScheduler(s, rt)
	}
	if e, ok := (t).(Enabler); ok {
		HTTPEnabler(e, rt)
	}
	if v, ok := (t).(Versioned); ok {
		rt[server.Get("fpga-version")] = generichttp.GetString(func() (string, error) {
			ver, err := v.FPGAVersion()
			return ver.String(), err
		})
	}
	if ms, ok := (t).(ModeSwitcher); ok {
		rt[server.Get("tuning-mode")] = generichttp.GetString(ms.TuningModeName)
		rt[server.Post("tuning-mode")] = generichttp.SetString(ms.SetTuningMode)
	}
	w.RouteTable = rt
	return w
}

// RT satisfies server.HTTPer
func (h HTTPSDR) RT() server.RouteTable {
	return h.RouteTable
}

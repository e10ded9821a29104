// Command bladerfcal characterizes the LMS6002D VCOCAP search of a bladeRF
// by sweeping the LO and saving the converged tuning words as FITS.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/theckman/yacspin"

	"github.jpl.nasa.gov/bdube/bladerf/bladerf"
	"github.jpl.nasa.gov/bdube/bladerf/fitsx"
	"github.jpl.nasa.gov/bdube/bladerf/nios"
)

// Version is the version number.  Typically injected via ldflags with git build
var Version = "1"

func usage() {
	str := `bladerfcal sweeps the LO of a bladeRF and records the VCOCAP search

Usage:
	bladerfcal sweep [flags]
	bladerfcal version

Run "bladerfcal sweep -h" for the flags of sweep.`
	fmt.Println(str)
}

// parseHz accepts integers or floats in exponent form, e.g. 2.4e9
func parseHz(s string) (uint64, error) {
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return u, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid frequency %q", s)
	}
	return uint64(f), nil
}

type hzFlag uint64

func (h *hzFlag) String() string { return strconv.FormatUint(uint64(*h), 10) }

func (h *hzFlag) Set(s string) error {
	u, err := parseHz(s)
	*h = hzFlag(u)
	return err
}

func sweep(args []string) error {
	var (
		start = hzFlag(300e6)
		stop  = hzFlag(3.8e9)
		step  = hzFlag(10e6)
	)
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	fs.Var(&start, "start", "first frequency, Hz")
	fs.Var(&stop, "stop", "last frequency, Hz")
	fs.Var(&step, "step", "frequency step, Hz")
	module := fs.String("module", "rx", "module to tune, rx or tx")
	out := fs.String("out", "sweep.fits", "output FITS file")
	mock := fs.Bool("mock", false, "use simulated firmware instead of hardware")
	backend := fs.String("backend", bladerf.BackendUSB, "usb, remote or serial")
	addr := fs.String("addr", "", "bridge address or serial port for remote and serial backends")
	fs.Parse(args)

	m, err := nios.ParseModule(*module)
	if err != nil {
		return err
	}
	cfg := bladerf.Config{Backend: *backend, DeviceAddr: *addr, TuningMode: bladerf.TuningModeHost}
	if *mock {
		cfg.Backend = bladerf.BackendMock
	}
	b, err := bladerf.Open(cfg, nil)
	if err != nil {
		return err
	}
	defer b.Close()
	v, err := b.FPGAVersion()
	if err != nil {
		return err
	}

	spinner, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " sweeping " + m.String(),
		SuffixAutoColon:   true,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
	if err != nil {
		return err
	}
	if err = spinner.Start(); err != nil {
		return err
	}
	s, err := Sweep(b, m, uint64(start), uint64(stop), uint64(step), func(i, n int, p fitsx.Point) {
		spinner.Message(fmt.Sprintf("%d/%d %d Hz vcocap %d -> %d", i+1, n, p.Hz, p.Freq.Vcocap, p.Freq.VcocapResult))
	})
	if err != nil {
		spinner.StopFailMessage(err.Error())
		spinner.StopFail()
		return err
	}

	f, err := os.Create(*out)
	if err != nil {
		spinner.StopFail()
		return err
	}
	defer f.Close()
	err = fitsx.WriteSweep(f, s,
		fitsio.Card{Name: "FPGAVER", Value: v.String()},
		fitsio.Card{Name: "BACKEND", Value: cfg.Backend})
	if err != nil {
		spinner.StopFailMessage(err.Error())
		spinner.StopFail()
		return err
	}
	spinner.StopMessage(fmt.Sprintf("%d points written to %s", len(s.Points), *out))
	return spinner.Stop()
}

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	var err error
	switch os.Args[1] {
	case "sweep":
		err = sweep(os.Args[2:])
	case "version":
		fmt.Printf("bladerfcal version %v\n", Version)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
